package diet

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEntryNotFound      = errors.New("diet entry not found")
	ErrEntryAlreadyExists = errors.New("diet entry for that date already exists")
)

// Entry is a single daily measurement: weight, optional body composition
// and calorie data. At most one entry per calendar date.
type Entry struct {
	ID              int      `json:"id"`
	Date            Day      `json:"date"`
	WeightKg        float64  `json:"weight"`
	BodyFatPct      *float64 `json:"bodyfat_pct"`
	CalInKcal       *float64 `json:"calories_in"`
	CalOutSportKcal *float64 `json:"calories_exercise_out"`
	Notes           string   `json:"notes,omitempty"`
	Source          string   `json:"source"`
}

// Validate checks plausible value ranges. The analytics engines assume
// entries were validated here, at the entry boundary.
func (e *Entry) Validate() error {
	if e.Date.IsZero() {
		return errors.New("date is required")
	}
	if e.WeightKg < 30 || e.WeightKg > 200 {
		return fmt.Errorf("weight must be between 30-200 kg, got %.1f", e.WeightKg)
	}
	if e.BodyFatPct != nil && (*e.BodyFatPct < 3 || *e.BodyFatPct > 60) {
		return fmt.Errorf("body fat %% should be between 3-60%%, got %.1f", *e.BodyFatPct)
	}
	if e.CalInKcal != nil && *e.CalInKcal < 0 {
		return errors.New("calories in must be non-negative")
	}
	if e.CalOutSportKcal != nil && *e.CalOutSportKcal < 0 {
		return errors.New("exercise calories must be non-negative")
	}
	return nil
}

// Normalize rounds measured values to one decimal and defaults the source tag
func (e *Entry) Normalize() {
	e.WeightKg = roundTo1(e.WeightKg)
	if e.BodyFatPct != nil {
		rounded := roundTo1(*e.BodyFatPct)
		e.BodyFatPct = &rounded
	}
	if e.Source == "" {
		e.Source = "manual"
	}
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
