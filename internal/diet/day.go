package diet

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar day with day precision, always in UTC.
// It marshals to/from ISO date strings ("2026-01-07"), which is the
// format the export and LLM fact-extraction consumers key off.
type Day struct {
	time.Time
}

func NewDay(t time.Time) Day {
	t = t.UTC()
	return Day{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func Today() Day {
	return NewDay(time.Now())
}

func ParseDay(value string) (Day, error) {
	t, err := time.Parse(dayLayout, value)
	if err != nil {
		return Day{}, fmt.Errorf("parse day [%s]: %w", value, err)
	}
	return NewDay(t), nil
}

func (d Day) String() string {
	return d.Format(dayLayout)
}

func (d Day) AddDays(days int) Day {
	return NewDay(d.AddDate(0, 0, days))
}

// DaysSince returns the number of calendar days between other and d
func (d Day) DaysSince(other Day) int {
	return int(d.Time.Sub(other.Time).Hours() / 24)
}

func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Day) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid day value: %s", s)
	}
	parsed, err := ParseDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
