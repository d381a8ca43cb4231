// Package redflags scans the derived metrics table for anomalies:
// tracking gaps, dangerous calorie patterns, measurement artifacts and
// stalled progress. Each finding is a structured Flag with a stable id
// so clients can deduplicate and dismiss them.
package redflags

import (
	"sort"

	"github.com/2beens/diettracker/internal/diet"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Category string

const (
	CategoryDataQuality Category = "data_quality"
	CategoryHealth      Category = "health"
	CategoryConsistency Category = "consistency"
	CategoryProgress    Category = "progress"
)

// Flag is one detected anomaly. Per-day flags carry a date suffix in
// the id (e.g. RF_ExtremeWeightChange_20260115) and the day in
// DatesAffected; window-wide flags leave DatesAffected empty.
type Flag struct {
	ID             string     `json:"id"`
	Severity       Severity   `json:"severity"`
	Category       Category   `json:"category"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DatesAffected  []diet.Day `json:"dates_affected"`
	Value          *float64   `json:"value"`
	Threshold      *float64   `json:"threshold"`
	Recommendation string     `json:"recommendation"`
}

var severityRank = map[Severity]int{
	SeverityCritical: 3,
	SeverityHigh:     2,
	SeverityMedium:   1,
	SeverityLow:      0,
}

// SortBySeverity orders flags critical first, low last, keeping the
// detection order within the same severity
func SortBySeverity(flags []Flag) {
	sort.SliceStable(flags, func(i, j int) bool {
		return severityRank[flags[i].Severity] > severityRank[flags[j].Severity]
	})
}
