package redflags

import (
	"context"
	"testing"

	"github.com/2beens/diettracker/internal/diet"
	"github.com/2beens/diettracker/internal/diet/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metricsSourceMock struct {
	table []metrics.DayRow
}

func (m *metricsSourceMock) TableForDays(_ context.Context, _ int) ([]metrics.DayRow, error) {
	return m.table, nil
}

func startDay(t *testing.T) diet.Day {
	t.Helper()
	d, err := diet.ParseDay("2026-01-01")
	require.NoError(t, err)
	return d
}

func fptr(v float64) *float64 { return &v }

func flagByID(flags []Flag, id string) *Flag {
	for i := range flags {
		if flags[i].ID == id {
			return &flags[i]
		}
	}
	return nil
}

func TestEngine_DetectAll_EmptyTable(t *testing.T) {
	engine := NewEngine(&metricsSourceMock{}, diet.DefaultConstants())

	flags, err := engine.DetectAll(context.Background(), 30)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestEngine_DetectAll_CleanData(t *testing.T) {
	start := startDay(t)
	table := make([]metrics.DayRow, 30)
	for i := range table {
		table[i] = metrics.DayRow{
			Date:            start.AddDays(i),
			WeightKg:        85 - 0.07*float64(i),
			BodyFatPct:      fptr(28 - 0.03*float64(i)),
			CalInKcal:       fptr(1900),
			CalOutSportKcal: fptr(300),
			CalNetKcal:      fptr(-400),
		}
	}

	engine := NewEngine(&metricsSourceMock{table: table}, diet.DefaultConstants())
	flags, err := engine.DetectAll(context.Background(), 30)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestEngine_DetectAll_ExtremeDeficit(t *testing.T) {
	start := startDay(t)
	table := make([]metrics.DayRow, 10)
	for i := range table {
		table[i] = metrics.DayRow{
			Date:       start.AddDays(i),
			WeightKg:   85 - 0.1*float64(i),
			CalNetKcal: fptr(-1700),
		}
	}

	engine := NewEngine(&metricsSourceMock{table: table}, diet.DefaultConstants())
	flags, err := engine.DetectAll(context.Background(), 30)
	require.NoError(t, err)

	flag := flagByID(flags, "RF_ExtremeDeficit")
	require.NotNil(t, flag)
	assert.Equal(t, SeverityCritical, flag.Severity)
	assert.Equal(t, CategoryHealth, flag.Category)
	require.NotNil(t, flag.Value)
	assert.InDelta(t, -1700, *flag.Value, 1e-9)
	assert.Len(t, flag.DatesAffected, 10)
}

func TestEngine_DetectAll_SortBySeverity(t *testing.T) {
	start := startDay(t)
	// identical weights (low) + extreme deficit (critical) together
	table := make([]metrics.DayRow, 10)
	for i := range table {
		table[i] = metrics.DayRow{
			Date:       start.AddDays(i),
			WeightKg:   85,
			CalNetKcal: fptr(-1700),
		}
	}

	engine := NewEngine(&metricsSourceMock{table: table}, diet.DefaultConstants())
	flags, err := engine.DetectAll(context.Background(), 30)
	require.NoError(t, err)
	require.True(t, len(flags) >= 2)

	SortBySeverity(flags)
	assert.Equal(t, SeverityCritical, flags[0].Severity)
	for i := 1; i < len(flags); i++ {
		assert.LessOrEqual(t,
			severityRank[flags[i].Severity],
			severityRank[flags[i-1].Severity],
		)
	}
}
