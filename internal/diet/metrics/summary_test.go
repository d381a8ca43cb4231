package metrics

import (
	"context"
	"testing"

	"github.com/2beens/diettracker/internal/diet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Summary_Empty(t *testing.T) {
	engine := NewEngine(diet.NewMockEntriesRepo(), diet.DefaultConstants())

	summary, err := engine.Summary(context.Background(), 30)
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestEngine_Summary(t *testing.T) {
	repo := diet.NewMockEntriesRepo()
	today := diet.Today()
	addEntry(t, repo, diet.Entry{
		Date:            today.AddDays(-2),
		WeightKg:        82,
		BodyFatPct:      floatPtr(26),
		CalInKcal:       floatPtr(2000),
		CalOutSportKcal: floatPtr(300),
	})
	addEntry(t, repo, diet.Entry{
		Date:      today.AddDays(-1),
		WeightKg:  81.5,
		CalInKcal: floatPtr(1800),
	})
	addEntry(t, repo, diet.Entry{
		Date:     today,
		WeightKg: 81,
	})

	engine := NewEngine(repo, diet.DefaultConstants())
	summary, err := engine.Summary(context.Background(), 30)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, 30, summary.PeriodDays)
	assert.InDelta(t, 10.0, summary.DataCoverage, 1e-9)

	assert.InDelta(t, 81, summary.WeightCurrentKg, 1e-9)
	assert.InDelta(t, 82, summary.WeightStartKg, 1e-9)
	assert.InDelta(t, -1, summary.WeightChangeKg, 1e-9)
	assert.InDelta(t, 81.5, summary.WeightAvgKg, 1e-9)
	assert.InDelta(t, 81, summary.WeightMinKg, 1e-9)
	assert.InDelta(t, 82, summary.WeightMaxKg, 1e-9)
	assert.InDelta(t, 0.5, summary.WeightStdKg, 1e-9)

	// body fat measured only on the first day, current = last measured
	require.NotNil(t, summary.BFCurrentPct)
	assert.InDelta(t, 26, *summary.BFCurrentPct, 1e-9)
	require.NotNil(t, summary.FMCurrentKg)
	assert.InDelta(t, 82*0.26, *summary.FMCurrentKg, 1e-9)

	// nets: (2000-2000-300) and (1800-2000), third day has none
	require.NotNil(t, summary.CalNetAvgKcal)
	assert.InDelta(t, (-300-200)/2.0, *summary.CalNetAvgKcal, 1e-9)

	require.NotNil(t, summary.CalInAvgKcal)
	assert.InDelta(t, 1900, *summary.CalInAvgKcal, 1e-9)

	assert.InDelta(t, 2000, summary.CalOutBMRKcal, 1e-9)
	// sport logged once: avg 300, total out = bmr + sport avg
	require.NotNil(t, summary.CalOutSportAvgKcal)
	assert.InDelta(t, 300, *summary.CalOutSportAvgKcal, 1e-9)
	assert.InDelta(t, 2300, summary.CalOutTotalAvgKcal, 1e-9)

	// not enough rows for rolling averages
	assert.Nil(t, summary.Weight7dAvgKg)
	assert.Nil(t, summary.Weight14dAvgKg)
}

func TestEngine_Summary_NoOptionalSignals(t *testing.T) {
	repo := diet.NewMockEntriesRepo()
	today := diet.Today()
	addEntry(t, repo, diet.Entry{Date: today.AddDays(-1), WeightKg: 90})
	addEntry(t, repo, diet.Entry{Date: today, WeightKg: 89})

	engine := NewEngine(repo, diet.DefaultConstants())
	summary, err := engine.Summary(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Nil(t, summary.BFCurrentPct)
	assert.Nil(t, summary.BFAvgPct)
	assert.Nil(t, summary.FMCurrentKg)
	assert.Nil(t, summary.FMAvgKg)
	assert.Nil(t, summary.CalNetAvgKcal)
	assert.Nil(t, summary.CalInAvgKcal)
	assert.Nil(t, summary.CalOutSportAvgKcal)

	// BMR is all we know about output
	assert.InDelta(t, 2000, summary.CalOutTotalAvgKcal, 1e-9)
}
