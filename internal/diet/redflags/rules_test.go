package redflags

import (
	"testing"

	"github.com/2beens/diettracker/internal/diet"
	"github.com/2beens/diettracker/internal/diet/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightsTable(t *testing.T, weights []float64) []metrics.DayRow {
	t.Helper()
	start := startDay(t)
	table := make([]metrics.DayRow, len(weights))
	for i, w := range weights {
		table[i] = metrics.DayRow{
			Date:     start.AddDays(i),
			WeightKg: w,
		}
	}
	return table
}

func TestMissingDataRule_CoverageTiers(t *testing.T) {
	table := weightsTable(t, []float64{85, 84.9, 84.8})
	consts := diet.DefaultConstants()

	// 3 of 30 days: low tier
	flags := missingDataRule{}.Evaluate(table, 30, consts)
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_MissingData_Low", flags[0].ID)
	assert.Equal(t, SeverityHigh, flags[0].Severity)
	assert.InDelta(t, 10.0, *flags[0].Value, 1e-9)

	// 3 of 5 days: medium tier
	flags = missingDataRule{}.Evaluate(table, 5, consts)
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_MissingData_Medium", flags[0].ID)
	assert.Equal(t, SeverityMedium, flags[0].Severity)

	// 3 of 4 days: no coverage flag
	flags = missingDataRule{}.Evaluate(table, 4, consts)
	assert.Empty(t, flags)
}

func TestMissingDataRule_LongGap(t *testing.T) {
	start := startDay(t)
	table := []metrics.DayRow{
		{Date: start, WeightKg: 85},
		{Date: start.AddDays(1), WeightKg: 84.9},
		{Date: start.AddDays(11), WeightKg: 84.5}, // 10-day gap
		{Date: start.AddDays(12), WeightKg: 84.4},
	}

	flags := missingDataRule{}.Evaluate(table, 14, diet.DefaultConstants())
	gap := flagByID(flags, "RF_LongGap")
	require.NotNil(t, gap)
	assert.InDelta(t, 10, *gap.Value, 1e-9)
	require.Len(t, gap.DatesAffected, 1)
	assert.Equal(t, "2026-01-12", gap.DatesAffected[0].String())
}

func TestInconsistentTrackingRule(t *testing.T) {
	start := startDay(t)
	table := make([]metrics.DayRow, 10)
	for i := range table {
		table[i] = metrics.DayRow{Date: start.AddDays(i), WeightKg: 85}
	}
	// body fat on 2 of 10 days (20%), calories on 4 of 10 (40%)
	table[0].BodyFatPct = fptr(28)
	table[5].BodyFatPct = fptr(27.5)
	for i := 0; i < 4; i++ {
		table[i].CalInKcal = fptr(1900)
	}

	flags := inconsistentTrackingRule{}.Evaluate(table, 30, diet.DefaultConstants())
	require.Len(t, flags, 2)
	assert.NotNil(t, flagByID(flags, "RF_InconsistentBF"))
	assert.NotNil(t, flagByID(flags, "RF_InconsistentCalories"))

	// never tracked at all is not flagged as inconsistent
	for i := range table {
		table[i].BodyFatPct = nil
	}
	flags = inconsistentTrackingRule{}.Evaluate(table, 30, diet.DefaultConstants())
	assert.Nil(t, flagByID(flags, "RF_InconsistentBF"))
}

func TestIdenticalWeightsRule(t *testing.T) {
	// 10 identical values in a row
	weights := make([]float64, 12)
	for i := range weights {
		weights[i] = 83.4
	}
	weights[0] = 84
	weights[11] = 83

	flags := identicalWeightsRule{}.Evaluate(weightsTable(t, weights), 30, diet.DefaultConstants())
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_IdenticalWeights", flags[0].ID)
	assert.InDelta(t, 10, *flags[0].Value, 1e-9)

	// a 6-day streak stays under the threshold
	flags = identicalWeightsRule{}.Evaluate(
		weightsTable(t, []float64{84, 83.4, 83.4, 83.4, 83.4, 83.4, 83.4, 83}),
		30, diet.DefaultConstants(),
	)
	assert.Empty(t, flags)
}

func TestExtremeWeightChangeRule(t *testing.T) {
	flags := extremeWeightChangeRule{}.Evaluate(
		weightsTable(t, []float64{85, 84.8, 87.3, 87.1}),
		30, diet.DefaultConstants(),
	)
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_ExtremeWeightChange_20260103", flags[0].ID)
	assert.Equal(t, SeverityHigh, flags[0].Severity)
	assert.InDelta(t, 2.5, *flags[0].Value, 1e-9)
}

func TestSustainedDeficitRule(t *testing.T) {
	table := weightsTable(t, []float64{85, 84.8, 84.6, 84.4, 84.2, 84, 83.8})
	table[6].CalNet7dAvgKcal = fptr(-950)

	flags := extremeDeficitRule{}.Evaluate(table, 30, diet.DefaultConstants())
	sustained := flagByID(flags, "RF_SustainedDeficit")
	require.NotNil(t, sustained)
	assert.Equal(t, SeverityHigh, sustained.Severity)
	assert.InDelta(t, -950, *sustained.Value, 1e-9)
	assert.Nil(t, flagByID(flags, "RF_ExtremeDeficit"))
}

func TestFrequentSurplusRule_NeedsMoreThanThreeDays(t *testing.T) {
	table := weightsTable(t, []float64{85, 85, 85, 85, 85, 85})
	for i := 0; i < 3; i++ {
		table[i].CalNetKcal = fptr(700)
	}
	assert.Empty(t, frequentSurplusRule{}.Evaluate(table, 30, diet.DefaultConstants()))

	table[3].CalNetKcal = fptr(600)
	flags := frequentSurplusRule{}.Evaluate(table, 30, diet.DefaultConstants())
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_FrequentSurplus", flags[0].ID)
	assert.Equal(t, CategoryProgress, flags[0].Category)
	assert.Len(t, flags[0].DatesAffected, 4)
}

func TestLowIntakeRule_NeedsMoreThanFiveDays(t *testing.T) {
	table := weightsTable(t, []float64{85, 85, 85, 85, 85, 85, 85, 85})
	for i := 0; i < 5; i++ {
		table[i].CalInKcal = fptr(1000)
	}
	assert.Empty(t, lowIntakeRule{}.Evaluate(table, 30, diet.DefaultConstants()))

	table[5].CalInKcal = fptr(1100)
	flags := lowIntakeRule{}.Evaluate(table, 30, diet.DefaultConstants())
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_LowIntake", flags[0].ID)
	assert.Equal(t, SeverityCritical, flags[0].Severity)
}

func TestRapidFatLossRule(t *testing.T) {
	start := startDay(t)
	table := make([]metrics.DayRow, 14)
	for i := range table {
		table[i] = metrics.DayRow{
			Date:      start.AddDays(i),
			WeightKg:  85,
			FatMassKg: fptr(24 - 0.25*float64(i)), // -3.25 kg over 14 days
		}
	}

	flags := rapidFatLossRule{}.Evaluate(table, 30, diet.DefaultConstants())
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_RapidFatLoss", flags[0].ID)
	assert.InDelta(t, -3.25, *flags[0].Value, 1e-9)
}

func TestPlateauRule_GatedOnTargetWeight(t *testing.T) {
	start := startDay(t)
	buildTable := func(weight float64) []metrics.DayRow {
		table := make([]metrics.DayRow, 14)
		for i := range table {
			table[i] = metrics.DayRow{
				Date:           start.AddDays(i),
				WeightKg:       weight,
				Weight14dAvgKg: fptr(weight),
			}
		}
		return table
	}

	// flat average above the goal: plateau
	flags := plateauRule{}.Evaluate(buildTable(82), 30, diet.DefaultConstants())
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_Plateau", flags[0].ID)

	// flat average at the goal: nothing to fix
	flags = plateauRule{}.Evaluate(buildTable(75), 30, diet.DefaultConstants())
	assert.Empty(t, flags)
}

func TestYoyoRule(t *testing.T) {
	start := startDay(t)
	table := make([]metrics.DayRow, 30)
	for i := range table {
		// smoothed weight zig-zagging every day
		avg := 84.0
		if i%2 == 1 {
			avg = 84.4
		}
		table[i] = metrics.DayRow{
			Date:          start.AddDays(i),
			WeightKg:      avg,
			Weight7dAvgKg: fptr(avg),
		}
	}

	flags := yoyoRule{}.Evaluate(table, 30, diet.DefaultConstants())
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_YoYo", flags[0].ID)
	assert.Equal(t, CategoryConsistency, flags[0].Category)

	// under 30 rows the rule stays quiet
	assert.Empty(t, yoyoRule{}.Evaluate(table[:29], 30, diet.DefaultConstants()))
}

func TestInconsistentBodyFatRule(t *testing.T) {
	start := startDay(t)
	bfs := []float64{28, 27.8, 31.2, 27.9, 27.7}
	table := make([]metrics.DayRow, len(bfs))
	for i, bf := range bfs {
		table[i] = metrics.DayRow{
			Date:       start.AddDays(i),
			WeightKg:   85,
			BodyFatPct: fptr(bf),
		}
	}

	flags := inconsistentBodyFatRule{}.Evaluate(table, 30, diet.DefaultConstants())
	require.Len(t, flags, 2) // the jump up and the jump back down
	assert.Equal(t, "RF_InconsistentBF_20260103", flags[0].ID)
	assert.Equal(t, "RF_InconsistentBF_20260104", flags[1].ID)
}

func TestStalledProgressRule_GatedOnTargetWeight(t *testing.T) {
	buildTable := func(weight float64) []metrics.DayRow {
		weights := make([]float64, 21)
		for i := range weights {
			weights[i] = weight
		}
		return weightsTable(t, weights)
	}

	flags := stalledProgressRule{}.Evaluate(buildTable(82), 30, diet.DefaultConstants())
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_StalledProgress", flags[0].ID)

	// already at the goal weight: staying put is the point
	assert.Empty(t, stalledProgressRule{}.Evaluate(buildTable(74), 30, diet.DefaultConstants()))
}

func TestUnexpectedGainRule(t *testing.T) {
	start := startDay(t)
	table := make([]metrics.DayRow, 14)
	for i := range table {
		table[i] = metrics.DayRow{
			Date:       start.AddDays(i),
			WeightKg:   84 + 0.1*float64(i), // gaining
			CalNetKcal: fptr(-400),          // while eating at a deficit
		}
	}

	flags := unexpectedGainRule{}.Evaluate(table, 30, diet.DefaultConstants())
	require.Len(t, flags, 1)
	assert.Equal(t, "RF_UnexpectedGain", flags[0].ID)
	assert.Equal(t, SeverityHigh, flags[0].Severity)
	assert.InDelta(t, 1.3, *flags[0].Value, 1e-9)
}
