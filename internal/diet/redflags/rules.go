package redflags

import (
	"fmt"
	"math"

	"github.com/2beens/diettracker/internal/diet"
	"github.com/2beens/diettracker/internal/diet/metrics"
	"github.com/2beens/diettracker/internal/diet/stats"
)

// Rule is one anomaly detector. Rules gate themselves on the data they
// need and return no flags when the gate is not met; they never error.
// The table comes in sorted by date ascending.
type Rule interface {
	Evaluate(table []metrics.DayRow, days int, consts diet.Constants) []Flag
}

// DefaultRules is the full rule catalog in detection order
func DefaultRules() []Rule {
	return []Rule{
		missingDataRule{},
		inconsistentTrackingRule{},
		identicalWeightsRule{},
		extremeWeightChangeRule{},
		extremeDeficitRule{},
		frequentSurplusRule{},
		lowIntakeRule{},
		rapidFatLossRule{},
		plateauRule{},
		yoyoRule{},
		inconsistentBodyFatRule{},
		stalledProgressRule{},
		unexpectedGainRule{},
	}
}

// missingDataRule flags low overall coverage and long gaps between
// consecutive entries
type missingDataRule struct{}

func (missingDataRule) Evaluate(table []metrics.DayRow, days int, _ diet.Constants) []Flag {
	var flags []Flag

	coverage := float64(len(table)) / float64(days) * 100
	if coverage < 50 {
		flags = append(flags, Flag{
			ID:       "RF_MissingData_Low",
			Severity: SeverityHigh,
			Category: CategoryDataQuality,
			Title:    "Low Data Coverage",
			Description: fmt.Sprintf(
				"Only %.1f%% of days have data in the last %d days. Consistent tracking is essential for accurate analysis.",
				coverage, days,
			),
			Value:          floatPtr(coverage),
			Threshold:      floatPtr(50.0),
			Recommendation: "Try to log your weight daily or at least 5 days per week for reliable trends.",
		})
	} else if coverage < 70 {
		flags = append(flags, Flag{
			ID:       "RF_MissingData_Medium",
			Severity: SeverityMedium,
			Category: CategoryDataQuality,
			Title:    "Moderate Data Coverage",
			Description: fmt.Sprintf(
				"Only %.1f%% of days have data. More consistent tracking would improve accuracy.",
				coverage,
			),
			Value:          floatPtr(coverage),
			Threshold:      floatPtr(70.0),
			Recommendation: "Aim for at least 5 days of tracking per week.",
		})
	}

	maxGap := 0
	var gapDate diet.Day
	for i := 1; i < len(table); i++ {
		gap := table[i].Date.DaysSince(table[i-1].Date)
		if gap > maxGap {
			maxGap = gap
			gapDate = table[i].Date
		}
	}
	if maxGap > 7 {
		flags = append(flags, Flag{
			ID:       "RF_LongGap",
			Severity: SeverityMedium,
			Category: CategoryDataQuality,
			Title:    fmt.Sprintf("%d-Day Gap in Tracking", maxGap),
			Description: fmt.Sprintf(
				"Found a %d-day gap in tracking around %s.", maxGap, gapDate,
			),
			DatesAffected:  []diet.Day{gapDate},
			Value:          floatPtr(float64(maxGap)),
			Threshold:      floatPtr(7.0),
			Recommendation: "Long gaps make it harder to track trends. Try to maintain consistency.",
		})
	}

	return flags
}

// inconsistentTrackingRule flags sparse body fat and calorie logging
type inconsistentTrackingRule struct{}

func (inconsistentTrackingRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	var flags []Flag
	total := float64(len(table))

	bfCoverage := float64(countNonNil(table, func(r metrics.DayRow) *float64 { return r.BodyFatPct })) / total * 100
	if bfCoverage > 0 && bfCoverage < 30 {
		flags = append(flags, Flag{
			ID:       "RF_InconsistentBF",
			Severity: SeverityLow,
			Category: CategoryDataQuality,
			Title:    "Inconsistent Body Fat Tracking",
			Description: fmt.Sprintf(
				"Body fat is only tracked %.1f%% of the time. This limits body composition analysis.",
				bfCoverage,
			),
			Value:          floatPtr(bfCoverage),
			Threshold:      floatPtr(30.0),
			Recommendation: "Consider tracking body fat % consistently for better composition insights.",
		})
	}

	calCoverage := float64(countNonNil(table, func(r metrics.DayRow) *float64 { return r.CalInKcal })) / total * 100
	if calCoverage > 0 && calCoverage < 50 {
		flags = append(flags, Flag{
			ID:       "RF_InconsistentCalories",
			Severity: SeverityMedium,
			Category: CategoryDataQuality,
			Title:    "Inconsistent Calorie Tracking",
			Description: fmt.Sprintf(
				"Calories are only tracked %.1f%% of the time. This limits calorie balance analysis.",
				calCoverage,
			),
			Value:          floatPtr(calCoverage),
			Threshold:      floatPtr(50.0),
			Recommendation: "Track calories consistently to understand your energy balance better.",
		})
	}

	return flags
}

// identicalWeightsRule flags suspiciously long runs of the exact same
// weight value, which usually means a broken or unused scale
type identicalWeightsRule struct{}

func (identicalWeightsRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	if len(table) < 5 {
		return nil
	}

	maxStreak := 1
	currentStreak := 1
	var streakValue float64
	for i := 1; i < len(table); i++ {
		if table[i].WeightKg == table[i-1].WeightKg {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
				streakValue = table[i].WeightKg
			}
		} else {
			currentStreak = 1
		}
	}

	if maxStreak < 7 {
		return nil
	}
	return []Flag{{
		ID:       "RF_IdenticalWeights",
		Severity: SeverityLow,
		Category: CategoryDataQuality,
		Title:    "Identical Weight Values",
		Description: fmt.Sprintf(
			"Weight has been exactly %.1f kg for %d consecutive days. Natural weight fluctuates daily.",
			streakValue, maxStreak,
		),
		Value:          floatPtr(float64(maxStreak)),
		Threshold:      floatPtr(7.0),
		Recommendation: "Verify scale accuracy and weighing conditions. Weight naturally varies 0.5-1 kg daily.",
	}}
}

// extremeWeightChangeRule flags day-to-day jumps above 2 kg, one flag
// per offending day
type extremeWeightChangeRule struct{}

func (extremeWeightChangeRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	var flags []Flag
	for i := 1; i < len(table); i++ {
		change := table[i].WeightKg - table[i-1].WeightKg
		if math.Abs(change) <= 2.0 {
			continue
		}
		day := table[i].Date
		flags = append(flags, Flag{
			ID:       fmt.Sprintf("RF_ExtremeWeightChange_%s", day.Format("20060102")),
			Severity: SeverityHigh,
			Category: CategoryHealth,
			Title:    fmt.Sprintf("Extreme Weight Change: %+.1f kg", change),
			Description: fmt.Sprintf(
				"Weight changed by %+.1f kg on %s. This is unusual for a single day.", change, day,
			),
			DatesAffected:  []diet.Day{day},
			Value:          floatPtr(math.Abs(change)),
			Threshold:      floatPtr(2.0),
			Recommendation: "Verify measurement accuracy. Extreme daily changes are usually water weight or measurement errors.",
		})
	}
	return flags
}

// extremeDeficitRule flags single days below -1000 kcal net and a
// sustained 7-day average below -800 kcal
type extremeDeficitRule struct{}

func (extremeDeficitRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	var flags []Flag

	var extremeDates []diet.Day
	var extremeNets []float64
	for _, row := range table {
		if row.CalNetKcal != nil && *row.CalNetKcal < -1000 {
			extremeDates = append(extremeDates, row.Date)
			extremeNets = append(extremeNets, *row.CalNetKcal)
		}
	}
	if len(extremeNets) > 0 {
		avgDeficit := stats.Mean(extremeNets)
		flags = append(flags, Flag{
			ID:       "RF_ExtremeDeficit",
			Severity: SeverityCritical,
			Category: CategoryHealth,
			Title:    "Extreme Calorie Deficit",
			Description: fmt.Sprintf(
				"Found %d days with calorie deficit below -1000 kcal (avg: %.0f kcal). This is too aggressive.",
				len(extremeNets), avgDeficit,
			),
			DatesAffected:  extremeDates,
			Value:          floatPtr(avgDeficit),
			Threshold:      floatPtr(-1000.0),
			Recommendation: "Very large deficits can harm metabolism and muscle mass. Aim for -300 to -500 kcal/day deficit.",
		})
	}

	if latest := lastNonNil(table, func(r metrics.DayRow) *float64 { return r.CalNet7dAvgKcal }); latest != nil && *latest < -800 {
		flags = append(flags, Flag{
			ID:       "RF_SustainedDeficit",
			Severity: SeverityHigh,
			Category: CategoryHealth,
			Title:    "Sustained Extreme Deficit",
			Description: fmt.Sprintf(
				"7-day average deficit is %.0f kcal/day. This is too aggressive for sustained weight loss.",
				*latest,
			),
			Value:          floatPtr(*latest),
			Threshold:      floatPtr(-800.0),
			Recommendation: "Reduce deficit to -300 to -500 kcal/day for sustainable, healthy weight loss.",
		})
	}

	return flags
}

// frequentSurplusRule flags more than 3 days above +500 kcal net
type frequentSurplusRule struct{}

func (frequentSurplusRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	var surplusDates []diet.Day
	var surplusNets []float64
	for _, row := range table {
		if row.CalNetKcal != nil && *row.CalNetKcal > 500 {
			surplusDates = append(surplusDates, row.Date)
			surplusNets = append(surplusNets, *row.CalNetKcal)
		}
	}
	if len(surplusNets) <= 3 {
		return nil
	}

	avgSurplus := stats.Mean(surplusNets)
	return []Flag{{
		ID:       "RF_FrequentSurplus",
		Severity: SeverityMedium,
		Category: CategoryProgress,
		Title:    "Frequent Calorie Surplus",
		Description: fmt.Sprintf(
			"Found %d days with calorie surplus above +500 kcal (avg: %.0f kcal).",
			len(surplusNets), avgSurplus,
		),
		DatesAffected:  surplusDates,
		Value:          floatPtr(avgSurplus),
		Threshold:      floatPtr(500.0),
		Recommendation: "Frequent surpluses will slow or reverse weight loss progress. Stay consistent with deficit.",
	}}
}

// lowIntakeRule flags more than 5 days with intake below 1200 kcal
type lowIntakeRule struct{}

func (lowIntakeRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	var lowDates []diet.Day
	var lowIntakes []float64
	for _, row := range table {
		if row.CalInKcal != nil && *row.CalInKcal < 1200 {
			lowDates = append(lowDates, row.Date)
			lowIntakes = append(lowIntakes, *row.CalInKcal)
		}
	}
	if len(lowIntakes) <= 5 {
		return nil
	}

	avgIntake := stats.Mean(lowIntakes)
	return []Flag{{
		ID:       "RF_LowIntake",
		Severity: SeverityCritical,
		Category: CategoryHealth,
		Title:    "Very Low Calorie Intake",
		Description: fmt.Sprintf(
			"Found %d days with intake below 1200 kcal (avg: %.0f kcal). This is too low for most adults.",
			len(lowIntakes), avgIntake,
		),
		DatesAffected:  lowDates,
		Value:          floatPtr(avgIntake),
		Threshold:      floatPtr(1200.0),
		Recommendation: "Minimum intake should be ~1500 kcal for men, ~1200 for women. Very low intake risks nutrient deficiency.",
	}}
}

// rapidFatLossRule flags more than 3 kg of fat mass lost over the last
// 14 measurements
type rapidFatLossRule struct{}

func (rapidFatLossRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	var fatMasses []float64
	for _, row := range table {
		if row.FatMassKg != nil {
			fatMasses = append(fatMasses, *row.FatMassKg)
		}
	}
	if len(fatMasses) < 14 {
		return nil
	}

	recent := fatMasses[len(fatMasses)-14:]
	change := recent[len(recent)-1] - recent[0]
	if change >= -3.0 {
		return nil
	}

	return []Flag{{
		ID:       "RF_RapidFatLoss",
		Severity: SeverityHigh,
		Category: CategoryHealth,
		Title:    "Rapid Fat Mass Loss",
		Description: fmt.Sprintf(
			"Fat mass decreased by %.1f kg in 14 days. Healthy rate is 1-2 kg per 2 weeks.",
			math.Abs(change),
		),
		Value:          floatPtr(change),
		Threshold:      floatPtr(-3.0),
		Recommendation: "Rapid fat loss often includes muscle loss. Slow down to 0.5-1.0 kg fat loss per week.",
	}}
}

// plateauRule flags a flat 14-day rolling average while the weight is
// still above the configured goal
type plateauRule struct{}

func (plateauRule) Evaluate(table []metrics.DayRow, _ int, consts diet.Constants) []Flag {
	if len(table) < 14 {
		return nil
	}
	if table[len(table)-1].WeightKg <= consts.TargetWeightKg {
		return nil
	}

	var avgs []float64
	for _, row := range table {
		if row.Weight14dAvgKg != nil {
			avgs = append(avgs, *row.Weight14dAvgKg)
		}
	}
	if len(avgs) > 14 {
		avgs = avgs[len(avgs)-14:]
	}
	if len(avgs) < 10 {
		return nil
	}

	change := avgs[len(avgs)-1] - avgs[0]
	if math.Abs(change) >= 0.3 {
		return nil
	}

	return []Flag{{
		ID:       "RF_Plateau",
		Severity: SeverityLow,
		Category: CategoryProgress,
		Title:    "Weight Plateau Detected",
		Description: fmt.Sprintf(
			"14-day average weight changed only %.2f kg. Progress has stalled.", change,
		),
		Value:          floatPtr(math.Abs(change)),
		Threshold:      floatPtr(0.3),
		Recommendation: "Consider adjusting calorie intake or increasing activity if goal is weight loss.",
	}}
}

// yoyoRule flags frequent direction changes of the smoothed weight
// trend over a 30+ day window
type yoyoRule struct{}

func (yoyoRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	if len(table) < 30 {
		return nil
	}

	// day-to-day deltas of the 7d average, nil when either side is missing
	trend := make([]*float64, len(table))
	for i := 1; i < len(table); i++ {
		if table[i].Weight7dAvgKg == nil || table[i-1].Weight7dAvgKg == nil {
			continue
		}
		delta := *table[i].Weight7dAvgKg - *table[i-1].Weight7dAvgKg
		trend[i] = &delta
	}

	directionChanges := 0
	for i := 1; i < len(trend); i++ {
		if trend[i] != nil && trend[i-1] != nil && *trend[i]**trend[i-1] < 0 {
			directionChanges++
		}
	}
	if directionChanges <= 4 {
		return nil
	}

	return []Flag{{
		ID:       "RF_YoYo",
		Severity: SeverityMedium,
		Category: CategoryConsistency,
		Title:    "Yo-Yo Weight Pattern",
		Description: fmt.Sprintf(
			"Weight trend changed direction %d times in recent period. This indicates inconsistent habits.",
			directionChanges,
		),
		Value:          floatPtr(float64(directionChanges)),
		Threshold:      floatPtr(4.0),
		Recommendation: "Focus on consistent daily habits rather than aggressive short-term efforts.",
	}}
}

// inconsistentBodyFatRule flags jumps above 2 percentage points between
// consecutive body fat measurements, one flag per jump
type inconsistentBodyFatRule struct{}

func (inconsistentBodyFatRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	var bfDates []diet.Day
	var bfValues []float64
	for _, row := range table {
		if row.BodyFatPct != nil {
			bfDates = append(bfDates, row.Date)
			bfValues = append(bfValues, *row.BodyFatPct)
		}
	}
	if len(bfValues) < 5 {
		return nil
	}

	var flags []Flag
	for i := 1; i < len(bfValues); i++ {
		change := bfValues[i] - bfValues[i-1]
		if math.Abs(change) <= 2.0 {
			continue
		}
		day := bfDates[i]
		flags = append(flags, Flag{
			ID:       fmt.Sprintf("RF_InconsistentBF_%s", day.Format("20060102")),
			Severity: SeverityLow,
			Category: CategoryDataQuality,
			Title:    fmt.Sprintf("Body Fat Jump: %+.1f%%", change),
			Description: fmt.Sprintf(
				"Body fat changed by %+.1f%% on %s. True BF%% changes slowly.", change, day,
			),
			DatesAffected:  []diet.Day{day},
			Value:          floatPtr(math.Abs(change)),
			Threshold:      floatPtr(2.0),
			Recommendation: "Body fat % should change gradually. Check measurement conditions (hydration, time of day).",
		})
	}
	return flags
}

// stalledProgressRule flags minimal weight change over 21+ days while
// the weight is still above the configured goal
type stalledProgressRule struct{}

func (stalledProgressRule) Evaluate(table []metrics.DayRow, _ int, consts diet.Constants) []Flag {
	if len(table) < 21 {
		return nil
	}

	weightEnd := table[len(table)-1].WeightKg
	weightChange := weightEnd - table[0].WeightKg
	if math.Abs(weightChange) >= 0.5 || weightEnd <= consts.TargetWeightKg {
		return nil
	}

	return []Flag{{
		ID:       "RF_StalledProgress",
		Severity: SeverityMedium,
		Category: CategoryProgress,
		Title:    "Minimal Progress",
		Description: fmt.Sprintf(
			"Weight changed only %.2f kg over %d days. Progress is very slow.",
			weightChange, len(table),
		),
		Value:          floatPtr(math.Abs(weightChange)),
		Threshold:      floatPtr(0.5),
		Recommendation: "Review your calorie tracking accuracy and consider adjusting your deficit.",
	}}
}

// unexpectedGainRule flags weight going up while the average calorie
// balance says it should go down, which usually means tracking errors
type unexpectedGainRule struct{}

func (unexpectedGainRule) Evaluate(table []metrics.DayRow, _ int, _ diet.Constants) []Flag {
	if len(table) < 14 {
		return nil
	}

	var nets []float64
	for _, row := range table {
		if row.CalNetKcal != nil {
			nets = append(nets, *row.CalNetKcal)
		}
	}
	if len(nets) < 7 {
		return nil
	}

	avgNet := stats.Mean(nets)
	if avgNet >= -200 {
		return nil
	}

	weightChange := table[len(table)-1].WeightKg - table[0].WeightKg
	if weightChange <= 0.5 {
		return nil
	}

	return []Flag{{
		ID:       "RF_UnexpectedGain",
		Severity: SeverityHigh,
		Category: CategoryProgress,
		Title:    "Weight Gain Despite Deficit",
		Description: fmt.Sprintf(
			"Average deficit is %.0f kcal/day, but weight increased by %.1f kg.",
			avgNet, weightChange,
		),
		Value:          floatPtr(weightChange),
		Threshold:      floatPtr(0.5),
		Recommendation: "Verify calorie tracking accuracy. Check for hidden calories or portion size errors.",
	}}
}

func countNonNil(table []metrics.DayRow, get func(metrics.DayRow) *float64) int {
	var count int
	for _, row := range table {
		if get(row) != nil {
			count++
		}
	}
	return count
}

func lastNonNil(table []metrics.DayRow, get func(metrics.DayRow) *float64) *float64 {
	for i := len(table) - 1; i >= 0; i-- {
		if v := get(table[i]); v != nil {
			value := *v
			return &value
		}
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }
