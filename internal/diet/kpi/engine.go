// Package kpi computes the key performance indicators of the diet,
// each with a stable id, a target and a good/bad verdict, so that
// clients can render them without knowing the formulas.
package kpi

import (
	"context"
	"math"

	"github.com/2beens/diettracker/internal/diet"
	"github.com/2beens/diettracker/internal/diet/metrics"
	"github.com/2beens/diettracker/internal/diet/stats"
	"github.com/2beens/diettracker/internal/telemetry/tracing"
)

// KPI is a single indicator. Value is nil when the indicator is defined
// but currently has no number (e.g. goal ETA while not losing weight).
// IsGood is nil for neutral indicators that carry no verdict.
type KPI struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit"`
	WindowDays  int      `json:"window_days"`
	Explanation string   `json:"explanation"`
	Formula     string   `json:"formula"`
	Target      *float64 `json:"target"`
	IsGood      *bool    `json:"is_good"`
}

type metricsSource interface {
	TableForDays(ctx context.Context, days int) ([]metrics.DayRow, error)
}

type Engine struct {
	metrics metricsSource
	consts  diet.Constants
}

func NewEngine(metricsSource metricsSource, consts diet.Constants) *Engine {
	return &Engine{
		metrics: metricsSource,
		consts:  consts,
	}
}

// ComputeAll computes every KPI that has enough data over the last
// `days` days. KPIs whose data gate is not met are simply left out,
// never returned as errors. Empty slice for an empty table.
func (e *Engine) ComputeAll(ctx context.Context, days int) (_ []KPI, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.diet.kpi.computeAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	table, err := e.metrics.TableForDays(ctx, days)
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return []KPI{}, nil
	}

	candidates := []*KPI{
		e.weightTrend7d(table),
		e.weightChange30d(table),
		e.bodyFatChange30d(table),
		e.fatMassChange30d(table),
		e.netCalories7d(table),
		e.intake7d(table),
		e.sport7d(table),
		e.consistencyCoverage30d(table, days),
		e.weightVolatility14d(table),
		e.streakDays(table),
		e.goalETA(table),
		e.adherenceScore(table, days),
	}

	kpis := make([]KPI, 0, len(candidates))
	for _, kpi := range candidates {
		if kpi != nil {
			kpis = append(kpis, *kpi)
		}
	}
	return kpis, nil
}

func (e *Engine) weightTrend7d(table []metrics.DayRow) *KPI {
	if len(table) < 7 {
		return nil
	}
	avgs := nonNil(table, func(r metrics.DayRow) *float64 { return r.Weight7dAvgKg })
	if len(avgs) < 7 {
		return nil
	}

	trendPerWeek := slopeOf(tail(avgs, 7)) * 7
	return &KPI{
		ID:          "KPI_Weight_Trend_7d",
		Name:        "Weight Trend (7d)",
		Value:       round2p(trendPerWeek),
		Unit:        "kg/week",
		WindowDays:  7,
		Explanation: "Rate of weight change per week based on 7-day rolling average",
		Formula:     "Linear regression slope on 7-day avg × 7",
		Target:      floatPtr(-0.5),
		IsGood:      boolPtr(trendPerWeek < 0),
	}
}

func (e *Engine) weightChange30d(table []metrics.DayRow) *KPI {
	if len(table) < 2 {
		return nil
	}

	// prefer the smoothed series when it carries at least two points
	var change float64
	if avgs := nonNil(table, func(r metrics.DayRow) *float64 { return r.Weight7dAvgKg }); len(avgs) >= 2 {
		change = avgs[len(avgs)-1] - avgs[0]
	} else {
		change = table[len(table)-1].WeightKg - table[0].WeightKg
	}

	return &KPI{
		ID:          "KPI_Weight_Change_30d",
		Name:        "Weight Change (30d)",
		Value:       round2p(change),
		Unit:        "kg",
		WindowDays:  30,
		Explanation: "Total weight change over the period",
		Formula:     "Latest 7d avg - First 7d avg",
		Target:      floatPtr(-2.0),
		IsGood:      boolPtr(change < 0),
	}
}

func (e *Engine) bodyFatChange30d(table []metrics.DayRow) *KPI {
	values := nonNil(table, func(r metrics.DayRow) *float64 { return r.BodyFatPct })
	if len(values) < 2 {
		return nil
	}

	change := values[len(values)-1] - values[0]
	return &KPI{
		ID:          "KPI_BF_Change_30d",
		Name:        "Body Fat Change (30d)",
		Value:       round2p(change),
		Unit:        "pp",
		WindowDays:  30,
		Explanation: "Change in body fat percentage over the period",
		Formula:     "Latest BF% - First BF%",
		Target:      floatPtr(-1.0),
		IsGood:      boolPtr(change < 0),
	}
}

func (e *Engine) fatMassChange30d(table []metrics.DayRow) *KPI {
	values := nonNil(table, func(r metrics.DayRow) *float64 { return r.FatMassKg })
	if len(values) < 2 {
		return nil
	}

	change := values[len(values)-1] - values[0]
	return &KPI{
		ID:          "KPI_FatMass_Change_30d",
		Name:        "Fat Mass Change (30d)",
		Value:       round2p(change),
		Unit:        "kg",
		WindowDays:  30,
		Explanation: "Change in fat mass over the period",
		Formula:     "Latest fat mass - First fat mass",
		Target:      floatPtr(-1.5),
		IsGood:      boolPtr(change < 0),
	}
}

func (e *Engine) netCalories7d(table []metrics.DayRow) *KPI {
	values := nonNil(table, func(r metrics.DayRow) *float64 { return r.CalNetKcal })
	if len(values) < 1 {
		return nil
	}

	avgNet := stats.Mean(tail(values, 7))
	return &KPI{
		ID:          "KPI_NetCalories_7d",
		Name:        "Avg NET Calories (7d)",
		Value:       round0p(avgNet),
		Unit:        "kcal/day",
		WindowDays:  7,
		Explanation: "Average daily net calorie balance (IN - BMR - SPORT)",
		Formula:     "Mean of (cal_in - BMR - cal_out_sport) over 7 days",
		Target:      floatPtr(-300),
		IsGood:      boolPtr(avgNet < 0),
	}
}

func (e *Engine) intake7d(table []metrics.DayRow) *KPI {
	values := nonNil(table, func(r metrics.DayRow) *float64 { return r.CalInKcal })
	if len(values) < 1 {
		return nil
	}

	avgIn := stats.Mean(tail(values, 7))
	return &KPI{
		ID:          "KPI_Intake_7d",
		Name:        "Avg Intake (7d)",
		Value:       round0p(avgIn),
		Unit:        "kcal/day",
		WindowDays:  7,
		Explanation: "Average daily calorie intake",
		Formula:     "Mean of cal_in over 7 days",
		Target:      floatPtr(2000),
		IsGood:      nil, // neutral, no verdict
	}
}

func (e *Engine) sport7d(table []metrics.DayRow) *KPI {
	values := nonNil(table, func(r metrics.DayRow) *float64 { return r.CalOutSportKcal })
	if len(values) < 1 {
		return nil
	}

	avgSport := stats.Mean(tail(values, 7))
	return &KPI{
		ID:          "KPI_Sport_7d",
		Name:        "Avg Sport (7d)",
		Value:       round0p(avgSport),
		Unit:        "kcal/day",
		WindowDays:  7,
		Explanation: "Average daily calories burned through exercise",
		Formula:     "Mean of cal_out_sport over 7 days",
		Target:      floatPtr(400),
		IsGood:      boolPtr(avgSport >= 300),
	}
}

func (e *Engine) consistencyCoverage30d(table []metrics.DayRow, days int) *KPI {
	coverage := float64(countComplete(table)) / float64(days) * 100
	return &KPI{
		ID:          "KPI_Consistency_Coverage_30d",
		Name:        "Data Coverage (30d)",
		Value:       round1p(coverage),
		Unit:        "%",
		WindowDays:  days,
		Explanation: "Percentage of days with complete data (weight + calories)",
		Formula:     "(Days with complete data / Total days) × 100",
		Target:      floatPtr(90.0),
		IsGood:      boolPtr(coverage >= 80),
	}
}

func (e *Engine) weightVolatility14d(table []metrics.DayRow) *KPI {
	if len(table) < 14 {
		return nil
	}

	std := stats.SampleStdDev(tail(rawWeights(table), 14))
	return &KPI{
		ID:          "KPI_Volatility_Weight_14d",
		Name:        "Weight Volatility (14d)",
		Value:       round2p(std),
		Unit:        "kg (std)",
		WindowDays:  14,
		Explanation: "Standard deviation of weight over 14 days (measures fluctuation/water retention)",
		Formula:     "Std dev of weight over 14 days",
		Target:      floatPtr(0.5),
		IsGood:      boolPtr(std < 1.0),
	}
}

func (e *Engine) streakDays(table []metrics.DayRow) *KPI {
	if len(table) < 1 {
		return nil
	}

	streak := currentStreak(table)
	return &KPI{
		ID:          "KPI_Streak_Days",
		Name:        "Current Streak",
		Value:       floatPtr(float64(streak)),
		Unit:        "days",
		WindowDays:  365,
		Explanation: "Number of consecutive days with data entries",
		Formula:     "Count of consecutive days from most recent",
		Target:      floatPtr(30),
		IsGood:      boolPtr(streak >= 7),
	}
}

func (e *Engine) goalETA(table []metrics.DayRow) *KPI {
	if len(table) < 14 {
		return nil
	}

	currentWeight := table[len(table)-1].WeightKg
	if avgs := nonNil(table, func(r metrics.DayRow) *float64 { return r.Weight7dAvgKg }); len(avgs) > 0 {
		currentWeight = avgs[len(avgs)-1]
	}

	slope := slopeOf(tail(rawWeights(table), 14)) // kg/day
	if slope >= 0 {
		return &KPI{
			ID:          "KPI_Goal_ETA",
			Name:        "Goal ETA",
			Value:       nil,
			Unit:        "days",
			WindowDays:  14,
			Explanation: "Estimated days to reach target weight (not losing)",
			Formula:     "(Current - Target) / Trend",
			Target:      nil,
			IsGood:      boolPtr(false),
		}
	}

	etaDays := (currentWeight - e.consts.TargetWeightKg) / math.Abs(slope)
	return &KPI{
		ID:          "KPI_Goal_ETA",
		Name:        "Goal ETA",
		Value:       round0p(etaDays),
		Unit:        "days",
		WindowDays:  14,
		Explanation: "Estimated days to reach the target weight at current rate",
		Formula:     "(Current weight - Target) / |Trend slope|",
		Target:      floatPtr(90),
		IsGood:      boolPtr(etaDays <= 120),
	}
}

func (e *Engine) adherenceScore(table []metrics.DayRow, days int) *KPI {
	if len(table) < 7 {
		return nil
	}

	score := 100.0

	// coverage penalty, max -30 points
	coverage := float64(countComplete(table)) / float64(days) * 100
	if coverage < 90 {
		score -= (90 - coverage) / 3
	}

	// trend penalty, max -30 points
	if avgs := nonNil(table, func(r metrics.DayRow) *float64 { return r.Weight7dAvgKg }); len(avgs) >= 7 {
		slopePerWeek := slopeOf(tail(avgs, 7)) * 7
		if slopePerWeek > 0 {
			score -= 30
		} else if slopePerWeek > -0.2 {
			score -= 15
		}
	}

	// consistency penalty, max -20 points
	if streak := currentStreak(table); streak < 7 {
		score -= float64(7-streak) * 3
	}

	// volatility penalty, max -20 points
	if len(table) >= 14 {
		std := stats.SampleStdDev(tail(rawWeights(table), 14))
		if std > 1.5 {
			score -= math.Min(20, (std-1.5)*10)
		}
	}

	score = math.Max(0, math.Min(100, score))
	return &KPI{
		ID:          "KPI_Adherence_Score",
		Name:        "Adherence Score",
		Value:       round0p(score),
		Unit:        "points (0-100)",
		WindowDays:  days,
		Explanation: "Overall adherence score based on coverage, trend, consistency, and volatility",
		Formula:     "100 - penalties (coverage, trend, streak, volatility)",
		Target:      floatPtr(80),
		IsGood:      boolPtr(score >= 70),
	}
}

// currentStreak counts consecutive calendar days with entries, walking
// back from the most recent row
func currentStreak(table []metrics.DayRow) int {
	streak := 1
	for i := len(table) - 1; i > 0; i-- {
		if table[i].Date.DaysSince(table[i-1].Date) != 1 {
			break
		}
		streak++
	}
	return streak
}

// countComplete counts rows with both intake and sport calories logged
func countComplete(table []metrics.DayRow) int {
	var count int
	for _, row := range table {
		if row.CalInKcal != nil && row.CalOutSportKcal != nil {
			count++
		}
	}
	return count
}

func rawWeights(table []metrics.DayRow) []float64 {
	weights := make([]float64, len(table))
	for i, row := range table {
		weights[i] = row.WeightKg
	}
	return weights
}

func nonNil(table []metrics.DayRow, get func(metrics.DayRow) *float64) []float64 {
	var values []float64
	for _, row := range table {
		if v := get(row); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// slopeOf fits a line through the values against their positions and
// returns the per-step slope
func slopeOf(values []float64) float64 {
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	fit, err := stats.LinearFit(x, values)
	if err != nil {
		return 0
	}
	return fit.Slope
}

func roundTo(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

func round0p(v float64) *float64 { return floatPtr(roundTo(v, 0)) }
func round1p(v float64) *float64 { return floatPtr(roundTo(v, 1)) }
func round2p(v float64) *float64 { return floatPtr(roundTo(v, 2)) }

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
