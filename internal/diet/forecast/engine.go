// Package forecast projects the weight trajectory into the future,
// either from the recent weight trend (linear regression) or from the
// average calorie balance (energy model), with widening confidence
// bounds per projected day.
package forecast

import (
	"context"
	"errors"
	"math"

	"github.com/2beens/diettracker/internal/diet"
	"github.com/2beens/diettracker/internal/diet/metrics"
	"github.com/2beens/diettracker/internal/diet/stats"
	"github.com/2beens/diettracker/internal/telemetry/tracing"
)

// ErrInsufficientData is returned when the lookback window holds fewer
// than MinDataDays entries. Forecasting is the only engine that refuses
// to run on thin data instead of degrading.
var ErrInsufficientData = errors.New("insufficient data for forecasting (need at least 7 days)")

// MinDataDays is the minimum number of entries required to forecast
const MinDataDays = 7

type Method string

const (
	MethodAuto         Method = "auto"
	MethodLinear       Method = "linear"
	MethodCalorieBased Method = "calorie_based"
)

// Point is one projected day
type Point struct {
	Date              diet.Day `json:"date"`
	PredictedWeightKg float64  `json:"predicted_weight_kg"`
	ConfidenceLowerKg float64  `json:"confidence_lower_kg"`
	ConfidenceUpperKg float64  `json:"confidence_upper_kg"`
	Method            Method   `json:"method"`
}

// Summary aggregates a forecast run. TargetDate is set only when a
// target weight was given and the projected trend reaches it within a
// year.
type Summary struct {
	HorizonDays      int       `json:"horizon_days"`
	StartWeightKg    float64   `json:"start_weight_kg"`
	EndWeightKg      float64   `json:"end_weight_kg"`
	TotalChangeKg    float64   `json:"total_change_kg"`
	AvgRateKgPerWeek float64   `json:"avg_rate_kg_per_week"`
	TargetWeightKg   *float64  `json:"target_weight_kg"`
	TargetDate       *diet.Day `json:"target_date"`
	ConfidenceLevel  float64   `json:"confidence_level"`
	Method           Method    `json:"method"`
}

// TargetCalories is the intake recommendation for reaching a goal
// weight within a deadline
type TargetCalories struct {
	RequiredIntakeKcal float64 `json:"required_intake_kcal"`
	DailyNetKcal       float64 `json:"daily_net_kcal"`
	WeeklyRateKg       float64 `json:"weekly_rate_kg"`
	TotalChangeKg      float64 `json:"total_change_kg"`
	IsHealthy          bool    `json:"is_healthy"`
}

type GenerateParams struct {
	HorizonDays    int
	LookbackDays   int
	TargetWeightKg *float64
	Method         Method
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

// Generate produces the per-day forecast points and their summary.
// With MethodAuto the calorie model is chosen when at least half of the
// lookback rows carry a net calorie balance, the weight trend otherwise.
func (e *Engine) Generate(ctx context.Context, params GenerateParams) (_ []Point, _ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.diet.forecast.generate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if params.LookbackDays <= 0 {
		params.LookbackDays = 30
	}
	if params.Method == "" {
		params.Method = MethodAuto
	}

	table, err := e.metrics.TableForDays(ctx, params.LookbackDays)
	if err != nil {
		return nil, nil, err
	}
	if len(table) < MinDataDays {
		return nil, nil, ErrInsufficientData
	}

	method := params.Method
	if method == MethodAuto {
		if countNet(table) >= float64(params.LookbackDays)*0.5 {
			method = MethodCalorieBased
		} else {
			method = MethodLinear
		}
	}

	if method == MethodCalorieBased {
		return e.forecastCalorieBased(table, params.HorizonDays, params.TargetWeightKg)
	}
	return e.forecastLinear(table, params.HorizonDays, params.TargetWeightKg)
}

// forecastLinear extrapolates the weight trend. Prefers the 7-day
// rolling average over raw weights when it carries enough points, since
// the smoothed series is less hostage to water weight.
func (e *Engine) forecastLinear(
	table []metrics.DayRow,
	horizonDays int,
	targetWeightKg *float64,
) ([]Point, *Summary, error) {
	dates, weights := smoothedSeries(table)

	startDate := dates[0]
	x := make([]float64, len(dates))
	for i, d := range dates {
		x[i] = float64(d.DaysSince(startDate))
	}

	fit, err := stats.LinearFit(x, weights)
	if err != nil {
		return nil, nil, err
	}

	lastDate := dates[len(dates)-1]
	lastWeight := weights[len(weights)-1]
	lastDay := x[len(x)-1]

	points := make([]Point, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		forecastDay := lastDay + float64(i)
		predicted := fit.Slope*forecastDay + fit.Intercept

		// prediction interval widens with distance from the fitted data
		seForecast := fit.ResidualStdErr * math.Sqrt(
			1+1/float64(fit.N)+(forecastDay-fit.MeanX)*(forecastDay-fit.MeanX)/fit.SumSqX,
		)

		points = append(points, Point{
			Date:              lastDate.AddDays(i),
			PredictedWeightKg: predicted,
			ConfidenceLowerKg: predicted - 2*seForecast,
			ConfidenceUpperKg: predicted + 2*seForecast,
			Method:            MethodLinear,
		})
	}

	summary := &Summary{
		HorizonDays:      horizonDays,
		StartWeightKg:    lastWeight,
		AvgRateKgPerWeek: fit.Slope * 7,
		TargetWeightKg:   targetWeightKg,
		ConfidenceLevel:  clamp01(fit.RSquared),
		Method:           MethodLinear,
	}
	if len(points) > 0 {
		summary.EndWeightKg = points[len(points)-1].PredictedWeightKg
		summary.TotalChangeKg = summary.EndWeightKg - lastWeight
	} else {
		summary.EndWeightKg = lastWeight
	}
	summary.TargetDate = targetDate(targetWeightKg, lastWeight, fit.Slope, lastDate)

	return points, summary, nil
}

// forecastCalorieBased converts the average daily calorie balance into
// a daily weight change via the energy density of body fat. Falls back
// to the linear model when fewer than 7 days carry calorie data.
func (e *Engine) forecastCalorieBased(
	table []metrics.DayRow,
	horizonDays int,
	targetWeightKg *float64,
) ([]Point, *Summary, error) {
	var nets []float64
	for _, row := range table {
		if row.CalNetKcal != nil {
			nets = append(nets, *row.CalNetKcal)
		}
	}
	if len(nets) < MinDataDays {
		return e.forecastLinear(table, horizonDays, targetWeightKg)
	}

	avgNet := stats.Mean(nets)
	dailyChangeKg := avgNet / e.consts.KcalPerKgFat

	lastDate := table[len(table)-1].Date
	lastWeight := table[len(table)-1].WeightKg

	calStd := stats.SampleStdDev(nets)
	weights := make([]float64, len(table))
	for i, row := range table {
		weights[i] = row.WeightKg
	}
	weightStd := stats.SampleStdDev(weights)

	points := make([]Point, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		predicted := lastWeight + dailyChangeKg*float64(i)

		// uncertainty grows with the square root of projected weeks
		daysFactor := math.Sqrt(float64(i) / 7.0)
		uncertainty := (weightStd*0.5 + (calStd/e.consts.KcalPerKgFat)*float64(i)*0.5) * daysFactor

		points = append(points, Point{
			Date:              lastDate.AddDays(i),
			PredictedWeightKg: predicted,
			ConfidenceLowerKg: predicted - 2*uncertainty,
			ConfidenceUpperKg: predicted + 2*uncertainty,
			Method:            MethodCalorieBased,
		})
	}

	// confidence rewards dense and steady calorie logging
	calCoverage := float64(len(nets)) / float64(len(table))
	calConsistency := 0.5
	if avgNet != 0 {
		calConsistency = 1.0 - calStd/math.Abs(avgNet)
	}

	summary := &Summary{
		HorizonDays:      horizonDays,
		StartWeightKg:    lastWeight,
		AvgRateKgPerWeek: dailyChangeKg * 7,
		TargetWeightKg:   targetWeightKg,
		ConfidenceLevel:  clamp01(calCoverage * calConsistency),
		Method:           MethodCalorieBased,
	}
	if len(points) > 0 {
		summary.EndWeightKg = points[len(points)-1].PredictedWeightKg
		summary.TotalChangeKg = summary.EndWeightKg - lastWeight
	} else {
		summary.EndWeightKg = lastWeight
	}
	summary.TargetDate = targetDate(targetWeightKg, lastWeight, dailyChangeKg, lastDate)

	return points, summary, nil
}

// TargetCalories computes the daily intake required to move from the
// current weight to the target weight in the given number of days
func (e *Engine) TargetCalories(
	targetWeightKg float64,
	targetDays int,
	currentWeightKg float64,
	avgSportKcal float64,
) TargetCalories {
	weightChangeKg := targetWeightKg - currentWeightKg
	totalKcalNeeded := weightChangeKg * e.consts.KcalPerKgFat
	dailyNetKcal := totalKcalNeeded / float64(targetDays)

	// NET = INTAKE - BMR - SPORT, so INTAKE = NET + BMR + SPORT
	requiredIntakeKcal := dailyNetKcal + e.consts.BMRKcal + avgSportKcal

	weeklyRateKg := weightChangeKg / float64(targetDays) * 7

	return TargetCalories{
		RequiredIntakeKcal: requiredIntakeKcal,
		DailyNetKcal:       dailyNetKcal,
		WeeklyRateKg:       weeklyRateKg,
		TotalChangeKg:      weightChangeKg,
		IsHealthy:          math.Abs(weeklyRateKg) <= 1.0,
	}
}

// smoothedSeries picks the weight series to fit the trend on: the
// 7-day rolling average when it has at least 7 points, raw weights
// otherwise
func smoothedSeries(table []metrics.DayRow) ([]diet.Day, []float64) {
	var dates []diet.Day
	var weights []float64
	for _, row := range table {
		if row.Weight7dAvgKg != nil {
			dates = append(dates, row.Date)
			weights = append(weights, *row.Weight7dAvgKg)
		}
	}
	if len(weights) >= MinDataDays {
		return dates, weights
	}

	dates = make([]diet.Day, len(table))
	weights = make([]float64, len(table))
	for i, row := range table {
		dates[i] = row.Date
		weights[i] = row.WeightKg
	}
	return dates, weights
}

func targetDate(targetWeightKg *float64, lastWeight, dailySlope float64, lastDate diet.Day) *diet.Day {
	if targetWeightKg == nil || dailySlope == 0 {
		return nil
	}
	daysToTarget := (*targetWeightKg - lastWeight) / dailySlope
	if daysToTarget <= 0 || daysToTarget > 365 {
		return nil
	}
	d := lastDate.AddDays(int(daysToTarget))
	return &d
}

func countNet(table []metrics.DayRow) float64 {
	var count int
	for _, row := range table {
		if row.CalNetKcal != nil {
			count++
		}
	}
	return float64(count)
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
