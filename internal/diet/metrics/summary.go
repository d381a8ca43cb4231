package metrics

import (
	"context"

	"github.com/2beens/diettracker/internal/diet/stats"
	"github.com/2beens/diettracker/internal/telemetry/tracing"
)

// SummaryStats are the aggregate statistics over the recent period.
// Statistics over optional signals are computed on the non-nil subset
// only and stay nil when the signal was never measured.
type SummaryStats struct {
	PeriodDays   int     `json:"period_days"`
	DataCoverage float64 `json:"data_coverage"`

	WeightCurrentKg float64 `json:"weight_current_kg"`
	WeightStartKg   float64 `json:"weight_start_kg"`
	WeightChangeKg  float64 `json:"weight_change_kg"`
	WeightAvgKg     float64 `json:"weight_avg_kg"`
	WeightMinKg     float64 `json:"weight_min_kg"`
	WeightMaxKg     float64 `json:"weight_max_kg"`
	WeightStdKg     float64 `json:"weight_std_kg"`

	BFCurrentPct *float64 `json:"bf_current_pct"`
	BFAvgPct     *float64 `json:"bf_avg_pct"`
	FMCurrentKg  *float64 `json:"fm_current_kg"`
	FMAvgKg      *float64 `json:"fm_avg_kg"`

	CalNetAvgKcal      *float64 `json:"cal_net_avg_kcal"`
	CalInAvgKcal       *float64 `json:"cal_in_avg_kcal"`
	CalOutSportAvgKcal *float64 `json:"cal_out_sport_avg_kcal"`
	CalOutBMRKcal      float64  `json:"cal_out_bmr_kcal"`
	CalOutTotalAvgKcal float64  `json:"cal_out_total_avg_kcal"`

	Weight7dAvgKg  *float64 `json:"weight_7d_avg_kg"`
	Weight14dAvgKg *float64 `json:"weight_14d_avg_kg"`
}

// Summary computes summary statistics over the last `days` days.
// Returns nil when there is no data at all (serialized as an empty object).
func (e *Engine) Summary(ctx context.Context, days int) (_ *SummaryStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.diet.metrics.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	table, err := e.TableForDays(ctx, days)
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, nil
	}

	weights := make([]float64, len(table))
	for i, row := range table {
		weights[i] = row.WeightKg
	}

	last := table[len(table)-1]
	summary := &SummaryStats{
		PeriodDays:   days,
		DataCoverage: float64(len(table)) / float64(days) * 100,

		WeightCurrentKg: last.WeightKg,
		WeightStartKg:   table[0].WeightKg,
		WeightChangeKg:  last.WeightKg - table[0].WeightKg,
		WeightAvgKg:     stats.Mean(weights),
		WeightMinKg:     stats.Min(weights),
		WeightMaxKg:     stats.Max(weights),
		WeightStdKg:     stats.SampleStdDev(weights),

		BFCurrentPct: lastNonNil(table, func(r DayRow) *float64 { return r.BodyFatPct }),
		BFAvgPct:     avgNonNil(table, func(r DayRow) *float64 { return r.BodyFatPct }),
		FMCurrentKg:  lastNonNil(table, func(r DayRow) *float64 { return r.FatMassKg }),
		FMAvgKg:      avgNonNil(table, func(r DayRow) *float64 { return r.FatMassKg }),

		CalNetAvgKcal:      avgNonNil(table, func(r DayRow) *float64 { return r.CalNetKcal }),
		CalInAvgKcal:       avgNonNil(table, func(r DayRow) *float64 { return r.CalInKcal }),
		CalOutSportAvgKcal: avgNonNil(table, func(r DayRow) *float64 { return r.CalOutSportKcal }),
		CalOutBMRKcal:      e.consts.BMRKcal,
		CalOutTotalAvgKcal: e.consts.BMRKcal,

		Weight7dAvgKg:  last.Weight7dAvgKg,
		Weight14dAvgKg: last.Weight14dAvgKg,
	}

	if summary.CalOutSportAvgKcal != nil {
		summary.CalOutTotalAvgKcal = e.consts.BMRKcal + *summary.CalOutSportAvgKcal
	}

	return summary, nil
}

func lastNonNil(table []DayRow, get func(DayRow) *float64) *float64 {
	for i := len(table) - 1; i >= 0; i-- {
		if v := get(table[i]); v != nil {
			value := *v
			return &value
		}
	}
	return nil
}

func avgNonNil(table []DayRow, get func(DayRow) *float64) *float64 {
	var sum float64
	var count int
	for _, row := range table {
		if v := get(row); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := sum / float64(count)
	return &avg
}
