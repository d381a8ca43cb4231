package metrics

import (
	"context"
	"sort"

	"github.com/2beens/diettracker/internal/diet"
	"github.com/2beens/diettracker/internal/telemetry/tracing"
)

// rollingWindows are the window sizes (in rows) for rolling averages
var rollingWindows = []int{7, 14, 30}

// DayRow is one day of derived metrics. The JSON field names are stable:
// the export and LLM layers key off them.
type DayRow struct {
	Date            diet.Day `json:"date"`
	WeightKg        float64  `json:"weight"`
	BodyFatPct      *float64 `json:"bodyfat_pct"`
	FatMassKg       *float64 `json:"fat_mass"`
	LeanMassKg      *float64 `json:"lean_mass"`
	CalInKcal       *float64 `json:"calories_in"`
	CalOutSportKcal *float64 `json:"calories_exercise_out"`
	CalNetKcal      *float64 `json:"net_calories"`

	Weight7dAvgKg    *float64 `json:"weight_7d_avg"`
	Weight14dAvgKg   *float64 `json:"weight_14d_avg"`
	Weight30dAvgKg   *float64 `json:"weight_30d_avg"`
	CalNet7dAvgKcal  *float64 `json:"net_calories_7d_avg"`
	CalNet14dAvgKcal *float64 `json:"net_calories_14d_avg"`
	CalNet30dAvgKcal *float64 `json:"net_calories_30d_avg"`
}

type entriesRepo interface {
	List(ctx context.Context, params diet.ListParams) ([]diet.Entry, error)
}

// Engine computes the derived daily metrics table from raw entries.
// It is a pure function of the repo contents, recomputed on every call.
type Engine struct {
	repo   entriesRepo
	consts diet.Constants
}

func NewEngine(repo entriesRepo, consts diet.Constants) *Engine {
	return &Engine{
		repo:   repo,
		consts: consts,
	}
}

// TableForDays returns the derived table for the last `days` days
func (e *Engine) TableForDays(ctx context.Context, days int) ([]DayRow, error) {
	to := diet.Today()
	from := to.AddDays(-days)
	return e.TableForRange(ctx, from, to)
}

// TableForRange returns the derived table for the given date range,
// sorted by date ascending. Empty (nil) table when no entries exist.
func (e *Engine) TableForRange(ctx context.Context, from, to diet.Day) (_ []DayRow, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.diet.metrics.table")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	entries, err := e.repo.List(ctx, diet.ListParams{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date.Time)
	})

	table := make([]DayRow, len(entries))
	for i, entry := range entries {
		row := DayRow{
			Date:            entry.Date,
			WeightKg:        entry.WeightKg,
			BodyFatPct:      entry.BodyFatPct,
			CalInKcal:       entry.CalInKcal,
			CalOutSportKcal: entry.CalOutSportKcal,
		}

		// body composition, only when body fat was measured
		if entry.BodyFatPct != nil {
			fatMass := entry.WeightKg * (*entry.BodyFatPct / 100)
			leanMass := entry.WeightKg - fatMass
			row.FatMassKg = &fatMass
			row.LeanMassKg = &leanMass
		}

		// net balance = in - BMR - sport; unknown intake means unknown balance,
		// while unlogged exercise is assumed to be none
		if entry.CalInKcal != nil {
			sport := 0.0
			if entry.CalOutSportKcal != nil {
				sport = *entry.CalOutSportKcal
			}
			net := *entry.CalInKcal - e.consts.BMRKcal - sport
			row.CalNetKcal = &net
		}

		table[i] = row
	}

	weights := make([]*float64, len(table))
	nets := make([]*float64, len(table))
	for i := range table {
		w := table[i].WeightKg
		weights[i] = &w
		nets[i] = table[i].CalNetKcal
	}

	for _, window := range rollingWindows {
		weightAvgs := rollingAvg(weights, window)
		netAvgs := rollingAvg(nets, window)
		for i := range table {
			switch window {
			case 7:
				table[i].Weight7dAvgKg = weightAvgs[i]
				table[i].CalNet7dAvgKcal = netAvgs[i]
			case 14:
				table[i].Weight14dAvgKg = weightAvgs[i]
				table[i].CalNet14dAvgKcal = netAvgs[i]
			case 30:
				table[i].Weight30dAvgKg = weightAvgs[i]
				table[i].CalNet30dAvgKcal = netAvgs[i]
			}
		}
	}

	return table, nil
}

// rollingAvg computes a trailing moving average over row positions.
// The average at position i is defined only when at least 70% of the
// trailing `window` slots hold non-nil values, to avoid misleadingly
// precise averages over sparse data.
func rollingAvg(values []*float64, window int) []*float64 {
	// ceil(0.7 * window)
	minPeriods := (7*window + 9) / 10
	if minPeriods < 1 {
		minPeriods = 1
	}

	avgs := make([]*float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}

		var sum float64
		var count int
		for j := lo; j <= i; j++ {
			if values[j] == nil {
				continue
			}
			sum += *values[j]
			count++
		}

		if count >= minPeriods {
			avg := sum / float64(count)
			avgs[i] = &avg
		}
	}
	return avgs
}
