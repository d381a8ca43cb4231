package redflags

import (
	"context"

	"github.com/2beens/diettracker/internal/diet"
	"github.com/2beens/diettracker/internal/diet/metrics"
	"github.com/2beens/diettracker/internal/telemetry/tracing"
)

type metricsSource interface {
	TableForDays(ctx context.Context, days int) ([]metrics.DayRow, error)
}

type Engine struct {
	metrics metricsSource
	consts  diet.Constants
	rules   []Rule
}

func NewEngine(metricsSource metricsSource, consts diet.Constants) *Engine {
	return &Engine{
		metrics: metricsSource,
		consts:  consts,
		rules:   DefaultRules(),
	}
}

// DetectAll runs the whole rule catalog over the last `days` days.
// Empty slice (not an error) when there is no data.
func (e *Engine) DetectAll(ctx context.Context, days int) (_ []Flag, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "engine.diet.redflags.detectAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	table, err := e.metrics.TableForDays(ctx, days)
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return []Flag{}, nil
	}

	flags := make([]Flag, 0)
	for _, rule := range e.rules {
		flags = append(flags, rule.Evaluate(table, days, e.consts)...)
	}
	return flags, nil
}
