// Package insights is the HTTP surface of the analytics engines:
// the derived metrics table, summary stats, KPIs, forecasts, the
// target-calorie calculator and red flags.
package insights

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/diettracker/internal/diet"
	dietforecast "github.com/2beens/diettracker/internal/diet/forecast"
	dietkpi "github.com/2beens/diettracker/internal/diet/kpi"
	dietmetrics "github.com/2beens/diettracker/internal/diet/metrics"
	"github.com/2beens/diettracker/internal/diet/redflags"
	"github.com/2beens/diettracker/internal/telemetry/metrics"
	"github.com/2beens/diettracker/internal/telemetry/tracing"
	"github.com/2beens/diettracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const defaultWindowDays = 30

type metricsEngine interface {
	TableForDays(ctx context.Context, days int) ([]dietmetrics.DayRow, error)
	TableForRange(ctx context.Context, from, to diet.Day) ([]dietmetrics.DayRow, error)
	Summary(ctx context.Context, days int) (*dietmetrics.SummaryStats, error)
}

type kpiEngine interface {
	ComputeAll(ctx context.Context, days int) ([]dietkpi.KPI, error)
}

type forecastEngine interface {
	Generate(ctx context.Context, params dietforecast.GenerateParams) ([]dietforecast.Point, *dietforecast.Summary, error)
	TargetCalories(targetWeightKg float64, targetDays int, currentWeightKg, avgSportKcal float64) dietforecast.TargetCalories
}

type redFlagsEngine interface {
	DetectAll(ctx context.Context, days int) ([]redflags.Flag, error)
}

type Handler struct {
	metricsEngine  metricsEngine
	kpiEngine      kpiEngine
	forecastEngine forecastEngine
	redFlagsEngine redFlagsEngine
	metrics        *metrics.Manager
}

func NewHandler(
	metricsEngine metricsEngine,
	kpiEngine kpiEngine,
	forecastEngine forecastEngine,
	redFlagsEngine redFlagsEngine,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		metricsEngine:  metricsEngine,
		kpiEngine:      kpiEngine,
		forecastEngine: forecastEngine,
		redFlagsEngine: redFlagsEngine,
		metrics:        metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/metrics-table", handler.HandleMetricsTable).Methods("GET", "OPTIONS").Name("metrics-table")
	router.HandleFunc("/summary", handler.HandleSummary).Methods("GET", "OPTIONS").Name("summary")
	router.HandleFunc("/kpi", handler.HandleKPIs).Methods("GET", "OPTIONS").Name("kpi")
	router.HandleFunc("/forecast", handler.HandleForecast).Methods("GET", "OPTIONS").Name("forecast")
	router.HandleFunc("/forecast/target-calories", handler.HandleTargetCalories).Methods("GET", "OPTIONS").Name("target-calories")
	router.HandleFunc("/redflags", handler.HandleRedFlags).Methods("GET", "OPTIONS").Name("redflags")
}

// HandleMetricsTable serves the derived daily table, either for the
// last ?days=N days or for an explicit ?from=&to= date range
func (handler *Handler) HandleMetricsTable(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.metricsTable")
	defer span.End()

	var table []dietmetrics.DayRow
	var err error
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, parseErr := diet.ParseDay(fromStr)
		if parseErr != nil {
			http.Error(w, "invalid from date (expected YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		to := diet.Today()
		if toStr := r.URL.Query().Get("to"); toStr != "" {
			if to, parseErr = diet.ParseDay(toStr); parseErr != nil {
				http.Error(w, "invalid to date (expected YYYY-MM-DD)", http.StatusBadRequest)
				return
			}
		}
		table, err = handler.metricsEngine.TableForRange(ctx, from, to)
	} else {
		days, ok := daysParam(w, r)
		if !ok {
			return
		}
		table, err = handler.metricsEngine.TableForDays(ctx, days)
	}
	if err != nil {
		log.Errorf("failed to compute metrics table: %s", err)
		http.Error(w, "failed to compute metrics table", http.StatusInternalServerError)
		return
	}

	if table == nil {
		table = []dietmetrics.DayRow{}
	}
	pkg.WriteJSON(w, table)
}

func (handler *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.summary")
	defer span.End()

	days, ok := daysParam(w, r)
	if !ok {
		return
	}

	summary, err := handler.metricsEngine.Summary(ctx, days)
	if err != nil {
		log.Errorf("failed to compute summary: %s", err)
		http.Error(w, "failed to compute summary", http.StatusInternalServerError)
		return
	}

	if summary == nil {
		pkg.WriteJSON(w, struct{}{})
		return
	}
	pkg.WriteJSON(w, summary)
}

func (handler *Handler) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.kpi")
	defer span.End()

	days, ok := daysParam(w, r)
	if !ok {
		return
	}

	kpis, err := handler.kpiEngine.ComputeAll(ctx, days)
	if err != nil {
		log.Errorf("failed to compute kpis: %s", err)
		http.Error(w, "failed to compute kpis", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, kpis)
}

type ForecastResponse struct {
	Points  []dietforecast.Point  `json:"points"`
	Summary *dietforecast.Summary `json:"summary"`
}

func (handler *Handler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.forecast")
	defer span.End()

	params := dietforecast.GenerateParams{
		HorizonDays:  defaultWindowDays,
		LookbackDays: defaultWindowDays,
		Method:       dietforecast.MethodAuto,
	}

	query := r.URL.Query()
	if horizonStr := query.Get("horizon"); horizonStr != "" {
		horizon, err := strconv.Atoi(horizonStr)
		if err != nil || horizon < 1 {
			http.Error(w, "invalid horizon", http.StatusBadRequest)
			return
		}
		params.HorizonDays = horizon
	}
	if lookbackStr := query.Get("lookback"); lookbackStr != "" {
		lookback, err := strconv.Atoi(lookbackStr)
		if err != nil || lookback < 1 {
			http.Error(w, "invalid lookback", http.StatusBadRequest)
			return
		}
		params.LookbackDays = lookback
	}
	if targetStr := query.Get("target"); targetStr != "" {
		target, err := strconv.ParseFloat(targetStr, 64)
		if err != nil {
			http.Error(w, "invalid target weight", http.StatusBadRequest)
			return
		}
		params.TargetWeightKg = &target
	}
	switch method := dietforecast.Method(query.Get("method")); method {
	case "":
	case dietforecast.MethodAuto, dietforecast.MethodLinear, dietforecast.MethodCalorieBased:
		params.Method = method
	default:
		http.Error(w, "invalid method (expected auto, linear or calorie_based)", http.StatusBadRequest)
		return
	}

	points, summary, err := handler.forecastEngine.Generate(ctx, params)
	if err != nil {
		if errors.Is(err, dietforecast.ErrInsufficientData) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Errorf("failed to generate forecast: %s", err)
		http.Error(w, "failed to generate forecast", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterForecasts.Inc()

	pkg.WriteJSON(w, ForecastResponse{
		Points:  points,
		Summary: summary,
	})
}

func (handler *Handler) HandleTargetCalories(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.targetCalories")
	defer span.End()

	query := r.URL.Query()
	target, err := strconv.ParseFloat(query.Get("target"), 64)
	if err != nil || target <= 0 {
		http.Error(w, "invalid target weight", http.StatusBadRequest)
		return
	}
	days, err := strconv.Atoi(query.Get("days"))
	if err != nil || days < 1 {
		http.Error(w, "invalid days", http.StatusBadRequest)
		return
	}
	current, err := strconv.ParseFloat(query.Get("current"), 64)
	if err != nil || current <= 0 {
		http.Error(w, "invalid current weight", http.StatusBadRequest)
		return
	}

	var avgSport float64
	if sportStr := query.Get("sport"); sportStr != "" {
		if avgSport, err = strconv.ParseFloat(sportStr, 64); err != nil || avgSport < 0 {
			http.Error(w, "invalid sport calories", http.StatusBadRequest)
			return
		}
	}

	pkg.WriteJSON(w, handler.forecastEngine.TargetCalories(target, days, current, avgSport))
}

// HandleRedFlags serves detected anomalies, most severe first
func (handler *Handler) HandleRedFlags(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.redflags")
	defer span.End()

	days, ok := daysParam(w, r)
	if !ok {
		return
	}

	flags, err := handler.redFlagsEngine.DetectAll(ctx, days)
	if err != nil {
		log.Errorf("failed to detect red flags: %s", err)
		http.Error(w, "failed to detect red flags", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterRedFlags.Add(float64(len(flags)))

	redflags.SortBySeverity(flags)
	pkg.WriteJSON(w, flags)
}

func daysParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	daysStr := r.URL.Query().Get("days")
	if daysStr == "" {
		return defaultWindowDays, true
	}
	days, err := strconv.Atoi(daysStr)
	if err != nil || days < 1 {
		http.Error(w, "invalid days", http.StatusBadRequest)
		return 0, false
	}
	return days, true
}
