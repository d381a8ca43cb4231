package diet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/diettracker/internal/telemetry/metrics"
	"github.com/2beens/diettracker/internal/telemetry/tracing"
	"github.com/2beens/diettracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type entriesRepo interface {
	Add(ctx context.Context, entry Entry) (*Entry, error)
	Get(ctx context.Context, id int) (*Entry, error)
	GetByDate(ctx context.Context, day Day) (*Entry, error)
	List(ctx context.Context, params ListParams) ([]Entry, error)
	Update(ctx context.Context, id int, params UpdateEntryParams) (*Entry, error)
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

type ListResponse struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

type DeleteEntryResponse struct {
	DeletedID int `json:"deletedId"`
}

type Handler struct {
	repo    entriesRepo
	metrics *metrics.Manager
}

func NewHandler(repo entriesRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/entries", handler.HandleAdd).Methods("POST", "OPTIONS").Name("new-entry")
	router.HandleFunc("/entries/{id}", handler.HandleGet).Methods("GET", "OPTIONS").Name("get-entry")
	router.HandleFunc("/entries/date/{date}", handler.HandleGetByDate).Methods("GET", "OPTIONS").Name("get-entry-by-date")
	router.HandleFunc("/entries/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-entry")
	router.HandleFunc("/entries/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-entry")
	router.HandleFunc("/entries/list/page/{page}/size/{size}", handler.HandleList).Methods("GET", "OPTIONS").Name("list-entries")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.diet.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var entry Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		log.Tracef("new entry, unmarshal json params: %s", err)
		http.Error(w, "add entry failed", http.StatusBadRequest)
		return
	}

	entry.Normalize()
	if err := entry.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	addedEntry, err := handler.repo.Add(ctx, entry)
	if err != nil {
		if errors.Is(err, ErrEntryAlreadyExists) {
			http.Error(w, "entry for that date already exists", http.StatusConflict)
			return
		}
		log.Errorf("failed to add new entry for [%s]: %s", entry.Date, err)
		http.Error(w, "error, failed to add new entry", http.StatusInternalServerError)
		return
	}

	handler.metrics.CounterEntries.Inc()

	log.Debugf("new diet entry added: [%s]: %d", addedEntry.Date, addedEntry.ID)
	pkg.WriteJSON(w, addedEntry)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.diet.get")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	entry, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			http.Error(w, "entry not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get entry %d: %s", id, err)
		http.Error(w, "failed to get entry", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, entry)
}

func (handler *Handler) HandleGetByDate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.diet.getByDate")
	defer span.End()

	day, err := ParseDay(mux.Vars(r)["date"])
	if err != nil {
		http.Error(w, "invalid date format (expected YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	entry, err := handler.repo.GetByDate(ctx, day)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			http.Error(w, "entry not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get entry for date %s: %s", day, err)
		http.Error(w, "failed to get entry", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, entry)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.diet.update")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	var params UpdateEntryParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("update entry, unmarshal json params: %s", err)
		http.Error(w, "update entry failed", http.StatusBadRequest)
		return
	}

	if params.WeightKg != nil && (*params.WeightKg < 30 || *params.WeightKg > 200) {
		http.Error(w, "weight must be between 30-200 kg", http.StatusBadRequest)
		return
	}
	if params.BodyFatPct != nil && (*params.BodyFatPct < 3 || *params.BodyFatPct > 60) {
		http.Error(w, "body fat % should be between 3-60%", http.StatusBadRequest)
		return
	}

	updatedEntry, err := handler.repo.Update(ctx, id, params)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			http.Error(w, "entry not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update entry %d: %s", id, err)
		http.Error(w, "failed to update entry", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, updatedEntry)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.diet.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			http.Error(w, "entry not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete entry %d: %s", id, err)
		http.Error(w, "failed to delete entry", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, DeleteEntryResponse{DeletedID: id})
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.diet.list")
	defer span.End()

	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil || page < 1 {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil || size < 1 {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}

	params := ListParams{
		Limit:  size,
		Offset: (page - 1) * size,
	}
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, err := ParseDay(fromStr)
		if err != nil {
			http.Error(w, "invalid from date (expected YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		params.From = &from
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err := ParseDay(toStr)
		if err != nil {
			http.Error(w, "invalid to date (expected YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		params.To = &to
	}

	entries, err := handler.repo.List(ctx, params)
	if err != nil {
		log.Errorf("failed to list entries: %s", err)
		http.Error(w, "failed to list entries", http.StatusInternalServerError)
		return
	}

	total, err := handler.repo.Count(ctx)
	if err != nil {
		log.Errorf("failed to count entries: %s", err)
		http.Error(w, "failed to count entries", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []Entry{}
	}
	pkg.WriteJSON(w, ListResponse{
		Entries: entries,
		Total:   total,
	})
}
