package diet

import (
	"context"
	"sort"
)

// RepoMock is an in-memory entries repo used in tests of the handlers
// and the analytics engines
type RepoMock struct {
	nextID  int
	entries map[int]*Entry
}

func NewMockEntriesRepo() *RepoMock {
	return &RepoMock{
		nextID:  1,
		entries: make(map[int]*Entry),
	}
}

func (r *RepoMock) Add(_ context.Context, entry Entry) (*Entry, error) {
	for _, e := range r.entries {
		if e.Date.Equal(entry.Date.Time) {
			return nil, ErrEntryAlreadyExists
		}
	}
	entry.ID = r.nextID
	r.nextID++
	r.entries[entry.ID] = &entry
	return &entry, nil
}

func (r *RepoMock) Get(_ context.Context, id int) (*Entry, error) {
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

func (r *RepoMock) GetByDate(_ context.Context, day Day) (*Entry, error) {
	for _, e := range r.entries {
		if e.Date.Equal(day.Time) {
			return e, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (r *RepoMock) List(_ context.Context, params ListParams) ([]Entry, error) {
	var entries []Entry
	for _, e := range r.entries {
		if params.From != nil && e.Date.Before(params.From.Time) {
			continue
		}
		if params.To != nil && e.Date.After(params.To.Time) {
			continue
		}
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date.Time)
	})

	if params.Limit > 0 {
		if params.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[params.Offset:]
		if len(entries) > params.Limit {
			entries = entries[:params.Limit]
		}
	}

	return entries, nil
}

func (r *RepoMock) Update(ctx context.Context, id int, params UpdateEntryParams) (*Entry, error) {
	entry, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.WeightKg != nil {
		entry.WeightKg = *params.WeightKg
	}
	if params.BodyFatPct != nil {
		entry.BodyFatPct = params.BodyFatPct
	}
	if params.CalInKcal != nil {
		entry.CalInKcal = params.CalInKcal
	}
	if params.CalOutSportKcal != nil {
		entry.CalOutSportKcal = params.CalOutSportKcal
	}
	if params.Notes != nil {
		entry.Notes = *params.Notes
	}
	return entry, nil
}

func (r *RepoMock) Delete(_ context.Context, id int) error {
	if _, ok := r.entries[id]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *RepoMock) Count(_ context.Context) (int, error) {
	return len(r.entries), nil
}
