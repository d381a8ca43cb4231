package diet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/2beens/diettracker/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain will run goleak after all tests have been run in the package
// to detect any goroutine leaks
func TestMain(m *testing.M) {
	m.Run()
	goleak.VerifyTestMain(m)
}

func testRouter(t *testing.T) (*mux.Router, *RepoMock) {
	t.Helper()
	repo := NewMockEntriesRepo()
	handler := NewHandler(repo, metrics.NewTestManager())
	require.NotNil(t, handler)

	router := mux.NewRouter()
	handler.SetupRoutes(router)
	return router, repo
}

func TestHandler_Add(t *testing.T) {
	router, repo := testRouter(t)

	req := httptest.NewRequest(
		"POST", "/entries",
		strings.NewReader(`{"date":"2026-01-15","weight":83.44,"calories_in":1850}`),
	)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var added Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &added))
	assert.Equal(t, 1, added.ID)
	assert.Equal(t, "2026-01-15", added.Date.String())
	assert.Equal(t, 83.4, added.WeightKg) // normalized to 1 decimal
	assert.Equal(t, "manual", added.Source)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandler_Add_DuplicateDate(t *testing.T) {
	router, _ := testRouter(t)

	body := `{"date":"2026-01-15","weight":83.4}`
	for i, wantStatus := range []int{http.StatusOK, http.StatusConflict} {
		req := httptest.NewRequest("POST", "/entries", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, wantStatus, rr.Code, "request %d", i)
	}
}

func TestHandler_Add_Invalid(t *testing.T) {
	router, _ := testRouter(t)

	for name, body := range map[string]string{
		"weight too low":  `{"date":"2026-01-15","weight":25}`,
		"weight too high": `{"date":"2026-01-15","weight":250}`,
		"bodyfat too low": `{"date":"2026-01-15","weight":80,"bodyfat_pct":1}`,
		"negative intake": `{"date":"2026-01-15","weight":80,"calories_in":-100}`,
		"missing date":    `{"weight":80}`,
	} {
		req := httptest.NewRequest("POST", "/entries", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, name)
	}
}

func TestHandler_GetByDate(t *testing.T) {
	router, repo := testRouter(t)

	day, err := ParseDay("2026-01-15")
	require.NoError(t, err)
	_, err = repo.Add(context.Background(), Entry{Date: day, WeightKg: 83.4})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/entries/date/2026-01-15", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var entry Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entry))
	assert.Equal(t, 83.4, entry.WeightKg)

	req = httptest.NewRequest("GET", "/entries/date/2026-01-16", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Update(t *testing.T) {
	router, repo := testRouter(t)

	day, err := ParseDay("2026-01-15")
	require.NoError(t, err)
	added, err := repo.Add(context.Background(), Entry{Date: day, WeightKg: 83.4})
	require.NoError(t, err)

	req := httptest.NewRequest(
		"PUT", fmt.Sprintf("/entries/%d", added.ID),
		strings.NewReader(`{"weight":82.9,"notes":"after rest day"}`),
	)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var updated Entry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, 82.9, updated.WeightKg)
	assert.Equal(t, "after rest day", updated.Notes)

	// unknown id
	req = httptest.NewRequest("PUT", "/entries/555", strings.NewReader(`{"weight":82.9}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_Delete(t *testing.T) {
	router, repo := testRouter(t)

	day, err := ParseDay("2026-01-15")
	require.NoError(t, err)
	added, err := repo.Add(context.Background(), Entry{Date: day, WeightKg: 83.4})
	require.NoError(t, err)

	req := httptest.NewRequest("DELETE", fmt.Sprintf("/entries/%d", added.ID), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp DeleteEntryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, added.ID, resp.DeletedID)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandler_List_Paged(t *testing.T) {
	router, repo := testRouter(t)

	day, err := ParseDay("2026-01-01")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = repo.Add(context.Background(), Entry{
			Date:     day.AddDays(i),
			WeightKg: 85 - float64(i)*0.2,
		})
		require.NoError(t, err)
	}

	req := httptest.NewRequest("GET", "/entries/list/page/1/size/2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Total)
	require.Len(t, resp.Entries, 2)
	// newest first
	assert.Equal(t, "2026-01-05", resp.Entries[0].Date.String())
	assert.Equal(t, "2026-01-04", resp.Entries[1].Date.String())

	// date range filter
	req = httptest.NewRequest("GET", "/entries/list/page/1/size/10?from=2026-01-02&to=2026-01-03", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
}
