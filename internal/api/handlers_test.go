package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/middleware"
	"example.com/fitlog/internal/observability"
	"example.com/fitlog/internal/persistence/sqlite"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router *mux.Router
	clock  time.Time
}

func newTestServer(t *testing.T, repo domain.EntryRepository) *testServer {
	t.Helper()
	if repo == nil {
		store, err := sqlite.NewMemory()
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		repo = store
	}

	ts := &testServer{router: mux.NewRouter(), clock: testNow.Add(-time.Hour)}
	ids := 0
	service := domain.NewService(repo,
		domain.WithClock(func() time.Time {
			ts.clock = ts.clock.Add(time.Minute)
			return ts.clock
		}),
		domain.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("entry-%d", ids)
		}),
	)
	NewHandler(service,
		WithClock(func() time.Time { return testNow }),
		WithLocation(time.UTC),
	).RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestCreateAndListEntries(t *testing.T) {
	ts := newTestServer(t, nil)
	before := testutil.ToFloat64(observability.EntriesCreated().WithLabelValues("activity"))

	rr := ts.do(t, http.MethodPost, "/api/entries",
		`{"type":"activity","value":"Pushups - 40","details":{"name":"ignored","reps":1}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decodeBody[EntryView](t, rr)
	assert.Equal(t, "entry-1", created.ID)
	assert.Equal(t, "activity", created.Type)
	assert.JSONEq(t, `"Pushups - 40"`, string(created.Value))
	assert.Equal(t, &DetailView{Name: "pushups", Reps: 40}, created.Details)
	assert.InDelta(t, before+1, testutil.ToFloat64(observability.EntriesCreated().WithLabelValues("activity")), 0.0001)

	rr = ts.do(t, http.MethodPost, "/api/entries", `{"type":"weight","value":"72.5"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `72.5`, string(decodeBody[EntryView](t, rr).Value))

	rr = ts.do(t, http.MethodGet, "/api/entries", "")
	require.Equal(t, http.StatusOK, rr.Code)
	listed := decodeBody[[]EntryView](t, rr)
	require.Len(t, listed, 2)
	assert.Equal(t, "entry-2", listed[0].ID, "newest first")
	assert.Equal(t, "entry-1", listed[1].ID)
	assert.True(t, listed[1].Timestamp.Equal(created.Timestamp), "server timestamp survives the round trip")

	entry, err := listed[0].Entry()
	require.NoError(t, err)
	weight, ok := entry.Weight()
	require.True(t, ok)
	assert.Equal(t, 72.5, weight.Amount)
}

func TestListEntriesEmpty(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/entries", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestCreateEntryRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"malformed json":     `{"type":`,
		"unknown type":       `{"type":"steps","value":1000}`,
		"missing type":       `{"value":"Pushups - 10"}`,
		"empty activity":     `{"type":"activity","value":"  "}`,
		"missing value":      `{"type":"activity"}`,
		"numeric activity":   `{"type":"activity","value":42}`,
		"non-numeric weight": `{"type":"weight","value":"heavy"}`,
		"null weight":        `{"type":"weight","value":null}`,
		"infinite weight":    `{"type":"weight","value":"Inf"}`,
	}

	ts := newTestServer(t, nil)
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := ts.do(t, http.MethodPost, "/api/entries", body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			payload := decodeBody[map[string]string](t, rr)
			assert.NotEmpty(t, payload["type"])
			assert.NotEmpty(t, payload["message"])
		})
	}

	rr := ts.do(t, http.MethodGet, "/api/entries", "")
	assert.JSONEq(t, `[]`, rr.Body.String(), "rejected input creates nothing")
}

func TestStorageFailuresReturnGenericError(t *testing.T) {
	ts := newTestServer(t, failingRepo{})

	rr := ts.do(t, http.MethodGet, "/api/entries", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	payload := decodeBody[map[string]string](t, rr)
	assert.Equal(t, errTypeServer, payload["type"])
	assert.NotContains(t, payload["message"], "disk")

	rr = ts.do(t, http.MethodPost, "/api/entries", `{"type":"weight","value":70}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestDashboard(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, body := range []string{
		`{"type":"weight","value":70}`,
		`{"type":"activity","value":"Pushups - 10"}`,
		`{"type":"activity","value":"Pushups - 20"}`,
		`{"type":"weight","value":72}`,
	} {
		require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/entries", body).Code)
	}

	rr := ts.do(t, http.MethodGet, "/api/dashboard?month=current&tz=UTC", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	view := decodeBody[DashboardView](t, rr)
	assert.Equal(t, "2025-03", view.Month)
	assert.Equal(t, "March 2025", view.MonthLabel)
	assert.True(t, view.ActiveToday)
	assert.Len(t, view.TodayActivities, 2)
	require.NotNil(t, view.CurrentWeight)
	assert.Equal(t, 72.0, *view.CurrentWeight)
	assert.Equal(t, map[string]int{"pushups": 30}, view.MonthlyTotals)
	assert.Equal(t, map[string]int{"pushups": 20}, view.PersonalRecords)
	require.Len(t, view.WeightSeries, 1)
	assert.Equal(t, 72.0, view.WeightSeries[0].Weight)
	assert.Equal(t, "2025-03-10", view.WeightSeries[0].Label)
	assert.Equal(t, []MonthOptionView{
		{Key: "current", Label: "This Month"},
		{Key: "2025-03", Label: "March 2025"},
	}, view.Months)
}

func TestDashboardCacheIsClearedOnCreate(t *testing.T) {
	ts := newTestServer(t, nil)
	hits := observability.DashboardCache().WithLabelValues("hit")

	first := ts.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, first.Code)

	before := testutil.ToFloat64(hits)
	second := ts.do(t, http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.InDelta(t, before+1, testutil.ToFloat64(hits), 0.0001)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/entries", `{"type":"weight","value":80}`).Code)

	third := ts.do(t, http.MethodGet, "/api/dashboard", "")
	view := decodeBody[DashboardView](t, third)
	require.NotNil(t, view.CurrentWeight)
	assert.Equal(t, 80.0, *view.CurrentWeight)
}

func TestDashboardComputedBeforeCreateIsNotCached(t *testing.T) {
	store, err := sqlite.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	repo := &gatedRepo{EntryRepository: store, listed: make(chan struct{}), release: make(chan struct{})}
	ts := newTestServer(t, repo)

	repo.armed.Store(true)
	stale := make(chan *httptest.ResponseRecorder)
	go func() {
		stale <- ts.do(t, http.MethodGet, "/api/dashboard", "")
	}()

	<-repo.listed
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/entries", `{"type":"weight","value":72}`).Code)
	close(repo.release)

	first := <-stale
	require.Equal(t, http.StatusOK, first.Code)
	assert.Nil(t, decodeBody[DashboardView](t, first).CurrentWeight)

	rr := ts.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rr.Code)
	view := decodeBody[DashboardView](t, rr)
	require.NotNil(t, view.CurrentWeight)
	assert.Equal(t, 72.0, *view.CurrentWeight)
	assert.Len(t, view.WeightSeries, 1)
}

func TestOptionsNeverServesData(t *testing.T) {
	store, err := sqlite.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := auth.Config{Secret: "test-secret", Issuer: "fitlog-test"}
	router := mux.NewRouter()
	router.Use(middleware.Cors([]string{"http://localhost:3000"}))
	router.Use(auth.NewMiddleware(cfg).Wrap)
	NewHandler(domain.NewService(store)).RegisterRoutes(router)

	token, err := auth.IssueToken(cfg, "user-1", []string{auth.ScopeEntriesRead, auth.ScopeEntriesWrite}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(`{"type":"activity","value":"Pushups - 40"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	for _, path := range []string{"/api/entries", "/api/dashboard", "/api/months"} {
		t.Run(path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, path, nil))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.NotContains(t, rr.Body.String(), "pushups")

			preflight := httptest.NewRequest(http.MethodOptions, path, nil)
			preflight.Header.Set("Origin", "http://localhost:3000")
			preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
			rr = httptest.NewRecorder()
			router.ServeHTTP(rr, preflight)
			assert.Equal(t, http.StatusNoContent, rr.Code)
			assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Empty(t, rr.Body.String())
		})
	}
}

func TestDashboardRejectsBadParameters(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/dashboard?month=March", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/dashboard?tz=Mars/Olympus", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do(t, http.MethodGet, "/api/months?tz=Nowhere", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMonths(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/api/months", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []MonthOptionView{{Key: "current", Label: "This Month"}}, decodeBody[[]MonthOptionView](t, rr))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestCreateMiddlewareWrapsOnlyCreate(t *testing.T) {
	store, err := sqlite.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	blocked := 0
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			blocked++
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}

	router := mux.NewRouter()
	NewHandler(domain.NewService(store)).RegisterRoutes(router, deny)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(`{"type":"weight","value":1}`)))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/entries", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, blocked)
}

func TestEntryViewRejectsUnknownType(t *testing.T) {
	_, err := EntryView{Type: "steps"}.Entry()
	require.ErrorIs(t, err, domain.ErrInvalidKind)

	_, err = ToEntryView(domain.Entry{ID: "x"})
	require.ErrorIs(t, err, domain.ErrInvalidKind)
}

type failingRepo struct{}

func (failingRepo) List(context.Context) ([]domain.Entry, error) {
	return nil, errors.New("disk unavailable")
}

func (failingRepo) Create(context.Context, domain.Entry) error {
	return errors.New("disk unavailable")
}

// gatedRepo holds the first armed List call open after it has read the store.
type gatedRepo struct {
	domain.EntryRepository
	armed   atomic.Bool
	listed  chan struct{}
	release chan struct{}
}

func (r *gatedRepo) List(ctx context.Context) ([]domain.Entry, error) {
	entries, err := r.EntryRepository.List(ctx)
	if r.armed.CompareAndSwap(true, false) {
		close(r.listed)
		<-r.release
	}
	return entries, err
}
