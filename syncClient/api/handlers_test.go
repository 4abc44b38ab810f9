package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/battlestore"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/metrics"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/runlock"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/stats"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/syncer"
)

type fakeSyncer struct {
	lastOpts    *syncer.Options
	incremental int
	result      syncer.Result
	err         error
}

func (f *fakeSyncer) TriggerSync(_ context.Context, opts syncer.Options) (syncer.Result, error) {
	f.lastOpts = &opts
	return f.result, f.err
}

func (f *fakeSyncer) TriggerIncrementalSync(context.Context) (syncer.Result, error) {
	f.incremental++
	return f.result, f.err
}

type fakeStats struct {
	includeTest bool
	limit       int
	key         stats.SortKey
	err         error
}

func (f *fakeStats) Stats(_ context.Context, includeTest bool) (*stats.PlatformStats, error) {
	f.includeTest = includeTest
	if f.err != nil {
		return nil, f.err
	}
	return &stats.PlatformStats{TotalBattles: 4, SolPriceUSD: 145}, nil
}

func (f *fakeStats) Leaderboard(_ context.Context, limit int, key stats.SortKey) (*stats.Leaderboard, error) {
	f.limit, f.key = limit, key
	if f.err != nil {
		return nil, f.err
	}
	return &stats.Leaderboard{
		Entries: []stats.ArtistRanking{{Rank: 1, ArtistName: "Alice"}},
		SortBy:  key,
		Source:  stats.SourceArtistStats,
	}, nil
}

type fakeBattles struct {
	filter  battlestore.ListFilter
	battles map[uint64]store.Battle
}

func (f *fakeBattles) ListBattles(_ context.Context, filter battlestore.ListFilter) ([]store.Battle, error) {
	f.filter = filter
	out := make([]store.Battle, 0, len(f.battles))
	for _, b := range f.battles {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBattles) GetBattle(_ context.Context, id uint64) (*store.Battle, error) {
	b, ok := f.battles[id]
	if !ok {
		return nil, battlestore.ErrBattleNotFound
	}
	return &b, nil
}

type fakeRuns struct {
	limit int
	runs  []store.SyncRun
}

func (f *fakeRuns) ListRecent(_ context.Context, limit int) ([]store.SyncRun, error) {
	f.limit = limit
	return f.runs, nil
}

type fixture struct {
	server  *Server
	syncer  *fakeSyncer
	stats   *fakeStats
	battles *fakeBattles
	runs    *fakeRuns
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	battles := map[uint64]store.Battle{
		7: {BattleID: 7, Artist1Name: "Alice", Artist2Name: "Bob", LedgerData: []byte(`{"secret":true}`)},
	}
	f := &fixture{
		syncer:  &fakeSyncer{result: syncer.Result{Success: true, Outcome: syncer.OutcomeSynced, BattlesSynced: 3, Errors: []string{}, SyncRunID: "run-1"}},
		stats:   &fakeStats{},
		battles: &fakeBattles{battles: battles},
		runs:    &fakeRuns{},
	}
	f.server = NewServer(Deps{
		Syncer:  f.syncer,
		Stats:   f.stats,
		Battles: f.battles,
		Runs:    f.runs,
		Metrics: metrics.New(),
	}, zerolog.New(zerolog.NewTestWriter(t)), 0)
	return f
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleHealth(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	server := &Server{
		logger: logger,
	}

	t.Run("Health check returns OK", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		server.handleHealth(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})
}

func TestHandleSync(t *testing.T) {
	t.Run("incremental by default", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/v1/sync")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, f.syncer.incremental)
		assert.Nil(t, f.syncer.lastOpts)

		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.EqualValues(t, 3, body["battlesSynced"])
		assert.Equal(t, "run-1", body["syncRunId"])
		assert.Equal(t, []any{}, body["errors"])
	})

	t.Run("full sync with limit", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/v1/sync?full=true&limit=50")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, f.syncer.lastOpts)
		assert.Equal(t, 50, f.syncer.lastOpts.Limit)
		assert.Equal(t, store.SyncTypeTriggered, f.syncer.lastOpts.SyncType)
		assert.Zero(t, f.syncer.incremental)
	})

	t.Run("conflict while a run holds the lock", func(t *testing.T) {
		f := newFixture(t)
		f.syncer.err = runlock.ErrLocked
		w := f.do(http.MethodPost, "/api/v1/sync")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("failed run is a server error with the result body", func(t *testing.T) {
		f := newFixture(t)
		f.syncer.result = syncer.Result{Outcome: syncer.OutcomeFailed, Errors: []string{"[ledger:TRANSPORT] boom"}}
		w := f.do(http.MethodPost, "/api/v1/sync")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, []any{"[ledger:TRANSPORT] boom"}, decode(t, w)["errors"])
	})

	t.Run("bad params", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/sync?full=maybe").Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/sync?limit=-3").Code)
	})

	t.Run("limit above the maximum is rejected", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/v1/sync?limit=2000000000")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["error"], "at most 1000")
		assert.Nil(t, f.syncer.lastOpts)

		w = f.do(http.MethodPost, "/api/v1/sync?limit=1000")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, syncer.MaxLimit, f.syncer.lastOpts.Limit)
	})

	t.Run("GET is not allowed", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/api/v1/sync").Code)
	})
}

func TestHandleStats(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/api/v1/stats?include_test=true")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.stats.includeTest)
	assert.EqualValues(t, 4, decode(t, w)["totalBattles"])

	f.stats.err = errors.New("db gone")
	assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodGet, "/api/v1/stats").Code)
}

func TestHandleLeaderboard(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/leaderboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stats.DefaultLeaderboardLimit, f.stats.limit)
	assert.Equal(t, stats.SortByEarnings, f.stats.key)
	body := decode(t, w)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, stats.SourceArtistStats, body["source"])

	f.do(http.MethodGet, "/api/v1/leaderboard?limit=500&sort_by=wins")
	assert.Equal(t, stats.MaxLeaderboardLimit, f.stats.limit)
	assert.Equal(t, stats.SortByWins, f.stats.key)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/leaderboard?limit=ten").Code)
}

func TestHandleBattles(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/battles?status=Active&limit=5&offset=10&include_test=1&artist=%20ali%20")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, battlestore.ListFilter{Status: "Active", IncludeTest: true, Artist: "ali", Limit: 5, Offset: 10}, f.battles.filter)

	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])
	row := body["data"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 7, row["battleId"])
	assert.NotContains(t, row, "LedgerData")

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/battles?offset=-1").Code)
}

func TestHandleBattle(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/v1/battles/7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Alice", decode(t, w)["artist1Name"])

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/battles/8").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/battles/abc").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/v1/battles/99999999999999999999999").Code)
}

func TestHandleSyncRuns(t *testing.T) {
	f := newFixture(t)
	done := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	f.runs.runs = []store.SyncRun{{
		RunID:          "run-9",
		Status:         store.SyncStatusCompleted,
		SyncType:       store.SyncTypeScheduled,
		StartedAt:      done.Add(-time.Minute),
		CompletedAt:    &done,
		BattlesFetched: 2,
		BattlesSynced:  2,
		Errors:         []byte(`["battle 4: short buffer"]`),
		Details:        []byte(`{"limit":200}`),
	}}

	w := f.do(http.MethodGet, "/api/v1/sync-runs?limit=5")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, f.runs.limit)

	row := decode(t, w)["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "run-9", row["syncRunId"])
	assert.Equal(t, []any{"battle 4: short buffer"}, row["errors"])
	assert.Equal(t, map[string]any{"limit": 200.0}, row["details"])

	f.do(http.MethodGet, "/api/v1/sync-runs?limit=0")
	assert.Equal(t, defaultRunListLimit, f.runs.limit)
}

func TestUnconfiguredBackends(t *testing.T) {
	server := NewServer(Deps{}, zerolog.Nop(), 0)
	for _, target := range []string{"/api/v1/stats", "/api/v1/leaderboard", "/api/v1/battles", "/api/v1/battles/1", "/api/v1/sync-runs"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wavewarz_")
}
