package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	m := New()
	m.RecordRun("synced", true, 3, 1, 0, 2*time.Second)
	m.RecordRun("failed", false, 0, 1, 2, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("synced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BattlesSynced))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerRoundTrips))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecodeFailures))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessTimestamp), 0.0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRun("synced", true, 1, 1, 0, time.Second)
		m.RecordStaleRuns(2)
		m.RecordLockContention()
		m.SetCachedBattles(10)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordStaleRuns(2)
	m.RecordLockContention()
	m.SetCachedBattles(7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "wavewarz_stale_runs_failed_total 2"))
	assert.True(t, strings.Contains(body, "wavewarz_sync_lock_contention_total 1"))
	assert.True(t, strings.Contains(body, "wavewarz_cached_battles 7"))
}
