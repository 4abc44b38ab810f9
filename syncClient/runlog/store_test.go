package runlog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

// setupTestStore creates a run log over an in-memory database with a
// controllable clock.
func setupTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&store.SyncRun{}))

	clock := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := NewStore(db, zerolog.Nop())
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestCreate(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	run, err := s.Create(ctx, store.SyncTypeManual, map[string]any{"limit": 100})
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, store.SyncStatusInProgress, run.Status)
	assert.Nil(t, run.CompletedAt)

	var details map[string]any
	require.NoError(t, json.Unmarshal(run.Details, &details))
	assert.EqualValues(t, 100, details["limit"])

	other, err := s.Create(ctx, store.SyncTypeManual, nil)
	require.NoError(t, err)
	assert.NotEqual(t, run.RunID, other.RunID)
}

func TestCompleteAndFail(t *testing.T) {
	ctx := context.Background()

	t.Run("complete records counts and errors", func(t *testing.T) {
		s, _ := setupTestStore(t)
		run, err := s.Create(ctx, store.SyncTypeScheduled, nil)
		require.NoError(t, err)

		counts := Counts{BattlesFetched: 3, BattlesSynced: 3, BlockchainQueries: 1}
		require.NoError(t, s.Complete(ctx, run.RunID, counts, []string{"battle 9: short buffer"}))

		got, err := s.Get(ctx, run.RunID)
		require.NoError(t, err)
		assert.Equal(t, store.SyncStatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.Equal(t, 3, got.BattlesSynced)
		assert.Equal(t, 1, got.BlockchainQueries)
		assert.JSONEq(t, `["battle 9: short buffer"]`, string(got.Errors))
	})

	t.Run("fail keeps the message verbatim", func(t *testing.T) {
		s, _ := setupTestStore(t)
		run, err := s.Create(ctx, store.SyncTypeManual, nil)
		require.NoError(t, err)

		msg := "[ledger:TRANSPORT] batch read failed: 503 Service Unavailable"
		require.NoError(t, s.Fail(ctx, run.RunID, msg, Counts{BattlesFetched: 3}))

		got, err := s.Get(ctx, run.RunID)
		require.NoError(t, err)
		assert.Equal(t, store.SyncStatusFailed, got.Status)
		assert.Equal(t, msg, got.ErrorMessage)
		assert.Equal(t, 0, got.BattlesSynced)
	})

	t.Run("terminal run rejects another transition", func(t *testing.T) {
		s, _ := setupTestStore(t)
		run, err := s.Create(ctx, store.SyncTypeManual, nil)
		require.NoError(t, err)
		require.NoError(t, s.Complete(ctx, run.RunID, Counts{}, nil))

		err = s.Fail(ctx, run.RunID, "late failure", Counts{})
		assert.ErrorIs(t, err, ErrRunFinished)

		got, err := s.Get(ctx, run.RunID)
		require.NoError(t, err)
		assert.Equal(t, store.SyncStatusCompleted, got.Status)
	})

	t.Run("unknown run", func(t *testing.T) {
		s, _ := setupTestStore(t)
		err := s.Complete(ctx, "missing", Counts{}, nil)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}

func TestLastCompletedAt(t *testing.T) {
	ctx := context.Background()
	s, clock := setupTestStore(t)

	cursor, err := s.LastCompletedAt(ctx)
	require.NoError(t, err)
	assert.Nil(t, cursor, "no runs yet means a full fetch")

	first, err := s.Create(ctx, store.SyncTypeScheduled, nil)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, first.RunID, Counts{}, nil))
	completedAt := *clock

	*clock = clock.Add(10 * time.Minute)
	failed, err := s.Create(ctx, store.SyncTypeScheduled, nil)
	require.NoError(t, err)
	require.NoError(t, s.Fail(ctx, failed.RunID, "boom", Counts{}))

	*clock = clock.Add(10 * time.Minute)
	_, err = s.Create(ctx, store.SyncTypeScheduled, nil)
	require.NoError(t, err)

	cursor, err = s.LastCompletedAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, completedAt.Equal(*cursor), "failed and in-progress runs must not advance the cursor")
}

func TestMarkStaleRunsFailed(t *testing.T) {
	ctx := context.Background()
	s, clock := setupTestStore(t)

	old, err := s.Create(ctx, store.SyncTypeScheduled, nil)
	require.NoError(t, err)
	oldDone, err := s.Create(ctx, store.SyncTypeScheduled, nil)
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, oldDone.RunID, Counts{}, nil))

	*clock = clock.Add(time.Hour)
	fresh, err := s.Create(ctx, store.SyncTypeManual, nil)
	require.NoError(t, err)

	cutoff := clock.Add(-30 * time.Minute)
	n, err := s.MarkStaleRunsFailed(ctx, cutoff, "sync run abandoned: exceeded 30m0s")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Get(ctx, old.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusFailed, got.Status)
	assert.Equal(t, "sync run abandoned: exceeded 30m0s", got.ErrorMessage)

	got, err = s.Get(ctx, fresh.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusInProgress, got.Status)

	got, err = s.Get(ctx, oldDone.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.SyncStatusCompleted, got.Status)
}

func TestListRecent(t *testing.T) {
	ctx := context.Background()
	s, clock := setupTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := s.Create(ctx, store.SyncTypeScheduled, nil)
		require.NoError(t, err)
		ids = append(ids, run.RunID)
		*clock = clock.Add(time.Minute)
	}

	runs, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[1], runs[1].RunID)
}
