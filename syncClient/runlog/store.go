// Package runlog records every sync run in the sync_log table and derives the
// incremental sync cursor from it.
package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

// ErrRunNotFound is returned when no run matches the given run id.
var ErrRunNotFound = errors.New("sync run not found")

// ErrRunFinished is returned when a terminal run is asked to transition again.
var ErrRunFinished = errors.New("sync run already finished")

// Counts are the tallies written when a run finishes.
type Counts struct {
	BattlesFetched    int
	BattlesSynced     int
	BlockchainQueries int
}

// Store provides database access for sync runs.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a new run log store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "run_log").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new in_progress run. details is stored as JSON.
func (s *Store) Create(ctx context.Context, syncType string, details any) (*store.SyncRun, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode run details")
	}

	run := store.SyncRun{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		Status:    store.SyncStatusInProgress,
		SyncType:  syncType,
		Details:   detailsJSON,
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create sync run")
	}

	s.logger.Debug().Str("run_id", run.RunID).Str("sync_type", syncType).Msg("sync run started")
	return &run, nil
}

// Complete marks an in_progress run completed. recordErrors lists per-battle
// enrichment failures and is stored as a JSON array.
func (s *Store) Complete(ctx context.Context, runID string, counts Counts, recordErrors []string) error {
	if recordErrors == nil {
		recordErrors = []string{}
	}
	errorsJSON, err := json.Marshal(recordErrors)
	if err != nil {
		return errors.Wrap(err, "failed to encode record errors")
	}
	return s.finish(ctx, runID, map[string]any{
		"status":             store.SyncStatusCompleted,
		"completed_at":       s.now(),
		"battles_fetched":    counts.BattlesFetched,
		"battles_synced":     counts.BattlesSynced,
		"blockchain_queries": counts.BlockchainQueries,
		"errors":             errorsJSON,
	})
}

// Fail marks an in_progress run failed with message stored verbatim.
func (s *Store) Fail(ctx context.Context, runID, message string, counts Counts) error {
	return s.finish(ctx, runID, map[string]any{
		"status":             store.SyncStatusFailed,
		"completed_at":       s.now(),
		"error_message":      message,
		"battles_fetched":    counts.BattlesFetched,
		"battles_synced":     counts.BattlesSynced,
		"blockchain_queries": counts.BlockchainQueries,
	})
}

func (s *Store) finish(ctx context.Context, runID string, update map[string]any) error {
	result := s.db.WithContext(ctx).Model(&store.SyncRun{}).
		Where("run_id = ? AND status = ?", runID, store.SyncStatusInProgress).
		Updates(update)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to update sync run %s", runID)
	}
	if result.RowsAffected == 0 {
		if _, err := s.Get(ctx, runID); err != nil {
			return err
		}
		return errors.Wrapf(ErrRunFinished, "run %s", runID)
	}
	return nil
}

// Get retrieves a run by run id.
func (s *Store) Get(ctx context.Context, runID string) (*store.SyncRun, error) {
	var run store.SyncRun
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get sync run %s", runID)
	}
	return &run, nil
}

// LastCompletedAt returns the completion time of the most recent completed
// run, or nil when no run has completed yet. Failed runs never advance the
// cursor.
func (s *Store) LastCompletedAt(ctx context.Context) (*time.Time, error) {
	var run store.SyncRun
	err := s.db.WithContext(ctx).
		Where("status = ? AND completed_at IS NOT NULL", store.SyncStatusCompleted).
		Order("completed_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query last completed sync run")
	}
	return run.CompletedAt, nil
}

// ListRecent returns the latest runs, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]store.SyncRun, error) {
	var runs []store.SyncRun
	query := s.db.WithContext(ctx).Order("started_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list sync runs")
	}
	return runs, nil
}

// MarkStaleRunsFailed fails every in_progress run that started before cutoff.
// Runs left behind by a crashed process would otherwise stay in_progress forever.
func (s *Store) MarkStaleRunsFailed(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&store.SyncRun{}).
		Where("status = ? AND started_at < ?", store.SyncStatusInProgress, cutoff).
		Updates(map[string]any{
			"status":        store.SyncStatusFailed,
			"completed_at":  s.now(),
			"error_message": message,
		})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to mark stale sync runs failed")
	}
	if result.RowsAffected > 0 {
		s.logger.Info().
			Int64("failed_count", result.RowsAffected).
			Time("cutoff", cutoff).
			Msg("marked stale sync runs failed")
	}
	return result.RowsAffected, nil
}
