// Package syncer runs the battle sync pipeline: catalog fetch, ledger
// enrichment, classification, idempotent cache upsert and run logging.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/catalog"
	syncerrors "github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/errors"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/ledger"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/metrics"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/runlock"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/runlog"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

const (
	DefaultLimit            = 100
	DefaultIncrementalLimit = 200
	MaxLimit                = 1000
	DefaultStepTimeout      = 30 * time.Second
)

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeNoWork  Outcome = "no_work"
	OutcomeSynced  Outcome = "synced"
	OutcomePartial Outcome = "partial" // completed, but some accounts failed to decode
	OutcomeFailed  Outcome = "failed"
)

// Options parameterize one run.
type Options struct {
	Limit    int        // catalog rows to fetch, DefaultLimit when zero, capped at Config.MaxLimit
	Since    *time.Time // only battles created strictly after Since
	SyncType string     // store.SyncType*, manual when empty
}

// Result is returned by every run. Errors holds the run failure message
// first, if any, followed by per-battle enrichment failures.
type Result struct {
	Success           bool     `json:"success"`
	Outcome           Outcome  `json:"outcome"`
	BattlesFetched    int      `json:"battlesFetched"`
	BattlesSynced     int      `json:"battlesSynced"`
	BlockchainQueries int      `json:"blockchainQueries"`
	Errors            []string `json:"errors"`
	SyncRunID         string   `json:"syncRunId,omitempty"`
}

// LedgerReader enriches battle ids with ledger state.
type LedgerReader interface {
	FetchBatch(ctx context.Context, battleIDs []uint64) (*ledger.BatchResult, error)
}

// CacheWriter persists merged battles atomically.
type CacheWriter interface {
	UpsertBattles(ctx context.Context, battles []store.Battle) (int, error)
}

// RunLog records runs and yields the incremental cursor.
type RunLog interface {
	Create(ctx context.Context, syncType string, details any) (*store.SyncRun, error)
	Complete(ctx context.Context, runID string, counts runlog.Counts, recordErrors []string) error
	Fail(ctx context.Context, runID, message string, counts runlog.Counts) error
	LastCompletedAt(ctx context.Context) (*time.Time, error)
}

// AggregateRefresher rebuilds derived aggregates after a successful upsert.
type AggregateRefresher interface {
	RefreshArtistStats(ctx context.Context) (int, error)
}

// Deps are the collaborators of a Syncer. Aggregates, Lock and Metrics are optional.
type Deps struct {
	Catalog    catalog.Source
	Ledger     LedgerReader
	Cache      CacheWriter
	Runs       RunLog
	Aggregates AggregateRefresher
	Lock       runlock.Lock
	Metrics    *metrics.Metrics
}

// Config tunes a Syncer.
type Config struct {
	DefaultLimit     int
	IncrementalLimit int
	MaxLimit         int
	StepTimeout      time.Duration
	Retry            *syncerrors.RetryConfig
}

// Syncer coordinates sync runs.
type Syncer struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Syncer.
func New(deps Deps, cfg Config, logger zerolog.Logger) *Syncer {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.IncrementalLimit <= 0 {
		cfg.IncrementalLimit = DefaultIncrementalLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = DefaultStepTimeout
	}
	if cfg.Retry == nil {
		cfg.Retry = syncerrors.DefaultRetryConfig()
	}
	if deps.Lock == nil {
		deps.Lock = runlock.NewLocal()
	}
	return &Syncer{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With().Str("component", "syncer").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type runDetails struct {
	Limit int        `json:"limit"`
	Since *time.Time `json:"since,omitempty"`
}

// step runs fn under the step timeout. Retryable failures get one more
// attempt when retry is set.
func (s *Syncer) step(ctx context.Context, name string, retry bool, fn func(context.Context) error) error {
	policy := *s.cfg.Retry
	if !retry {
		policy.MaxAttempts = 1
	}
	return syncerrors.RetryWithConfig(ctx, func() error {
		stepCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
		defer cancel()
		err := fn(stepCtx)
		if err != nil && stepCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return syncerrors.NewTimeoutError(name, fmt.Sprintf("step exceeded %s", s.cfg.StepTimeout), err)
		}
		return err
	}, &policy)
}

// RunSync performs one full run. It never returns an error or panics: every
// failure is reported through Result and, once the run exists, the run log.
func (s *Syncer) RunSync(ctx context.Context, opts Options) (res Result) {
	started := time.Now()
	if opts.Limit <= 0 {
		opts.Limit = s.cfg.DefaultLimit
	}
	if opts.Limit > s.cfg.MaxLimit {
		opts.Limit = s.cfg.MaxLimit
	}
	if opts.SyncType == "" {
		opts.SyncType = store.SyncTypeManual
	}
	log := s.logger.With().Str("sync_type", opts.SyncType).Int("limit", opts.Limit).Logger()

	decodeFailures := 0
	defer func() {
		s.deps.Metrics.RecordRun(string(res.Outcome), res.Success, res.BattlesSynced, res.BlockchainQueries, decodeFailures, time.Since(started))
	}()

	var run *store.SyncRun
	err := s.step(ctx, "run_log", true, func(ctx context.Context) error {
		var err error
		run, err = s.deps.Runs.Create(ctx, opts.SyncType, runDetails{Limit: opts.Limit, Since: opts.Since})
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create sync run")
		return Result{Outcome: OutcomeFailed, Errors: []string{err.Error()}}
	}

	state := newRunState()
	res = Result{SyncRunID: run.RunID, Errors: []string{}}
	log = log.With().Str("run_id", run.RunID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("sync run panicked")
			s.failRun(ctx, state, &res, run.RunID, fmt.Errorf("sync run panicked: %v", r))
		}
	}()

	// Fetching
	s.mustTransition(state, StateFetching)
	var battles []catalog.Battle
	err = s.step(ctx, "catalog", true, func(ctx context.Context) error {
		var err error
		battles, err = s.deps.Catalog.FetchBattles(ctx, catalog.Query{Limit: opts.Limit, Since: opts.Since})
		return err
	})
	if err != nil {
		s.failRun(ctx, state, &res, run.RunID, err)
		return res
	}
	res.BattlesFetched = len(battles)

	if len(battles) == 0 {
		log.Info().Msg("no new battles to sync")
		s.mustTransition(state, StateCompleted)
		s.completeRun(ctx, &res, run.RunID, nil)
		res.Success = true
		res.Outcome = OutcomeNoWork
		return res
	}

	// Enriching. The reader retries each chunk itself.
	s.mustTransition(state, StateEnriching)
	ids := make([]uint64, 0, len(battles))
	for _, b := range battles {
		ids = append(ids, b.BattleID)
	}
	var batch *ledger.BatchResult
	err = s.step(ctx, "ledger", false, func(ctx context.Context) error {
		var err error
		batch, err = s.deps.Ledger.FetchBatch(ctx, ids)
		return err
	})
	if err != nil {
		s.failRun(ctx, state, &res, run.RunID, err)
		return res
	}
	res.BlockchainQueries = batch.RoundTrips

	// Merging
	s.mustTransition(state, StateMerging)
	rows, recordErrors := MergeBattles(battles, batch, s.now())
	decodeFailures = len(recordErrors)

	// Persisting
	s.mustTransition(state, StatePersisting)
	var synced int
	err = s.step(ctx, "cache", true, func(ctx context.Context) error {
		var err error
		synced, err = s.deps.Cache.UpsertBattles(ctx, rows)
		return err
	})
	if err != nil {
		s.failRun(ctx, state, &res, run.RunID, syncerrors.WrapSyncError(err, syncerrors.ErrCodeDatabase, "cache", "failed to upsert battles"))
		return res
	}
	res.BattlesSynced = synced

	// Aggregate staleness is tolerable, so a refresh failure only gets logged.
	if s.deps.Aggregates != nil {
		err := s.step(ctx, "aggregates", false, func(ctx context.Context) error {
			_, err := s.deps.Aggregates.RefreshArtistStats(ctx)
			return err
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to refresh artist stats")
		}
	}

	s.mustTransition(state, StateCompleted)
	s.completeRun(ctx, &res, run.RunID, recordErrors)
	res.Success = true
	res.Outcome = OutcomeSynced
	if len(recordErrors) > 0 {
		res.Outcome = OutcomePartial
		res.Errors = append(res.Errors, recordErrors...)
	}

	log.Info().
		Int("fetched", res.BattlesFetched).
		Int("synced", res.BattlesSynced).
		Int("round_trips", res.BlockchainQueries).
		Int("decode_failures", decodeFailures).
		Dur("took", time.Since(started)).
		Msg("sync run completed")
	return res
}

// RunIncrementalSync syncs battles created after the last completed run.
func (s *Syncer) RunIncrementalSync(ctx context.Context) Result {
	var since *time.Time
	err := s.step(ctx, "run_log", true, func(ctx context.Context) error {
		var err error
		since, err = s.deps.Runs.LastCompletedAt(ctx)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read sync cursor")
		res := Result{Outcome: OutcomeFailed, Errors: []string{err.Error()}}
		s.deps.Metrics.RecordRun(string(res.Outcome), false, 0, 0, 0, 0)
		return res
	}
	if since == nil {
		s.logger.Info().Msg("no completed sync run yet, running a full fetch")
	}
	return s.RunSync(ctx, Options{Limit: s.cfg.IncrementalLimit, Since: since, SyncType: store.SyncTypeScheduled})
}

// TriggerSync runs RunSync while holding the run lock. It returns
// runlock.ErrLocked without running when another run holds the lock.
func (s *Syncer) TriggerSync(ctx context.Context, opts Options) (Result, error) {
	release, err := s.deps.Lock.TryAcquire(ctx)
	if err != nil {
		if syncerrors.Is(err, runlock.ErrLocked) {
			s.deps.Metrics.RecordLockContention()
		}
		return Result{}, err
	}
	defer release()
	return s.RunSync(ctx, opts), nil
}

// TriggerIncrementalSync runs RunIncrementalSync while holding the run lock.
func (s *Syncer) TriggerIncrementalSync(ctx context.Context) (Result, error) {
	release, err := s.deps.Lock.TryAcquire(ctx)
	if err != nil {
		if syncerrors.Is(err, runlock.ErrLocked) {
			s.deps.Metrics.RecordLockContention()
		}
		return Result{}, err
	}
	defer release()
	return s.RunIncrementalSync(ctx), nil
}

func (s *Syncer) mustTransition(state *runState, next State) {
	if err := state.to(next); err != nil {
		panic(err)
	}
}

// failRun moves the run to failed and records err verbatim. Run log writes use
// a context detached from cancellation so a canceled caller still leaves an
// accurate record.
func (s *Syncer) failRun(ctx context.Context, state *runState, res *Result, runID string, err error) {
	if state.current.IsTerminal() {
		return
	}
	_ = state.to(StateFailed)

	msg := err.Error()
	res.Success = false
	res.Outcome = OutcomeFailed
	res.Errors = append([]string{msg}, res.Errors...)

	counts := runlog.Counts{
		BattlesFetched:    res.BattlesFetched,
		BattlesSynced:     res.BattlesSynced,
		BlockchainQueries: res.BlockchainQueries,
	}
	logErr := s.step(context.WithoutCancel(ctx), "run_log", true, func(ctx context.Context) error {
		return s.deps.Runs.Fail(ctx, runID, msg, counts)
	})
	if logErr != nil {
		s.logger.Error().Err(logErr).Str("run_id", runID).Msg("failed to record sync run failure")
	}
	s.logger.Error().Err(err).Str("run_id", runID).Msg("sync run failed")
}

// completeRun records a completed run. A run log failure does not undo the
// cache write; the run stays in_progress until the stale run sweeper fails it
// and the cursor does not advance.
func (s *Syncer) completeRun(ctx context.Context, res *Result, runID string, recordErrors []string) {
	counts := runlog.Counts{
		BattlesFetched:    res.BattlesFetched,
		BattlesSynced:     res.BattlesSynced,
		BlockchainQueries: res.BlockchainQueries,
	}
	err := s.step(context.WithoutCancel(ctx), "run_log", true, func(ctx context.Context) error {
		return s.deps.Runs.Complete(ctx, runID, counts, recordErrors)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("failed to record sync run completion")
		res.Errors = append(res.Errors, fmt.Sprintf("failed to record run completion: %v", err))
	}
}
