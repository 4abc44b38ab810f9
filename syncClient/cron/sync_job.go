// cron/sync_job.go
package cron

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/runlock"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/syncer"
)

// IncrementalSyncer is the part of the syncer the job drives.
type IncrementalSyncer interface {
	TriggerIncrementalSync(ctx context.Context) (syncer.Result, error)
}

// SyncJob runs an incremental sync on a fixed interval.
type SyncJob struct {
	syncer   IncrementalSyncer
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	forceCh chan struct{}
	wg      sync.WaitGroup
}

func NewSyncJob(s IncrementalSyncer, interval time.Duration, logger zerolog.Logger) *SyncJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SyncJob{
		syncer:   s,
		interval: interval,
		logger:   logger.With().Str("component", "sync_cron").Logger(),
	}
}

// Start launches the background loop and returns immediately. The first run
// happens right away. Subsequent calls are no-ops.
func (j *SyncJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	if j.syncer == nil {
		return errors.New("cron: syncer must be non-nil")
	}

	j.stopCh = make(chan struct{})
	j.forceCh = make(chan struct{}, 1)
	j.running = true
	j.wg.Add(1)

	go j.run(ctx)
	return nil
}

// Stop signals the loop to exit and waits for an in-flight run to finish.
func (j *SyncJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.running = false
	j.mu.Unlock()
	j.wg.Wait()
}

// ForceSync queues an immediate run. It never blocks; a run already queued
// absorbs the request.
func (j *SyncJob) ForceSync() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	select {
	case j.forceCh <- struct{}{}:
	default:
	}
}

func (j *SyncJob) run(parent context.Context) {
	defer j.wg.Done()

	j.syncOnce(parent)

	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-parent.Done():
			j.logger.Info().Msg("sync cron: context canceled; stopping")
			return
		case <-j.stopCh:
			j.logger.Info().Msg("sync cron: stop requested; stopping")
			return
		case <-t.C:
			j.syncOnce(parent)
		case <-j.forceCh:
			j.syncOnce(parent)
		}
	}
}

func (j *SyncJob) syncOnce(ctx context.Context) {
	res, err := j.syncer.TriggerIncrementalSync(ctx)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			j.logger.Info().Msg("sync already in progress; skipping scheduled run")
			return
		}
		j.logger.Warn().Err(err).Msg("scheduled sync could not start")
		return
	}
	if !res.Success {
		j.logger.Warn().Strs("errors", res.Errors).Str("run_id", res.SyncRunID).Msg("scheduled sync failed; cache left unchanged")
		return
	}
	j.logger.Debug().
		Str("run_id", res.SyncRunID).
		Str("outcome", string(res.Outcome)).
		Int("synced", res.BattlesSynced).
		Msg("scheduled sync finished")
}
