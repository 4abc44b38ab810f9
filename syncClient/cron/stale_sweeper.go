package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/metrics"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultStaleTimeout  = 30 * time.Minute
)

// StaleRunMarker fails in_progress runs started before cutoff.
type StaleRunMarker interface {
	MarkStaleRunsFailed(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// SweeperConfig holds configuration for the stale run sweeper. Runs started
// more than Timeout ago are abandoned. Metrics is optional.
type SweeperConfig struct {
	Runs          StaleRunMarker
	Timeout       time.Duration
	CheckInterval time.Duration
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
}

// StaleRunSweeper fails runs left in_progress by a crashed or killed process,
// so the run log never shows a run as live forever.
type StaleRunSweeper struct {
	runs          StaleRunMarker
	timeout       time.Duration
	checkInterval time.Duration
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

// NewStaleRunSweeper creates a new sweeper.
func NewStaleRunSweeper(cfg SweeperConfig) *StaleRunSweeper {
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultStaleTimeout
	}
	return &StaleRunSweeper{
		runs:          cfg.Runs,
		timeout:       timeout,
		checkInterval: interval,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger.With().Str("component", "stale_run_sweeper").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start sweeps once, then keeps sweeping until ctx is done.
func (s *StaleRunSweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *StaleRunSweeper) run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep fails every abandoned run and returns how many it touched.
func (s *StaleRunSweeper) Sweep(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.timeout)
	message := fmt.Sprintf("sync run abandoned: exceeded %s", s.timeout)

	n, err := s.runs.MarkStaleRunsFailed(ctx, cutoff, message)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to sweep stale sync runs")
		return 0
	}
	if n == 0 {
		return 0
	}

	s.metrics.RecordStaleRuns(n)
	s.logger.Warn().
		Int64("swept", n).
		Time("cutoff", cutoff).
		Msg("marked abandoned sync runs failed")
	return n
}
