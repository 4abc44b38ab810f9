package stats

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/pricing"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

// Leaderboard sources.
const (
	SourceArtistStats  = "artist_stats"
	SourceBattlesCache = "battles_cache"
)

// CacheReader is the part of the battle store the engine needs.
type CacheReader interface {
	AllBattles(ctx context.Context, includeTest bool) ([]store.Battle, error)
	ListArtistStats(ctx context.Context) ([]store.ArtistStat, error)
	ReplaceArtistStats(ctx context.Context, rows []store.ArtistStat) error
}

// Leaderboard is a ranked artist list and where it was computed from.
type Leaderboard struct {
	Entries []ArtistRanking `json:"data"`
	SortBy  SortKey         `json:"sortBy"`
	Source  string          `json:"source"`
}

// Engine serves stats and leaderboards over the cache.
type Engine struct {
	cache  CacheReader
	prices pricing.Source
	logger zerolog.Logger
}

// NewEngine creates an aggregation engine.
func NewEngine(cache CacheReader, prices pricing.Source, logger zerolog.Logger) *Engine {
	if prices == nil {
		prices = pricing.Static(pricing.DefaultSolPriceUSD)
	}
	return &Engine{
		cache:  cache,
		prices: prices,
		logger: logger.With().Str("component", "stats_engine").Logger(),
	}
}

// Stats computes platform totals from the current cache.
func (e *Engine) Stats(ctx context.Context, includeTest bool) (*PlatformStats, error) {
	// Test volume is always reported, so load every battle.
	battles, err := e.cache.AllBattles(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load battles: %w", err)
	}
	price, err := e.prices.SolPriceUSD(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get SOL price: %w", err)
	}
	stats := ComputeStats(battles, includeTest, price)
	return &stats, nil
}

// Leaderboard ranks artists from the precomputed artist_stats table, or from
// the battle cache when the table is empty or unreadable.
func (e *Engine) Leaderboard(ctx context.Context, limit int, key SortKey) (*Leaderboard, error) {
	rows, err := e.cache.ListArtistStats(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("artist stats unavailable, computing from battles")
	}
	if err == nil && len(rows) > 0 {
		return &Leaderboard{Entries: RankArtistStats(rows, limit, key), SortBy: key, Source: SourceArtistStats}, nil
	}

	battles, err := e.cache.AllBattles(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load battles: %w", err)
	}
	return &Leaderboard{Entries: LeaderboardFromBattles(battles, limit, key), SortBy: key, Source: SourceBattlesCache}, nil
}

// RefreshArtistStats rebuilds the artist_stats table from the cache and
// returns the number of artists written.
func (e *Engine) RefreshArtistStats(ctx context.Context) (int, error) {
	battles, err := e.cache.AllBattles(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to load battles: %w", err)
	}
	rows := BuildArtistStats(battles)
	if err := e.cache.ReplaceArtistStats(ctx, rows); err != nil {
		return 0, err
	}
	e.logger.Info().Int("artists", len(rows)).Msg("artist stats refreshed")
	return len(rows), nil
}
