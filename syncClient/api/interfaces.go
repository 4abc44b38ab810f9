package api

import (
	"context"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/battlestore"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/stats"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/syncer"
)

// SyncTrigger starts guarded sync runs.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, opts syncer.Options) (syncer.Result, error)
	TriggerIncrementalSync(ctx context.Context) (syncer.Result, error)
}

// StatsProvider serves platform stats and leaderboards.
type StatsProvider interface {
	Stats(ctx context.Context, includeTest bool) (*stats.PlatformStats, error)
	Leaderboard(ctx context.Context, limit int, key stats.SortKey) (*stats.Leaderboard, error)
}

// BattleReader reads the battle cache.
type BattleReader interface {
	ListBattles(ctx context.Context, filter battlestore.ListFilter) ([]store.Battle, error)
	GetBattle(ctx context.Context, battleID uint64) (*store.Battle, error)
}

// RunReader reads the sync run log.
type RunReader interface {
	ListRecent(ctx context.Context, limit int) ([]store.SyncRun, error)
}
