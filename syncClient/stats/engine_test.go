package stats

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/battlestore"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/pricing"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

func setupCache(t *testing.T) *battlestore.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&store.Battle{}, &store.ArtistStat{}))
	return battlestore.NewStore(db, zerolog.Nop())
}

// randomBattles builds a cache snapshot with shared artists, unknown wallets,
// undecided and test battles.
func randomBattles(rng *rand.Rand, n int) []store.Battle {
	names := []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "test rig"}
	out := make([]store.Battle, 0, n)
	for i := 0; i < n; i++ {
		a, b := names[rng.Intn(len(names))], names[rng.Intn(len(names))]
		wallet := func(name string) string {
			if rng.Intn(4) == 0 {
				return store.WalletUnknown
			}
			return "wallet" + name
		}
		bt := battle(uint64(i+1), a, wallet(a), uint64(rng.Int63n(50*LamportsPerSol)), b, wallet(b), uint64(rng.Int63n(50*LamportsPerSol)))
		bt.IsTest = a == "test rig" || b == "test rig"
		switch rng.Intn(3) {
		case 0:
			bt.WinnerDecided, bt.WinnerArtistA = true, boolPtr(true)
		case 1:
			bt.WinnerDecided, bt.WinnerArtistA = true, boolPtr(false)
		}
		out = append(out, bt)
	}
	return out
}

func TestLeaderboardPathsAreEquivalent(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 5; round++ {
		t.Run(fmt.Sprintf("snapshot %d", round), func(t *testing.T) {
			cache := setupCache(t)
			engine := NewEngine(cache, pricing.Static(145), zerolog.Nop())

			_, err := cache.UpsertBattles(ctx, randomBattles(rng, 40+rng.Intn(60)))
			require.NoError(t, err)

			for _, key := range []SortKey{SortByEarnings, SortByWins, SortByBattles} {
				fallback, err := engine.Leaderboard(ctx, MaxLeaderboardLimit, key)
				require.NoError(t, err)
				assert.Equal(t, SourceBattlesCache, fallback.Source)

				_, err = engine.RefreshArtistStats(ctx)
				require.NoError(t, err)

				table, err := engine.Leaderboard(ctx, MaxLeaderboardLimit, key)
				require.NoError(t, err)
				assert.Equal(t, SourceArtistStats, table.Source)
				assert.Equal(t, fallback.Entries, table.Entries, "sort key %s", key)

				require.NoError(t, cache.ReplaceArtistStats(ctx, nil))
			}
		})
	}
}

func TestEngineStats(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	_, err := cache.UpsertBattles(ctx, sampleBattles())
	require.NoError(t, err)

	engine := NewEngine(cache, pricing.Static(100), zerolog.Nop())
	stats, err := engine.Stats(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalBattles)
	assert.InDelta(t, 3800.0, stats.TotalVolumeUsd, 1e-6)
	assert.InDelta(t, 200.0, stats.TotalTestVolumeSol, 1e-9)
	assert.Equal(t, 100.0, stats.SolPriceUSD)
}

type failingArtistStats struct {
	*battlestore.Store
}

func (failingArtistStats) ListArtistStats(context.Context) ([]store.ArtistStat, error) {
	return nil, errors.New("no such table: artist_stats")
}

func TestLeaderboardFallsBackOnTableError(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	_, err := cache.UpsertBattles(ctx, sampleBattles())
	require.NoError(t, err)

	engine := NewEngine(failingArtistStats{cache}, nil, zerolog.Nop())
	lb, err := engine.Leaderboard(ctx, 2, SortByEarnings)
	require.NoError(t, err)
	assert.Equal(t, SourceBattlesCache, lb.Source)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "walletBob", lb.Entries[0].ArtistKey)
}
