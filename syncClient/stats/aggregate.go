// Package stats derives platform statistics and the artist leaderboard from
// the battle cache.
package stats

import (
	"math"
	"sort"
	"strings"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

const (
	LamportsPerSol   = 1_000_000_000
	ArtistFeeBps     = 100 // artists earn 1% of their pool volume
	StreamingRateUSD = 0.003

	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 50
)

// SortKey orders the leaderboard.
type SortKey string

const (
	SortByEarnings SortKey = "earnings"
	SortByWins     SortKey = "wins"
	SortByBattles  SortKey = "battles"
)

// ParseSortKey maps a query value to a SortKey; anything unknown sorts by earnings.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortByWins:
		return SortByWins
	case SortByBattles:
		return SortByBattles
	default:
		return SortByEarnings
	}
}

// PlatformStats are platform-wide totals over the cache.
type PlatformStats struct {
	TotalVolumeSol                float64 `json:"totalVolumeSol"`
	TotalVolumeUsd                float64 `json:"totalVolumeUsd"`
	TotalBattles                  int     `json:"totalBattles"`
	ActiveBattles                 int     `json:"activeBattles"`
	CompletedBattles              int     `json:"completedBattles"`
	TotalArtistEarningsSol        float64 `json:"totalArtistEarningsSol"`
	TotalArtistEarningsUsd        float64 `json:"totalArtistEarningsUsd"`
	TotalSpotifyStreamsEquivalent int64   `json:"totalSpotifyStreamsEquivalent"`
	TotalTestVolumeSol            float64 `json:"totalTestVolumeSol"`
	SolPriceUSD                   float64 `json:"solPriceUsd"`
}

// ArtistRanking is one leaderboard entry.
type ArtistRanking struct {
	Rank                int     `json:"rank"`
	ArtistKey           string  `json:"artist_key"`
	ArtistName          string  `json:"artist_name"`
	Wallet              string  `json:"wallet"`
	TwitterHandle       string  `json:"twitter_handle,omitempty"`
	TotalEarningsSol    float64 `json:"total_earnings_sol"`
	EarningsLamports    uint64  `json:"earnings_lamports"`
	BattlesParticipated int     `json:"battles_participated"`
	Wins                int     `json:"wins"`
}

// LamportsToSol converts lamports to SOL.
func LamportsToSol(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSol
}

// FeeShareLamports is the artist fee on a volume, truncated to whole lamports.
func FeeShareLamports(volume uint64) uint64 {
	return volume/10_000*ArtistFeeBps + volume%10_000*ArtistFeeBps/10_000
}

// ComputeStats folds battles into platform totals. Sums are kept in integer
// lamports, so the result does not depend on battle order. Test battles only
// count towards TotalTestVolumeSol unless includeTest is set.
func ComputeStats(battles []store.Battle, includeTest bool, solPriceUSD float64) PlatformStats {
	var (
		volume, testVolume uint64
		out                PlatformStats
	)
	for _, b := range battles {
		pools := b.TotalVolumeLamports()
		if b.IsTest {
			testVolume += pools
			if !includeTest {
				continue
			}
		}
		volume += pools
		out.TotalBattles++
		switch b.Status {
		case store.BattleStatusActive:
			out.ActiveBattles++
		case store.BattleStatusCompleted:
			out.CompletedBattles++
		}
	}

	out.SolPriceUSD = solPriceUSD
	out.TotalVolumeSol = LamportsToSol(volume)
	out.TotalVolumeUsd = out.TotalVolumeSol * solPriceUSD
	out.TotalArtistEarningsSol = out.TotalVolumeSol * ArtistFeeBps / 10_000
	out.TotalArtistEarningsUsd = out.TotalArtistEarningsSol * solPriceUSD
	out.TotalSpotifyStreamsEquivalent = int64(math.Floor(out.TotalArtistEarningsUsd / StreamingRateUSD))
	out.TotalTestVolumeSol = LamportsToSol(testVolume)
	return out
}

// ArtistKey identifies an artist: the wallet, or the name when the wallet is unknown.
func ArtistKey(wallet, name string) string {
	if wallet == "" || wallet == store.WalletUnknown {
		return name
	}
	return wallet
}

// BuildArtistStats folds every non-test battle's two sides into per-artist
// rows. Battles are visited in battle id order so display fields resolve the
// same way for any input order. When both sides share a key the battle counts
// once for that artist, and it is a win if either side won, while both fee
// shares accrue. Rows come back sorted by artist key.
func BuildArtistStats(battles []store.Battle) []store.ArtistStat {
	ordered := make([]store.Battle, 0, len(battles))
	for _, b := range battles {
		if !b.IsTest {
			ordered = append(ordered, b)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].BattleID < ordered[j].BattleID })

	acc := make(map[string]*store.ArtistStat)
	side := func(key, wallet, name string, twitter *string, pool uint64) {
		row, ok := acc[key]
		if !ok {
			row = &store.ArtistStat{ArtistKey: key}
			acc[key] = row
		}
		row.ArtistName = name
		row.Wallet = wallet
		if twitter != nil && *twitter != "" {
			row.TwitterHandle = *twitter
		}
		row.EarningsLamports += FeeShareLamports(pool)
	}

	for _, b := range ordered {
		aWon, bWon := false, false
		if b.WinnerDecided && b.WinnerArtistA != nil {
			aWon = *b.WinnerArtistA
			bWon = !*b.WinnerArtistA
		}
		keyA := ArtistKey(b.Artist1Wallet, b.Artist1Name)
		keyB := ArtistKey(b.Artist2Wallet, b.Artist2Name)
		side(keyA, b.Artist1Wallet, b.Artist1Name, b.Artist1Twitter, b.ArtistAPool)
		side(keyB, b.Artist2Wallet, b.Artist2Name, b.Artist2Twitter, b.ArtistBPool)

		if keyA == keyB {
			acc[keyA].BattlesParticipated++
			if aWon || bWon {
				acc[keyA].Wins++
			}
			continue
		}
		acc[keyA].BattlesParticipated++
		acc[keyB].BattlesParticipated++
		if aWon {
			acc[keyA].Wins++
		}
		if bWon {
			acc[keyB].Wins++
		}
	}

	rows := make([]store.ArtistStat, 0, len(acc))
	for _, row := range acc {
		row.TotalEarningsSol = LamportsToSol(row.EarningsLamports)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ArtistKey < rows[j].ArtistKey })
	return rows
}

// ClampLeaderboardLimit bounds a requested leaderboard size.
func ClampLeaderboardLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}

// RankArtistStats sorts rows descending by key, breaks ties by artist key
// ascending and truncates to limit.
func RankArtistStats(rows []store.ArtistStat, limit int, key SortKey) []ArtistRanking {
	sorted := make([]store.ArtistStat, len(rows))
	copy(sorted, rows)

	metric := func(r store.ArtistStat) uint64 {
		switch key {
		case SortByWins:
			return uint64(r.Wins)
		case SortByBattles:
			return uint64(r.BattlesParticipated)
		default:
			return r.EarningsLamports
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		mi, mj := metric(sorted[i]), metric(sorted[j])
		if mi != mj {
			return mi > mj
		}
		return sorted[i].ArtistKey < sorted[j].ArtistKey
	})

	limit = ClampLeaderboardLimit(limit)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]ArtistRanking, 0, len(sorted))
	for i, r := range sorted {
		out = append(out, ArtistRanking{
			Rank:                i + 1,
			ArtistKey:           r.ArtistKey,
			ArtistName:          r.ArtistName,
			Wallet:              r.Wallet,
			TwitterHandle:       r.TwitterHandle,
			TotalEarningsSol:    r.TotalEarningsSol,
			EarningsLamports:    r.EarningsLamports,
			BattlesParticipated: r.BattlesParticipated,
			Wins:                r.Wins,
		})
	}
	return out
}

// LeaderboardFromBattles ranks artists straight from the cache.
func LeaderboardFromBattles(battles []store.Battle, limit int, key SortKey) []ArtistRanking {
	return RankArtistStats(BuildArtistStats(battles), limit, key)
}
