package syncer

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/catalog"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/classifier"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/ledger"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

const unknownArtist = "Unknown"

// MergeBattles combines catalog battles with their ledger state into cache
// rows, in catalog order. A battle without ledger state keeps zero pools,
// unknown wallets and an undecided winner. When the catalog repeats a battle
// id the first (newest) row wins. recordErrors lists decode failures of the
// merged battles, sorted by battle id.
func MergeBattles(battles []catalog.Battle, batch *ledger.BatchResult, syncedAt time.Time) (rows []store.Battle, recordErrors []string) {
	rows = make([]store.Battle, 0, len(battles))
	seen := make(map[uint64]struct{}, len(battles))
	var failed []uint64

	for _, b := range battles {
		if _, dup := seen[b.BattleID]; dup {
			continue
		}
		seen[b.BattleID] = struct{}{}

		var state *ledger.BattleState
		if batch != nil {
			state = batch.States[b.BattleID]
			if _, ok := batch.Failures[b.BattleID]; ok {
				failed = append(failed, b.BattleID)
			}
		}
		rows = append(rows, mergeOne(b, state, syncedAt))
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
	for _, id := range failed {
		recordErrors = append(recordErrors, fmt.Sprintf("battle %d: %v", id, batch.Failures[id]))
	}
	return rows, recordErrors
}

func mergeOne(b catalog.Battle, state *ledger.BattleState, syncedAt time.Time) store.Battle {
	row := store.Battle{
		BattleID:        b.BattleID,
		CatalogID:       b.ID,
		BattleCreatedAt: b.CreatedAt.UTC(),
		Status:          b.Status,
		Artist1Name:     orDefault(b.Artist1, unknownArtist),
		Artist2Name:     orDefault(b.Artist2, unknownArtist),
		Artist1Wallet:   store.WalletUnknown,
		Artist2Wallet:   store.WalletUnknown,
		ImageURL:        b.ImageURL,
		Artist1Music:    b.Artist1MusicLink,
		Artist2Music:    b.Artist2MusicLink,
		Artist1Twitter:  b.Artist1Twitter,
		Artist2Twitter:  b.Artist2Twitter,
		StreamLink:      b.StreamLink,
		BattleDuration:  b.Duration,
		IsTest:          classifier.IsTestPair(b.Artist1, b.Artist2),
		LastSyncedAt:    syncedAt.UTC(),
		LedgerData:      []byte("null"),
	}
	if state == nil {
		return row
	}

	row.Artist1Wallet = orDefault(state.ArtistAWallet, store.WalletUnknown)
	row.Artist2Wallet = orDefault(state.ArtistBWallet, store.WalletUnknown)
	row.ArtistAPool = state.ArtistAPool
	row.ArtistBPool = state.ArtistBPool
	row.ArtistASupply = state.ArtistASupply
	row.ArtistBSupply = state.ArtistBSupply
	row.StartTime = state.StartTime
	row.EndTime = state.EndTime
	row.IsActive = state.IsActive
	row.WinnerDecided = state.WinnerDecided
	row.WinnerArtistA = state.WinnerArtistA()
	if snapshot, err := json.Marshal(state); err == nil {
		row.LedgerData = snapshot
	}
	return row
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
