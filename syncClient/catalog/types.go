// Package catalog reads battles from the official WaveWarz database. The
// catalog is owned elsewhere and is only ever read.
package catalog

import (
	"context"
	"time"
)

// Battle is one catalog row.
type Battle struct {
	ID               string // catalog row uuid
	BattleID         uint64 // ledger battle id
	CreatedAt        time.Time
	Status           string // "Active", "Completed" or "Pending"
	Artist1          string
	Artist2          string
	ImageURL         string
	Duration         int64 // seconds, 0 when unset
	Artist1MusicLink *string
	Artist2MusicLink *string
	Artist1Twitter   *string
	Artist2Twitter   *string
	StreamLink       *string
}

// Query selects catalog battles newest first.
type Query struct {
	Limit int        // maximum rows, must be positive
	Since *time.Time // only battles created strictly after Since when set
}

// Source fetches catalog battles.
type Source interface {
	FetchBattles(ctx context.Context, q Query) ([]Battle, error)
}
