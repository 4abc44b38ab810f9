// Package store contains GORM-backed SQLite models used by the WaveWarz sync daemon.
//
// Database Structure (database file: wavewarz_cache.db):
//
//	data/
//	└── wavewarz_cache.db
//	    ├── battles_cache
//	    ├── sync_log
//	    └── artist_stats
package store

import (
	"time"

	"gorm.io/gorm"
)

// WalletUnknown is stored for artist wallets when a battle has no ledger state.
const WalletUnknown = "unknown"

// Catalog battle statuses.
const (
	BattleStatusActive    = "Active"
	BattleStatusCompleted = "Completed"
	BattleStatusPending   = "Pending"
)

// Sync run statuses. A run starts in_progress and ends in exactly one of the
// other two.
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusCompleted  = "completed"
	SyncStatusFailed     = "failed"
)

// Sync run types.
const (
	SyncTypeScheduled = "scheduled"
	SyncTypeManual    = "manual"
	SyncTypeTriggered = "triggered"
)

// Battle is one cached catalog battle merged with its ledger state.
// One row per battle id; a re-sync replaces every non-key column.
// LedgerData is the JSON ledger snapshot, "null" when the battle was not enriched.
//
// No column carries a gorm default or auto timestamp so that an upsert with
// UpdateAll overwrites the whole row.
type Battle struct {
	BattleID        uint64    `gorm:"column:battle_id;primaryKey;autoIncrement:false" json:"battleId"`
	CatalogID       string    `gorm:"column:catalog_id;index" json:"catalogId"`
	BattleCreatedAt time.Time `gorm:"column:battle_created_at;index" json:"createdAt"`
	Status          string    `gorm:"column:status;index" json:"status"`

	// Artist A is artist1, artist B is artist2. Wallets are base58 or "unknown".
	Artist1Name    string  `gorm:"column:artist1_name" json:"artist1Name"`
	Artist2Name    string  `gorm:"column:artist2_name" json:"artist2Name"`
	Artist1Wallet  string  `gorm:"column:artist1_wallet;index" json:"artist1Wallet"`
	Artist2Wallet  string  `gorm:"column:artist2_wallet;index" json:"artist2Wallet"`
	ImageURL       string  `gorm:"column:image_url" json:"imageUrl"`
	Artist1Music   *string `gorm:"column:artist1_music_link" json:"artist1MusicLink,omitempty"`
	Artist2Music   *string `gorm:"column:artist2_music_link" json:"artist2MusicLink,omitempty"`
	Artist1Twitter *string `gorm:"column:artist1_twitter" json:"artist1Twitter,omitempty"`
	Artist2Twitter *string `gorm:"column:artist2_twitter" json:"artist2Twitter,omitempty"`
	StreamLink     *string `gorm:"column:stream_link" json:"streamLink,omitempty"`

	// Ledger state. Pools are lamports, times are unix seconds.
	ArtistAPool    uint64 `gorm:"column:artist1_pool" json:"artist1Pool"`
	ArtistBPool    uint64 `gorm:"column:artist2_pool" json:"artist2Pool"`
	ArtistASupply  uint64 `gorm:"column:artist1_supply" json:"artist1Supply"`
	ArtistBSupply  uint64 `gorm:"column:artist2_supply" json:"artist2Supply"`
	BattleDuration int64  `gorm:"column:battle_duration" json:"battleDuration"`
	StartTime      int64  `gorm:"column:start_time" json:"startTime"`
	EndTime        int64  `gorm:"column:end_time" json:"endTime"`
	IsActive       bool   `gorm:"column:is_active" json:"isActive"`
	WinnerDecided  bool   `gorm:"column:winner_decided" json:"winnerDecided"`
	WinnerArtistA  *bool  `gorm:"column:winner_artist_a" json:"winnerArtistA"`

	IsTest       bool      `gorm:"column:is_test;index" json:"isTest"`
	LastSyncedAt time.Time `gorm:"column:last_synced_at" json:"lastSyncedAt"`
	LedgerData   []byte    `gorm:"column:blockchain_data" json:"-"`
}

// TableName specifies the table name for Battle.
func (Battle) TableName() string {
	return "battles_cache"
}

// TotalVolumeLamports is the sum of both artist pools.
func (b Battle) TotalVolumeLamports() uint64 {
	return b.ArtistAPool + b.ArtistBPool
}

// SyncRun is the audit record of one pipeline run.
// Table name: "sync_log"
type SyncRun struct {
	gorm.Model
	RunID       string     `gorm:"uniqueIndex;not null"`
	StartedAt   time.Time  `gorm:"index;not null"`
	CompletedAt *time.Time `gorm:"index"`
	Status      string     `gorm:"index;not null"`
	SyncType    string

	BattlesFetched    int
	BattlesSynced     int
	BlockchainQueries int // ledger RPC round trips

	ErrorMessage string `gorm:"type:text"`
	Errors       []byte // JSON list of per-battle enrichment failures
	Details      []byte // JSON run parameters
}

// TableName specifies the table name for SyncRun.
func (SyncRun) TableName() string {
	return "sync_log"
}

// ArtistStat is a precomputed leaderboard row, rebuilt after every successful sync.
// ArtistKey is the wallet, or the artist name when the wallet is unknown.
type ArtistStat struct {
	ArtistKey           string `gorm:"primaryKey"`
	ArtistName          string
	Wallet              string
	TwitterHandle       string
	EarningsLamports    uint64
	TotalEarningsSol    float64
	BattlesParticipated int `gorm:"index"`
	Wins                int `gorm:"index"`
	UpdatedAt           time.Time
}

// TableName specifies the table name for ArtistStat.
func (ArtistStat) TableName() string {
	return "artist_stats"
}
