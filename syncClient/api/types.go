package api

import (
	"encoding/json"
	"time"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

// QueryResponse represents the standard list response format
type QueryResponse struct {
	Data  interface{} `json:"data"`
	Count int         `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SyncRunView is the JSON form of a sync_log row.
type SyncRunView struct {
	RunID             string          `json:"syncRunId"`
	Status            string          `json:"status"`
	SyncType          string          `json:"syncType"`
	StartedAt         time.Time       `json:"startedAt"`
	CompletedAt       *time.Time      `json:"completedAt,omitempty"`
	BattlesFetched    int             `json:"battlesFetched"`
	BattlesSynced     int             `json:"battlesSynced"`
	BlockchainQueries int             `json:"blockchainQueries"`
	ErrorMessage      string          `json:"errorMessage,omitempty"`
	Errors            json.RawMessage `json:"errors,omitempty"`
	Details           json.RawMessage `json:"details,omitempty"`
}

// NewSyncRunView converts a run log row.
func NewSyncRunView(r store.SyncRun) SyncRunView {
	v := SyncRunView{
		RunID:             r.RunID,
		Status:            r.Status,
		SyncType:          r.SyncType,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		BattlesFetched:    r.BattlesFetched,
		BattlesSynced:     r.BattlesSynced,
		BlockchainQueries: r.BlockchainQueries,
		ErrorMessage:      r.ErrorMessage,
	}
	if json.Valid(r.Errors) {
		v.Errors = r.Errors
	}
	if json.Valid(r.Details) {
		v.Details = r.Details
	}
	return v
}
