package config

import "time"

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	DatabaseFile string `json:"database_file"` // SQLite cache file inside <home>/data

	// Official catalog (read-only Postgres)
	CatalogDatabaseURL string `json:"catalog_database_url"` // postgres:// DSN of the official battles database
	CatalogTable       string `json:"catalog_table"`        // default: battles

	// Solana ledger
	SolanaRPCURLs            []string `json:"solana_rpc_urls"`             // RPC endpoints, used round-robin with failover
	ProgramID                string   `json:"program_id"`                  // WaveWarz program (base58)
	LedgerMaxBatchSize       int      `json:"ledger_max_batch_size"`       // accounts per getMultipleAccounts call (max 100)
	LedgerMaxParallel        int      `json:"ledger_max_parallel"`         // concurrent batch calls
	RPCRequestTimeoutSeconds int      `json:"rpc_request_timeout_seconds"` // per RPC call

	// Sync scheduling
	SyncIntervalSeconds       int `json:"sync_interval_seconds"`        // incremental sync period
	SyncStepTimeoutSeconds    int `json:"sync_step_timeout_seconds"`    // bound on each network step of a run
	DefaultSyncLimit          int `json:"default_sync_limit"`           // manual/full sync limit
	IncrementalSyncLimit      int `json:"incremental_sync_limit"`       // incremental sync limit
	MaxSyncLimit              int `json:"max_sync_limit"`               // upper bound on any requested sync limit
	StaleRunTimeoutSeconds    int `json:"stale_run_timeout_seconds"`    // in_progress runs older than this are failed
	StaleSweepIntervalSeconds int `json:"stale_sweep_interval_seconds"` // how often the stale run sweep runs

	// Run lock
	RedisURL          string `json:"redis_url"`            // optional; empty uses an in-process lock
	RunLockTTLSeconds int    `json:"run_lock_ttl_seconds"` // redis lock expiry

	// Query Server Config
	QueryServerPort int `json:"query_server_port"` // Port for HTTP query server (default: 8080)

	// Pricing
	SolPriceUSD float64 `json:"sol_price_usd"` // static SOL/USD rate used when no live source is wired
}

// SyncInterval returns the incremental sync period.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// StepTimeout returns the bound applied to every network step of a run.
func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.SyncStepTimeoutSeconds) * time.Second
}

// RPCRequestTimeout returns the per-call Solana RPC timeout.
func (c *Config) RPCRequestTimeout() time.Duration {
	return time.Duration(c.RPCRequestTimeoutSeconds) * time.Second
}

// StaleRunTimeout returns the age after which an in_progress run is considered abandoned.
func (c *Config) StaleRunTimeout() time.Duration {
	return time.Duration(c.StaleRunTimeoutSeconds) * time.Second
}

// StaleSweepInterval returns the period of the stale run sweep.
func (c *Config) StaleSweepInterval() time.Duration {
	return time.Duration(c.StaleSweepIntervalSeconds) * time.Second
}

// RunLockTTL returns the expiry of the distributed run lock.
func (c *Config) RunLockTTL() time.Duration {
	return time.Duration(c.RunLockTTLSeconds) * time.Second
}
