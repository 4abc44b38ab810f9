package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cast"

	syncerrors "github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/errors"
)

const (
	configSubdir   = "config"
	configFileName = "wavewarz_config.json"

	// maxLedgerBatchSize is the getMultipleAccounts account limit.
	maxLedgerBatchSize = 100
)

// Environment variables that override the file configuration.
const (
	EnvCatalogDatabaseURL = "OFFICIAL_WAVEWARZ_DB_URL"
	EnvSolanaRPCURLs      = "SOLANA_RPC_URLS"
	EnvProgramID          = "WAVEWARZ_PROGRAM_ID"
	EnvRedisURL           = "REDIS_URL"
	EnvSolPriceUSD        = "SOL_PRICE_USD"
	EnvLogLevel           = "WAVEWARZ_LOG_LEVEL"
	EnvQueryServerPort    = "WAVEWARZ_QUERY_PORT"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = "wavewarz_cache.db"
	}
	if cfg.CatalogTable == "" {
		cfg.CatalogTable = "battles"
	}

	// Set defaults for ledger reads
	if cfg.LedgerMaxBatchSize == 0 {
		cfg.LedgerMaxBatchSize = maxLedgerBatchSize
	}
	if cfg.LedgerMaxBatchSize < 0 || cfg.LedgerMaxBatchSize > maxLedgerBatchSize {
		return fmt.Errorf("ledger max batch size must be between 1 and %d", maxLedgerBatchSize)
	}
	if cfg.LedgerMaxParallel <= 0 {
		cfg.LedgerMaxParallel = 4
	}
	if cfg.RPCRequestTimeoutSeconds == 0 {
		cfg.RPCRequestTimeoutSeconds = 10
	}

	// Set defaults for sync scheduling
	if cfg.SyncIntervalSeconds == 0 {
		cfg.SyncIntervalSeconds = 300
	}
	if cfg.SyncStepTimeoutSeconds == 0 {
		cfg.SyncStepTimeoutSeconds = 30
	}
	if cfg.DefaultSyncLimit == 0 {
		cfg.DefaultSyncLimit = 100
	}
	if cfg.IncrementalSyncLimit == 0 {
		cfg.IncrementalSyncLimit = 200
	}
	if cfg.MaxSyncLimit == 0 {
		cfg.MaxSyncLimit = 1000
	}
	if cfg.MaxSyncLimit < 0 || cfg.DefaultSyncLimit > cfg.MaxSyncLimit || cfg.IncrementalSyncLimit > cfg.MaxSyncLimit {
		return fmt.Errorf("sync limits must not exceed max sync limit %d", cfg.MaxSyncLimit)
	}
	if cfg.StaleRunTimeoutSeconds == 0 {
		cfg.StaleRunTimeoutSeconds = 1800
	}
	if cfg.StaleSweepIntervalSeconds == 0 {
		cfg.StaleSweepIntervalSeconds = 300
	}
	if cfg.RunLockTTLSeconds == 0 {
		cfg.RunLockTTLSeconds = 900
	}

	// Set defaults for query server
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = 8080
	}

	if cfg.SolPriceUSD == 0 {
		cfg.SolPriceUSD = 145.0
	}
	if cfg.SolPriceUSD < 0 {
		return fmt.Errorf("sol price must be positive")
	}

	return nil
}

// Validate applies defaults and checks that every source a sync run needs is
// configured. It must pass before any run starts.
func Validate(cfg *Config) error {
	if err := validateConfig(cfg); err != nil {
		return syncerrors.NewConfigError(err.Error())
	}
	if strings.TrimSpace(cfg.CatalogDatabaseURL) == "" {
		return syncerrors.NewConfigError(fmt.Sprintf("catalog database url is required (set %s)", EnvCatalogDatabaseURL))
	}
	if len(cfg.SolanaRPCURLs) == 0 {
		return syncerrors.NewConfigError(fmt.Sprintf("at least one solana rpc url is required (set %s)", EnvSolanaRPCURLs))
	}
	if cfg.ProgramID == "" {
		return syncerrors.NewConfigError(fmt.Sprintf("program id is required (set %s)", EnvProgramID))
	}
	if _, err := solana.PublicKeyFromBase58(cfg.ProgramID); err != nil {
		return syncerrors.NewConfigError(fmt.Sprintf("invalid program id %q: %v", cfg.ProgramID, err))
	}
	return nil
}

// ApplyEnv overrides file values with environment variables. lookup is
// usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvCatalogDatabaseURL); ok && v != "" {
		cfg.CatalogDatabaseURL = v
	}
	if v, ok := lookup(EnvSolanaRPCURLs); ok && v != "" {
		cfg.SolanaRPCURLs = splitList(v)
	}
	if v, ok := lookup(EnvProgramID); ok && v != "" {
		cfg.ProgramID = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRedisURL); ok {
		cfg.RedisURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSolPriceUSD); ok && v != "" {
		price, err := cast.ToFloat64E(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSolPriceUSD, err)
		}
		cfg.SolPriceUSD = price
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		level, err := cast.ToIntE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = level
	}
	if v, ok := lookup(EnvQueryServerPort); ok && v != "" {
		port, err := cast.ToIntE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvQueryServerPort, err)
		}
		cfg.QueryServerPort = port
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save writes the given config to <NodeDir>/config/wavewarz_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, configFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads and returns the config from <BasePath>/config/wavewarz_config.json.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, configSubdir, configFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads the config under basePath, falling back to the embedded
// defaults when no file exists yet.
func LoadOrDefault(basePath string) (Config, error) {
	cfg, err := Load(basePath)
	if err == nil {
		return cfg, nil
	}
	if !syncerrors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	def, err := LoadDefaultConfig()
	if err != nil {
		return Config{}, err
	}
	return *def, nil
}

// Resolve loads the config under basePath (or the embedded defaults), applies
// environment overrides from lookup and fills defaults. It does not require the
// sync sources; call Validate before running a sync.
func Resolve(basePath string, lookup func(string) (string, bool)) (Config, error) {
	cfg, err := LoadOrDefault(basePath)
	if err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		return Config{}, syncerrors.NewConfigError(err.Error())
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, syncerrors.NewConfigError(err.Error())
	}
	return cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}
