// Package db opens the local SQLite database holding the battle cache, the
// sync run log and the artist leaderboard table.
package db

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

const (
	// InMemorySQLiteDSN creates an ephemeral database, used by tests.
	InMemorySQLiteDSN = ":memory:"

	// DefaultFileName is the cache file inside the data directory.
	DefaultFileName = "wavewarz_cache.db"

	dataDirPermissions = 0o750

	// WAL plus a busy timeout lets API reads proceed while a sync run writes.
	fileDSNParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
)

// cacheModels are migrated on open. Order does not matter, none reference another.
var cacheModels = []any{
	&store.Battle{},
	&store.SyncRun{},
	&store.ArtistStat{},
}

// DB owns the gorm handle for the cache database.
type DB struct {
	client *gorm.DB
	path   string
}

// OpenFileDB opens or creates dir/filename, creating dir when missing.
// migrate runs AutoMigrate for the cache models.
func OpenFileDB(dir, filename string, migrate bool) (*DB, error) {
	if filename == "" {
		filename = DefaultFileName
	}
	if err := os.MkdirAll(dir, dataDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to create data directory %s", dir)
	}
	path := filepath.Join(dir, filename)
	return open(path, path+fileDSNParams, migrate)
}

// OpenInMemoryDB opens a database that disappears when closed.
func OpenInMemoryDB(migrate bool) (*DB, error) {
	return open(InMemorySQLiteDSN, InMemorySQLiteDSN, migrate)
}

func open(path, dsn string, migrate bool) (*DB, error) {
	client, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open cache database %s", path)
	}

	sqlDB, err := client.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying sql.DB")
	}
	// One connection keeps an in-memory database alive across calls and
	// serializes writers on a file database.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	d := &DB{client: client, path: path}
	if migrate {
		if err := d.Migrate(); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}
	return d, nil
}

// Migrate creates or updates the cache tables.
func (d *DB) Migrate() error {
	if err := d.client.AutoMigrate(cacheModels...); err != nil {
		return errors.Wrap(err, "failed to migrate cache schema")
	}
	return nil
}

// Client returns the gorm handle.
func (d *DB) Client() *gorm.DB {
	return d.client
}

// Path is the database file, or InMemorySQLiteDSN.
func (d *DB) Path() string {
	return d.path
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "cache database unreachable")
}

// Close closes the connection.
func (d *DB) Close() error {
	sqlDB, err := d.client.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return errors.Wrap(sqlDB.Close(), "failed to close cache database")
}
