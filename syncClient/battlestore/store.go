// Package battlestore persists merged battles and the precomputed artist
// leaderboard in the local cache database.
package battlestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	syncerrors "github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/errors"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/store"
)

const (
	upsertBatchSize = 100

	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ErrBattleNotFound is returned by GetBattle for an unknown battle id.
var ErrBattleNotFound = errors.New("battle not found")

// ListFilter narrows ListBattles.
type ListFilter struct {
	Status      string // exact catalog status, empty for any
	IncludeTest bool
	Artist      string // case-insensitive substring of either artist name
	Limit       int    // clamped to [1, MaxListLimit], 0 means DefaultListLimit
	Offset      int
}

// Store provides database access for cached battles and artist stats.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a new battle store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "battle_store").Logger(),
	}
}

// UpsertBattles writes all battles in one transaction. Existing rows with the
// same battle id have every non-key column replaced. Either every row is
// written or none is.
func (s *Store) UpsertBattles(ctx context.Context, battles []store.Battle) (int, error) {
	if len(battles) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "battle_id"}},
			UpdateAll: true,
		}).CreateInBatches(&battles, upsertBatchSize).Error
	})
	if err != nil {
		return 0, syncerrors.NewDatabaseError("cache", fmt.Sprintf("failed to upsert %d battles", len(battles)), err)
	}

	s.logger.Debug().Int("count", len(battles)).Msg("upserted battles")
	return len(battles), nil
}

// GetBattle retrieves a battle by its battle id.
func (s *Store) GetBattle(ctx context.Context, battleID uint64) (*store.Battle, error) {
	var battle store.Battle
	err := s.db.WithContext(ctx).Where("battle_id = ?", battleID).First(&battle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBattleNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get battle %d", battleID)
	}
	return &battle, nil
}

// ListBattles returns cached battles newest first.
func (s *Store) ListBattles(ctx context.Context, filter ListFilter) ([]store.Battle, error) {
	query := s.db.WithContext(ctx).Model(&store.Battle{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if !filter.IncludeTest {
		query = query.Where("is_test = ?", false)
	}
	if artist := strings.TrimSpace(filter.Artist); artist != "" {
		pattern := "%" + strings.ToLower(artist) + "%"
		query = query.Where("LOWER(artist1_name) LIKE ? OR LOWER(artist2_name) LIKE ?", pattern, pattern)
	}

	var battles []store.Battle
	err := query.
		Order("battle_created_at DESC, battle_id DESC").
		Limit(clampLimit(filter.Limit)).
		Offset(max(filter.Offset, 0)).
		Find(&battles).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list battles")
	}
	return battles, nil
}

// AllBattles returns every cached battle ordered by battle id.
func (s *Store) AllBattles(ctx context.Context, includeTest bool) ([]store.Battle, error) {
	query := s.db.WithContext(ctx).Order("battle_id ASC")
	if !includeTest {
		query = query.Where("is_test = ?", false)
	}
	var battles []store.Battle
	if err := query.Find(&battles).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load battles")
	}
	return battles, nil
}

// CountBattles returns the number of cached battles.
func (s *Store) CountBattles(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&store.Battle{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count battles")
	}
	return n, nil
}

// ReplaceArtistStats swaps the artist_stats table contents for rows atomically.
func (s *Store) ReplaceArtistStats(ctx context.Context, rows []store.ArtistStat) error {
	now := time.Now().UTC()
	for i := range rows {
		rows[i].UpdatedAt = now
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&store.ArtistStat{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, upsertBatchSize).Error
	})
	if err != nil {
		return errors.Wrap(err, "failed to replace artist stats")
	}

	s.logger.Debug().Int("artists", len(rows)).Msg("replaced artist stats")
	return nil
}

// ListArtistStats returns every precomputed artist row.
func (s *Store) ListArtistStats(ctx context.Context) ([]store.ArtistStat, error) {
	var rows []store.ArtistStat
	if err := s.db.WithContext(ctx).Order("artist_key ASC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list artist stats")
	}
	return rows, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
