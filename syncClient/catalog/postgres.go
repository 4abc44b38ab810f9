package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	syncerrors "github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/errors"
)

const (
	sourceName   = "catalog"
	DefaultTable = "battles"
	maxPrealloc  = 256

	selectColumns = `id::text, battle_id, created_at, status, artist1, artist2, img, duration,
	artist1_music_link, artist2_music_link, artist1_twitter, artist2_twitter, stream_link`
)

// PostgresSource reads the catalog through a pgx connection pool.
type PostgresSource struct {
	pool   *pgxpool.Pool
	table  string
	logger zerolog.Logger
}

// NewPostgresSource connects to the catalog database and verifies the
// connection. table may be schema-qualified ("public.battles").
func NewPostgresSource(ctx context.Context, dsn, table string, logger zerolog.Logger) (*PostgresSource, error) {
	if table == "" {
		table = DefaultTable
	}
	if _, err := quoteTable(table); err != nil {
		return nil, syncerrors.NewConfigError(err.Error())
	}

	pgConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, syncerrors.NewConfigError(fmt.Sprintf("failed to parse catalog DSN: %v", err))
	}
	// The catalog is read-only from our side.
	pgConfig.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	pgConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		return nil, syncerrors.NewTransportError(sourceName, "failed to create catalog connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, syncerrors.NewTransportError(sourceName, "failed to ping catalog database", err)
	}

	log := logger.With().Str("component", "catalog").Logger()
	log.Info().Str("host", pgConfig.ConnConfig.Host).Str("table", table).Msg("connected to catalog database")

	return &PostgresSource{pool: pool, table: table, logger: log}, nil
}

// Close releases the pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// FetchBattles returns at most q.Limit battles ordered by created_at DESC.
func (s *PostgresSource) FetchBattles(ctx context.Context, q Query) ([]Battle, error) {
	sql, args, err := buildQuery(s.table, q)
	if err != nil {
		return nil, syncerrors.NewConfigError(err.Error())
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, syncerrors.WrapSyncError(err, syncerrors.ErrCodeTransport, sourceName, "failed to fetch from official DB")
	}
	defer rows.Close()

	battles := make([]Battle, 0, min(q.Limit, maxPrealloc))
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, syncerrors.NewDecodeError(sourceName, "failed to scan catalog row", err)
		}
		battles = append(battles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, syncerrors.WrapSyncError(err, syncerrors.ErrCodeTransport, sourceName, "failed to fetch from official DB")
	}

	s.logger.Debug().Int("count", len(battles)).Msg("fetched catalog battles")
	return battles, nil
}

func scanBattle(row pgx.Row) (Battle, error) {
	var (
		b                Battle
		battleID         int64
		status           *string
		artist1, artist2 *string
		img              *string
		duration         *int64
	)
	err := row.Scan(
		&b.ID, &battleID, &b.CreatedAt, &status, &artist1, &artist2, &img, &duration,
		&b.Artist1MusicLink, &b.Artist2MusicLink, &b.Artist1Twitter, &b.Artist2Twitter, &b.StreamLink,
	)
	if err != nil {
		return Battle{}, err
	}
	if battleID < 0 {
		return Battle{}, fmt.Errorf("negative battle_id %d", battleID)
	}
	b.BattleID = uint64(battleID)
	b.Status = deref(status)
	b.Artist1 = deref(artist1)
	b.Artist2 = deref(artist2)
	b.ImageURL = deref(img)
	if duration != nil {
		b.Duration = *duration
	}
	return b, nil
}

// buildQuery renders the catalog select for q.
func buildQuery(table string, q Query) (string, []any, error) {
	if q.Limit <= 0 {
		return "", nil, fmt.Errorf("catalog query limit must be positive, got %d", q.Limit)
	}
	quoted, err := quoteTable(table)
	if err != nil {
		return "", nil, err
	}

	var (
		sb   strings.Builder
		args []any
	)
	fmt.Fprintf(&sb, "SELECT %s FROM %s", selectColumns, quoted)
	if q.Since != nil {
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
		fmt.Fprintf(&sb, " WHERE created_at > $%d::timestamptz", len(args))
	}
	args = append(args, q.Limit)
	fmt.Fprintf(&sb, " ORDER BY created_at DESC, battle_id DESC LIMIT $%d", len(args))
	return sb.String(), args, nil
}

func quoteTable(table string) (string, error) {
	parts := strings.Split(table, ".")
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("invalid catalog table name %q", table)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
