package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/planwise/planner-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store depends on. Tests substitute
// a pgxmock pool through the same interface.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_narrative": `SELECT fingerprint, summary, model, created_at, expires_at FROM narrative_cache WHERE fingerprint = $1 AND expires_at > now()`,
	"set_narrative": `INSERT INTO narrative_cache (fingerprint, summary, model, created_at, expires_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (fingerprint) DO UPDATE SET summary = $2, model = $3, created_at = $4, expires_at = $5`,
	"insert_record": `INSERT INTO narrative_requests (id, fingerprint, query, outcome, cache_hit, duration_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS narrative_cache (
	fingerprint TEXT PRIMARY KEY,
	summary     TEXT NOT NULL,
	model       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS narrative_requests (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	fingerprint TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	cache_hit   BOOLEAN NOT NULL DEFAULT false,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_narrative_cache_expires_at ON narrative_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_narrative_requests_fingerprint ON narrative_requests(fingerprint);
CREATE INDEX IF NOT EXISTS idx_narrative_requests_outcome ON narrative_requests(outcome);
CREATE INDEX IF NOT EXISTS idx_narrative_requests_created_at ON narrative_requests(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetNarrative(ctx context.Context, fingerprint string) (*model.CachedNarrative, error) {
	var cn model.CachedNarrative
	err := s.pool.QueryRow(ctx,
		`SELECT fingerprint, summary, model, created_at, expires_at FROM narrative_cache
		 WHERE fingerprint = $1 AND expires_at > now()`,
		fingerprint,
	).Scan(&cn.Fingerprint, &cn.Summary, &cn.Model, &cn.CreatedAt, &cn.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get narrative")
	}
	return &cn, nil
}

func (s *PostgresStore) SetNarrative(ctx context.Context, entry model.CachedNarrative, ttl time.Duration) error {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO narrative_cache (fingerprint, summary, model, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (fingerprint) DO UPDATE SET summary = $2, model = $3, created_at = $4, expires_at = $5`,
		entry.Fingerprint, entry.Summary, entry.Model, now, expiresAt,
	)
	return eris.Wrap(err, "postgres: set narrative")
}

func (s *PostgresStore) DeleteExpiredNarratives(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM narrative_cache WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired narratives")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) PurgeNarratives(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM narrative_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge narratives")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec model.NarrativeRecord) (*model.NarrativeRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO narrative_requests (id, fingerprint, query, outcome, cache_hit, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Fingerprint, rec.Query, string(rec.Outcome), rec.CacheHit, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert record")
	}
	return &rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.NarrativeRecord, error) {
	query := `SELECT id, fingerprint, query, outcome, cache_hit, duration_ms, created_at FROM narrative_requests WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Outcome != "" {
		query += fmt.Sprintf(` AND outcome = $%d`, argIdx)
		args = append(args, string(filter.Outcome))
		argIdx++
	}
	if filter.Fingerprint != "" {
		query += fmt.Sprintf(` AND fingerprint = $%d`, argIdx)
		args = append(args, filter.Fingerprint)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.NarrativeRecord
	for rows.Next() {
		var r model.NarrativeRecord
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Query, &r.Outcome, &r.CacheHit, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}
