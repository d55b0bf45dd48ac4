package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/planwise/planner-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS narrative_cache (
	fingerprint TEXT PRIMARY KEY,
	summary     TEXT NOT NULL,
	model       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS narrative_requests (
	id          TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	cache_hit   INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_narrative_cache_expires_at ON narrative_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_narrative_requests_fingerprint ON narrative_requests(fingerprint);
CREATE INDEX IF NOT EXISTS idx_narrative_requests_outcome ON narrative_requests(outcome);
CREATE INDEX IF NOT EXISTS idx_narrative_requests_created_at ON narrative_requests(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetNarrative(ctx context.Context, fingerprint string) (*model.CachedNarrative, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, summary, model, created_at, expires_at FROM narrative_cache
		 WHERE fingerprint = ? AND expires_at > datetime('now')`,
		fingerprint,
	)

	var cn model.CachedNarrative
	err := row.Scan(&cn.Fingerprint, &cn.Summary, &cn.Model, &cn.CreatedAt, &cn.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get narrative")
	}
	return &cn, nil
}

func (s *SQLiteStore) SetNarrative(ctx context.Context, entry model.CachedNarrative, ttl time.Duration) error {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO narrative_cache (fingerprint, summary, model, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO UPDATE SET summary = excluded.summary,
		   model = excluded.model, created_at = excluded.created_at, expires_at = excluded.expires_at`,
		entry.Fingerprint, entry.Summary, entry.Model, now, expiresAt,
	)
	return eris.Wrap(err, "sqlite: set narrative")
}

func (s *SQLiteStore) DeleteExpiredNarratives(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM narrative_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired narratives")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) PurgeNarratives(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM narrative_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge narratives")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec model.NarrativeRecord) (*model.NarrativeRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO narrative_requests (id, fingerprint, query, outcome, cache_hit, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Fingerprint, rec.Query, string(rec.Outcome), rec.CacheHit, rec.DurationMS, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert record")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.NarrativeRecord, error) {
	query := `SELECT id, fingerprint, query, outcome, cache_hit, duration_ms, created_at FROM narrative_requests WHERE 1=1`
	var args []any

	if filter.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(filter.Outcome))
	}
	if filter.Fingerprint != "" {
		query += ` AND fingerprint = ?`
		args = append(args, filter.Fingerprint)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.NarrativeRecord
	for rows.Next() {
		var r model.NarrativeRecord
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Query, &r.Outcome, &r.CacheHit, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}
