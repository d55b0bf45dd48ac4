package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/planwise/planner-cli/internal/model"
)

// RecordFilter specifies criteria for listing narrative request records.
type RecordFilter struct {
	Outcome     model.NarrativeOutcome `json:"outcome,omitempty"`
	Fingerprint string                 `json:"fingerprint,omitempty"`
	Limit       int                    `json:"limit,omitempty"`
	Offset      int                    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the narrative cache and the
// request audit log.
type Store interface {
	// Narrative cache
	GetNarrative(ctx context.Context, fingerprint string) (*model.CachedNarrative, error)
	SetNarrative(ctx context.Context, entry model.CachedNarrative, ttl time.Duration) error
	DeleteExpiredNarratives(ctx context.Context) (int, error)
	PurgeNarratives(ctx context.Context) (int, error)

	// Audit log
	CreateRecord(ctx context.Context, rec model.NarrativeRecord) (*model.NarrativeRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.NarrativeRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the given driver. An empty driver defaults to
// sqlite.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
