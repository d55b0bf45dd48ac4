package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/planwise/planner-cli/internal/compliance"
	"github.com/planwise/planner-cli/internal/model"
	"github.com/planwise/planner-cli/internal/narrative"
	"github.com/planwise/planner-cli/internal/scenario"
	"github.com/planwise/planner-cli/internal/store"
	anthropicpkg "github.com/planwise/planner-cli/pkg/anthropic"
)

// appEnv holds the initialized store, parser, validator, and narrative
// service shared by the CLI commands and the server.
type appEnv struct {
	Store     store.Store
	Schema    *model.OverrideSchema
	Parser    *scenario.Parser
	Validator *compliance.Validator
	Narrative *narrative.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	var poolCfg *store.PoolConfig
	if cfg.Store.MaxConns > 0 || cfg.Store.MinConns > 0 {
		poolCfg = &store.PoolConfig{MaxConns: cfg.Store.MaxConns, MinConns: cfg.Store.MinConns}
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv sets up the store, the Anthropic client, the scenario parser, the
// compliance validator, and the narrative service. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("PLANWISE_ANTHROPIC_KEY is required")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	policy, err := compliance.LoadPolicy(cfg.Compliance.PolicyPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	validator := compliance.NewValidator(policy)

	aiClient := anthropicpkg.NewClient(cfg.Anthropic.Key,
		anthropicpkg.WithRateLimit(cfg.Anthropic.RateLimit, cfg.Anthropic.RateBurst))

	schema := model.DefaultOverrideSchema()
	parser := scenario.NewParser(
		scenario.NewAnthropicProvider(aiClient, cfg.Anthropic.HaikuModel),
		schema,
		scenario.Config{
			ConfidenceThreshold: cfg.Scenario.ConfidenceThreshold,
			Timeout:             time.Duration(cfg.Scenario.TimeoutSecs) * time.Second,
		},
	)

	svc := narrative.NewService(
		parser,
		scenario.NewAnthropicProvider(aiClient, cfg.Anthropic.SonnetModel),
		st,
		validator,
		narrative.Config{
			CacheTTL: time.Duration(cfg.Narrative.CacheTTLHours) * time.Hour,
			Model:    cfg.Anthropic.SonnetModel,
		},
	)

	return &appEnv{
		Store:     st,
		Schema:    schema,
		Parser:    parser,
		Validator: validator,
		Narrative: svc,
	}, nil
}
