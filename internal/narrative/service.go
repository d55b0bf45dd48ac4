package narrative

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/planwise/planner-cli/internal/compliance"
	"github.com/planwise/planner-cli/internal/fingerprint"
	"github.com/planwise/planner-cli/internal/model"
	"github.com/planwise/planner-cli/internal/projection"
	"github.com/planwise/planner-cli/internal/resilience"
	"github.com/planwise/planner-cli/internal/scenario"
	"github.com/planwise/planner-cli/internal/store"
)

// Generator produces narrative text from a system prompt and a user prompt.
type Generator interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ScenarioParseError reports that the free-text scenario query could not be
// turned into projection overrides. Reason carries the failure taxonomy.
type ScenarioParseError struct {
	Reason  model.FailureReason
	Message string
}

func (e *ScenarioParseError) Error() string {
	return fmt.Sprintf("scenario parse failed (%s): %s", e.Reason, e.Message)
}

// Config tunes the narrative pipeline.
type Config struct {
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	Model    string        `yaml:"model" mapstructure:"model"`
}

// Service runs the narrative pipeline: scenario parse, projection merge,
// fingerprint, cache lookup, generation, and compliance validation.
type Service struct {
	parser    *scenario.Parser
	generator Generator
	store     store.Store
	validator *compliance.Validator
	cfg       Config
}

// NewService creates a narrative Service. The parser may be nil when scenario
// queries are not used.
func NewService(parser *scenario.Parser, gen Generator, st store.Store, v *compliance.Validator, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return &Service{
		parser:    parser,
		generator: gen,
		store:     st,
		validator: v,
		cfg:       cfg,
	}
}

// Generate produces a narrative summary for the projection input, applying the
// scenario query first when one is given. Rejected narratives carry the
// violated phrases but withhold the generated text.
func (s *Service) Generate(ctx context.Context, input model.ProjectionInput, query string) (*model.NarrativeResult, error) {
	log := zap.L()
	start := time.Now()

	var parsed *model.ParsedScenario
	if query != "" {
		if s.parser == nil {
			return nil, eris.New("narrative: no scenario parser configured")
		}
		resp := s.parser.Parse(ctx, query)
		if !resp.Success {
			s.audit(ctx, model.NarrativeRecord{
				Query:      query,
				Outcome:    model.OutcomeFailed,
				DurationMS: time.Since(start).Milliseconds(),
			})
			return nil, &ScenarioParseError{Reason: resp.Reason, Message: resp.Error}
		}
		parsed = resp.Data
	}

	merged := projection.Merge(input, parsed)
	fp, err := fingerprint.CacheKey(merged)
	if err != nil {
		return nil, eris.Wrap(err, "narrative: fingerprint")
	}
	log = log.With(zap.String("fingerprint", fp))

	cached, err := s.store.GetNarrative(ctx, fp)
	if err != nil {
		log.Warn("narrative: cache lookup failed", zap.Error(err))
	}
	if cached != nil {
		log.Info("narrative: cache hit")
		s.audit(ctx, model.NarrativeRecord{
			Fingerprint: fp,
			Query:       query,
			Outcome:     model.OutcomeCached,
			CacheHit:    true,
			DurationMS:  time.Since(start).Milliseconds(),
		})
		return &model.NarrativeResult{
			Summary:     cached.Summary,
			Fingerprint: fp,
			CacheHit:    true,
			Scenario:    parsed,
		}, nil
	}

	text, err := s.generator.Complete(ctx, systemText, buildPrompt(merged))
	if err != nil {
		if resilience.IsUpstreamUnavailable(err) {
			log.Warn("narrative: upstream unavailable", zap.Error(err))
		} else {
			log.Error("narrative: generation failed", zap.Error(err))
		}
		s.audit(ctx, model.NarrativeRecord{
			Fingerprint: fp,
			Query:       query,
			Outcome:     model.OutcomeFailed,
			DurationMS:  time.Since(start).Milliseconds(),
		})
		return nil, eris.Wrap(err, "narrative: generate")
	}

	vr := s.validator.ValidateText(text)
	if !vr.Valid {
		log.Warn("narrative: rejected by compliance policy",
			zap.Strings("violations", vr.Violations))
		s.audit(ctx, model.NarrativeRecord{
			Fingerprint: fp,
			Query:       query,
			Outcome:     model.OutcomeRejected,
			DurationMS:  time.Since(start).Milliseconds(),
		})
		return &model.NarrativeResult{
			Fingerprint: fp,
			Scenario:    parsed,
			Rejected:    true,
			Violations:  vr.Violations,
		}, nil
	}

	if err := s.store.SetNarrative(ctx, model.CachedNarrative{
		Fingerprint: fp,
		Summary:     text,
		Model:       s.cfg.Model,
	}, s.cfg.CacheTTL); err != nil {
		log.Warn("narrative: cache write failed", zap.Error(err))
	}

	s.audit(ctx, model.NarrativeRecord{
		Fingerprint: fp,
		Query:       query,
		Outcome:     model.OutcomeGenerated,
		DurationMS:  time.Since(start).Milliseconds(),
	})
	log.Info("narrative: generated",
		zap.Int("summary_len", len(text)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return &model.NarrativeResult{
		Summary:     text,
		Fingerprint: fp,
		Scenario:    parsed,
	}, nil
}

// audit records the request outcome. Audit failures are logged, never fatal.
func (s *Service) audit(ctx context.Context, rec model.NarrativeRecord) {
	if _, err := s.store.CreateRecord(ctx, rec); err != nil {
		zap.L().Warn("narrative: audit write failed", zap.Error(err))
	}
}
