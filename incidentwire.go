package incidentwire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/incidentwire/incidentwire/pkg/config"
	"github.com/incidentwire/incidentwire/pkg/extract"
	"github.com/incidentwire/incidentwire/pkg/nlp"
	"github.com/incidentwire/incidentwire/pkg/pipeline"
	"github.com/incidentwire/incidentwire/pkg/rank"
	"github.com/incidentwire/incidentwire/pkg/session"
	"github.com/incidentwire/incidentwire/pkg/source"
	"github.com/incidentwire/incidentwire/pkg/stream"
	"github.com/incidentwire/incidentwire/pkg/types"
	"github.com/incidentwire/incidentwire/pkg/utils"
)

// Options assembles a Service from its collaborators.
type Options struct {
	// Sources are the configured content sources the pipeline fans out to.
	Sources []source.Source

	// Extractor turns raw content into records. Required.
	Extractor extract.Extractor

	// Ranker scores records; defaults to rank.New with stock weights.
	Ranker *rank.Ranker

	// Defaults is the concurrency profile applied when a search does not
	// override it.
	Defaults pipeline.Config

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Service is the top-level entry point: it owns the session registry and the
// orchestrator, and hands out one frame stream per started search.
type Service struct {
	sessions *session.Manager
	orch     *pipeline.Orchestrator
	defaults pipeline.Config
	log      *slog.Logger
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Extractor == nil {
		return nil, errors.New("incidentwire: extractor is required")
	}
	if opts.Ranker == nil {
		opts.Ranker = rank.New(rank.DefaultWeights(), rank.DefaultThreshold)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		sessions: session.NewManager(opts.Logger),
		orch:     pipeline.New(opts.Sources, opts.Extractor, opts.Ranker, opts.Logger),
		defaults: opts.Defaults,
		log:      opts.Logger,
	}, nil
}

// NewFromConfig wires a Service from application configuration: source
// registry, OpenAI-compatible extraction client wrapped in retry and circuit
// breaking, and the configured ranker weights.
func NewFromConfig(cfg *config.Config, log *slog.Logger) (*Service, error) {
	defs, err := source.LoadDefinitions(cfg.Sources.Registry)
	if err != nil {
		return nil, fmt.Errorf("incidentwire: %w", err)
	}

	client, err := nlp.NewOpenAIClient(cfg.NLP.APIKey, nlp.Config{
		Model:       cfg.NLP.Model,
		BaseURL:     cfg.NLP.BaseURL,
		Temperature: &cfg.NLP.Temperature,
		MaxTokens:   &cfg.NLP.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("incidentwire: extraction backend: %w", err)
	}

	var chain nlp.Client = nlp.NewRetryClient(client, &nlp.RetryConfig{MaxRetries: cfg.NLP.MaxRetries})
	if cfg.CircuitBreaker.Enabled {
		chain = nlp.NewCircuitBreakerClient(chain, cfg.CircuitBreaker, log, "extraction")
	}

	return New(Options{
		Sources:   source.BuildAll(defs),
		Extractor: extract.NewLLMExtractor(chain),
		Ranker:    rank.New(cfg.Ranker.Weights, cfg.Ranker.Threshold),
		Defaults: pipeline.Config{
			FetchWidth:     cfg.Pipeline.FetchWidth,
			ExtractWidth:   cfg.Pipeline.ExtractWidth,
			FetchTimeout:   cfg.Pipeline.FetchTimeout(),
			ExtractTimeout: cfg.Pipeline.ExtractTimeout(),
			SessionTimeout: cfg.Pipeline.SessionTimeout(),
		},
		Logger: log,
	})
}

// StartSearch creates a session and begins driving it in the background.
// The returned channel carries the session's frames in completion order and
// closes after the terminal frame. ctx should be bound to the client
// connection: when it ends, the run stops admitting work.
func (s *Service) StartSearch(ctx context.Context, q types.Query, overrides *pipeline.Config) (*session.Session, <-chan stream.Frame) {
	cfg := s.defaults
	if overrides != nil {
		if overrides.FetchWidth > 0 {
			cfg.FetchWidth = overrides.FetchWidth
		}
		if overrides.ExtractWidth > 0 {
			cfg.ExtractWidth = overrides.ExtractWidth
		}
		if overrides.SessionTimeout > 0 {
			cfg.SessionTimeout = overrides.SessionTimeout
		}
	}

	sess := s.sessions.Create(q)
	em := stream.NewEmitter(ctx)

	utils.SafeGo(func() {
		s.orch.Run(ctx, sess, em, cfg)
	}, func(err error) {
		s.log.Error("search run panicked", "session_id", sess.ID, "error", err)
		sess.MarkTerminal(session.StateFailed)
		em.Close()
	})

	return sess, em.Frames()
}

// Cancel requests cooperative cancellation of a session.
func (s *Service) Cancel(id string) (session.CancelResult, error) {
	return s.sessions.RequestCancel(id)
}

// Get looks up a session by id.
func (s *Service) Get(id string) (*session.Session, error) {
	return s.sessions.Get(id)
}

// Dispose removes a session from the registry once its stream is drained.
func (s *Service) Dispose(id string) error {
	return s.sessions.Dispose(id)
}
