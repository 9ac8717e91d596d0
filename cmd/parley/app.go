package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/dotcommander/parley/internal/config"
	"github.com/dotcommander/parley/internal/core"
	"github.com/dotcommander/parley/internal/dialogue"
	"github.com/dotcommander/parley/internal/domain"
	"github.com/dotcommander/parley/internal/relationship"
	"github.com/dotcommander/parley/internal/saliency"
	"github.com/dotcommander/parley/internal/scoring"
	"github.com/dotcommander/parley/internal/storage"
	"github.com/dotcommander/parley/internal/trace"
	"github.com/dotcommander/parley/internal/workpool"
	"github.com/dotcommander/parley/pkg/events"
)

// app holds the wired engine for one process.
type app struct {
	cfg           *config.Config
	root          *slog.Logger
	logger        *slog.Logger
	catalog       *storage.Catalog
	relationships relationship.Provider
	closeRels     func() error
	bus           *events.Bus
	sink          trace.Sink
	tracer        *sdktrace.TracerProvider
	builder       *dialogue.Builder
	transcripts   core.Storage
}

func newApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := cfg.Logging.NewLogger(logOut)

	content := storage.NewFileSystem(cfg.Content.Dir)
	logger.Debug("Loading content", "component", "app", "dir", content.BaseDir())
	catalog, err := storage.LoadCatalog(ctx, content, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}

	a := &app{
		cfg:       cfg,
		root:      logger,
		logger:    logger.With("component", "app"),
		catalog:   catalog,
		bus:       events.NewBus(logger),
		closeRels: func() error { return nil },
	}

	switch cfg.Relationships.Backend {
	case "sqlite":
		store, err := relationship.OpenSQLite(ctx, cfg.Relationships.DSN, logger,
			relationship.WithDefault(cfg.Relationships.Default))
		if err != nil {
			return nil, fmt.Errorf("failed to open relationship store: %w", err)
		}
		a.relationships = store
		a.closeRels = store.Close
	default:
		a.relationships = relationship.NewStore(relationship.WithDefault(cfg.Relationships.Default))
	}

	var sinks trace.Multi
	if cfg.Tracing.Log {
		sinks = append(sinks, trace.NewSlog(logger))
	}
	if cfg.Tracing.Spans {
		a.tracer = trace.NewTracerProvider(logger)
		sinks = append(sinks, trace.NewOTel(a.tracer))
	}
	if len(sinks) > 0 {
		a.sink = sinks
	}

	builder, err := a.newBuilder(logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.builder = builder

	if cfg.Content.TranscriptDir != "" {
		a.transcripts = storage.NewFileSystem(cfg.Content.TranscriptDir)
	}

	_, _ = events.Subscribe(a.bus, func(ctx context.Context, e core.SceneEnded) error {
		a.logger.Info("Scene ended", "scene_id", e.SceneID, "last_beat", e.LastBeatID, "reason", e.Reason)
		return nil
	})

	return a, nil
}

func (a *app) newBuilder(logger *slog.Logger) (*dialogue.Builder, error) {
	strategy, err := saliency.NewRegistry().Get(a.cfg.Selection.Strategy)
	if err != nil {
		return nil, err
	}

	seed := a.cfg.Selection.Seed
	if seed == 0 {
		if seed, err = saliency.NewSeed(); err != nil {
			return nil, fmt.Errorf("failed to seed selection: %w", err)
		}
	}
	a.logger.Debug("Selection seeded", "seed", seed, "strategy", strategy.Name())

	selection := saliency.NewSelectionContext(
		saliency.WithRecencyWindow(a.cfg.Selection.RecencyWindow),
		saliency.WithRecencyPenalty(a.cfg.Selection.RecencyPenalty),
		saliency.WithRandom(saliency.NewSeededRandom(seed)),
	)

	pool := workpool.New(
		workpool.WithWorkers(a.cfg.Scoring.Workers),
		workpool.WithThreshold(a.cfg.Scoring.ParallelThreshold),
		workpool.WithLogger(logger),
	)
	a.logger.Debug("Scoring pool ready", "workers", pool.Workers(), "threshold", a.cfg.Scoring.ParallelThreshold)

	custom := scoring.NewValues()
	for tag, w := range a.cfg.Scoring.TagWeights {
		custom.SetTagWeight(tag, w)
	}
	scorer := scoring.NewScorer(
		scoring.WithBaseScore(a.cfg.Scoring.BaseScore),
		scoring.WithPool(pool),
		scoring.WithLogger(logger),
	)

	return dialogue.NewBuilder(
		dialogue.WithScorer(scorer),
		dialogue.WithStrategy(strategy),
		dialogue.WithSelection(selection),
		dialogue.WithRelationships(a.relationships),
		dialogue.WithCustomValues(custom),
		dialogue.WithPublisher(a.bus),
		dialogue.WithSink(a.sink),
		dialogue.WithUsageTracking(a.cfg.Selection.TrackUsage),
		dialogue.WithLogger(logger),
	), nil
}

// Close releases the relationship store and flushes spans.
func (a *app) Close(ctx context.Context) {
	a.bus.Stop()
	if err := a.closeRels(); err != nil {
		a.logger.Warn("Failed to close relationship store", "error", err)
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down tracer", "error", err)
		}
	}
}

func (a *app) play(ctx context.Context, opts options, stdin io.Reader, out io.Writer) error {
	template, ok := a.catalog.Scenes.GetByID(opts.sceneID)
	if !ok {
		return fmt.Errorf("unknown scene %q", opts.sceneID)
	}

	cast, err := a.resolveCast(template, opts.cast)
	if err != nil {
		return err
	}

	sessionID := uuid.New().String()
	orchOpts := []core.Option{
		core.WithLogger(a.root),
		core.WithSessionID(sessionID),
		core.WithRelationships(a.relationships),
		core.WithPresenter(a.builder, a.catalog.Variations),
		core.WithPublisher(a.bus),
		core.WithSink(a.sink),
		core.WithRelationshipModifiers(a.cfg.Scoring.ApplyRelationshipModifiers),
	}
	var transcript *core.Transcript
	if a.transcripts != nil {
		transcript = core.NewTranscript(a.transcripts, sessionID)
		orchOpts = append(orchOpts, core.WithTranscript(transcript))
	}
	orch := core.New(orchOpts...)

	if !orch.StartScene(ctx, template, cast) {
		return fmt.Errorf("scene %q could not start", template.ID)
	}

	var limiter *rate.Limiter
	if opts.auto && opts.pace > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.pace), 1)
	}
	var lines <-chan string
	if !opts.auto {
		done := make(chan struct{})
		defer close(done)
		lines = readLines(stdin, done)
	}

loop:
	for beats := 0; orch.IsSceneActive(); beats++ {
		if beats >= opts.maxBeats {
			a.logger.Warn("Beat limit reached", "max_beats", opts.maxBeats)
			orch.EndScene(ctx)
			break
		}

		if line, ok := orch.PresentCurrentBeat(ctx); ok {
			fmt.Fprintf(out, "%s: %s\n", line.Speaker.Name, line.Text)
		}

		if opts.auto {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					orch.EndScene(ctx)
					break
				}
			}
		} else {
			select {
			case <-ctx.Done():
				orch.EndScene(ctx)
				break loop
			case text, ok := <-lines:
				if !ok || strings.TrimSpace(text) == "q" {
					orch.EndScene(ctx)
					break loop
				}
			}
		}

		if ctx.Err() != nil {
			orch.EndScene(ctx)
			break
		}
		orch.AdvanceToNextBeat(ctx)
	}

	if transcript != nil {
		if err := transcript.Save(ctx); err != nil {
			return fmt.Errorf("failed to save transcript: %w", err)
		}
		a.logger.Info("Transcript saved", "path", transcript.Path())
	}
	return nil
}

// readLines scans r on its own goroutine so a blocked read never holds up
// cancellation. The channel closes at EOF; the reader stops once done closes.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

// resolveCast parses "role=character,..." or auto-casts from every known
// character when assignments is empty.
func (a *app) resolveCast(template *domain.SceneTemplate, assignments string) (domain.Cast, error) {
	if strings.TrimSpace(assignments) == "" {
		return core.AutoCast(template, a.catalog.Characters.GetAll())
	}

	members := make(map[string]*domain.Character)
	for _, pair := range strings.Split(assignments, ",") {
		role, charID, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || role == "" || charID == "" {
			return domain.Cast{}, fmt.Errorf("invalid cast entry %q, want role=character", pair)
		}
		if _, ok := template.Role(role); !ok {
			return domain.Cast{}, fmt.Errorf("scene %q has no role %q", template.ID, role)
		}
		c, ok := a.catalog.Characters.GetByID(charID)
		if !ok {
			return domain.Cast{}, fmt.Errorf("unknown character %q", charID)
		}
		members[role] = c
	}
	return domain.NewCast(members), nil
}
