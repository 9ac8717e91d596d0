// Package dialogue assembles a spoken line from a set of candidate fragments:
// it scores them, lets a saliency strategy pick one, fills in the template
// variables and announces the result.
package dialogue

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dotcommander/parley/internal/domain"
	"github.com/dotcommander/parley/internal/saliency"
	"github.com/dotcommander/parley/internal/scoring"
	"github.com/dotcommander/parley/internal/trace"
)

// NoSelection is the explanation carried by a Line when no candidate could
// be selected. The line text is empty in that case.
const NoSelection = "no selectable fragment"

// Line is a fully assembled line of dialogue.
type Line struct {
	Text     string
	Fragment *domain.DialogueFragment
	Result   scoring.Result
	Speaker  *domain.Character
	Target   *domain.Character
}

// LinePrepared is published once a line is ready for presentation.
type LinePrepared struct {
	Speaker  *domain.Character
	Target   *domain.Character
	Text     string
	Fragment *domain.DialogueFragment
}

// Builder turns candidate fragments into lines.
type Builder struct {
	scorer        *scoring.Scorer
	strategy      saliency.Strategy
	selection     *saliency.SelectionContext
	relationships domain.RelationshipReader
	custom        *scoring.Values
	publisher     domain.Publisher
	sink          trace.Sink
	trackUsage    bool
	logger        *slog.Logger

	mu        sync.RWMutex
	variables map[string]string
}

// Option configures a Builder.
type Option func(*Builder)

func WithScorer(s *scoring.Scorer) Option {
	return func(b *Builder) {
		if s != nil {
			b.scorer = s
		}
	}
}

func WithStrategy(s saliency.Strategy) Option {
	return func(b *Builder) {
		if s != nil {
			b.strategy = s
		}
	}
}

func WithSelection(sel *saliency.SelectionContext) Option {
	return func(b *Builder) {
		if sel != nil {
			b.selection = sel
		}
	}
}

// WithRelationships sets the store used for relationship modifiers.
func WithRelationships(r domain.RelationshipReader) Option {
	return func(b *Builder) { b.relationships = r }
}

// WithCustomValues attaches custom data to every scoring context.
func WithCustomValues(v *scoring.Values) Option {
	return func(b *Builder) { b.custom = v }
}

// WithPublisher sets where LinePrepared events go.
func WithPublisher(p domain.Publisher) Option {
	return func(b *Builder) { b.publisher = p }
}

func WithSink(s trace.Sink) Option {
	return func(b *Builder) { b.sink = s }
}

// WithUsageTracking makes the builder mark picks as used when the strategy
// does not do so itself.
func WithUsageTracking(enabled bool) Option {
	return func(b *Builder) { b.trackUsage = enabled }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a Builder. Without options it scores with a default
// Scorer and picks with WeightedRandom over a fresh SelectionContext.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		strategy:  saliency.WeightedRandom{},
		logger:    slog.Default(),
		variables: make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "dialogue_builder")
	if b.scorer == nil {
		b.scorer = scoring.NewScorer(scoring.WithLogger(b.logger))
	}
	if b.selection == nil {
		b.selection = saliency.NewSelectionContext()
	}
	return b
}

// BuildLine returns the assembled text, or "" when nothing was selectable.
func (b *Builder) BuildLine(ctx context.Context, candidates []*domain.DialogueFragment, speaker, target *domain.Character, applyRelationshipModifiers bool) string {
	line, _ := b.BuildLineWithDetails(ctx, candidates, speaker, target, applyRelationshipModifiers)
	return line.Text
}

// BuildLineWithDetails builds a line and reports whether a fragment was
// selected. On failure the Line has empty text and an invalid Result whose
// explanation is NoSelection.
func (b *Builder) BuildLineWithDetails(ctx context.Context, candidates []*domain.DialogueFragment, speaker, target *domain.Character, applyRelationshipModifiers bool) (Line, bool) {
	op := trace.Op{Name: trace.OpBuildLine, Attrs: map[string]string{
		"candidates": strconv.Itoa(len(candidates)),
	}}
	if speaker != nil {
		op.Attrs["speaker"] = speaker.ID
	}
	if target != nil {
		op.Attrs["target"] = target.ID
	}

	var line Line
	var ok bool
	trace.Run(ctx, b.sink, op, func(ctx context.Context) trace.Outcome {
		line, ok = b.build(ctx, candidates, speaker, target, applyRelationshipModifiers)
		out := trace.Outcome{OK: ok}
		if ok {
			out.Detail = line.Fragment.ID
		} else {
			out.Detail = NoSelection
		}
		return out
	})
	return line, ok
}

func (b *Builder) build(ctx context.Context, candidates []*domain.DialogueFragment, speaker, target *domain.Character, applyRelationshipModifiers bool) (Line, bool) {
	line := Line{Speaker: speaker, Target: target}

	sctx := scoring.Context{Speaker: speaker, Target: target, Custom: b.custom}
	if applyRelationshipModifiers {
		sctx.Relationships = b.relationships
	}

	results := b.scorer.ScoreAll(ctx, candidates, sctx)
	scored := make([]saliency.Candidate, len(candidates))
	for i, f := range candidates {
		scored[i] = saliency.Candidate{Fragment: f, Score: results[i].Score}
	}

	picked := b.strategy.Select(scored, b.selection)
	if picked == nil {
		line.Result = scoring.Result{Score: scoring.InvalidScore, Explanation: NoSelection}
		b.logger.Debug("No selectable fragment", "candidates", len(candidates))
		return line, false
	}
	if b.trackUsage && !b.strategy.MarksUsage() {
		b.selection.MarkUsed(picked.ID)
	}

	for i, f := range candidates {
		if f == picked {
			line.Result = results[i]
			break
		}
	}
	line.Fragment = picked
	line.Text = b.Substitute(picked.Text, speaker, target)

	if b.publisher != nil {
		err := b.publisher.Publish(ctx, LinePrepared{
			Speaker:  speaker,
			Target:   target,
			Text:     line.Text,
			Fragment: picked,
		})
		if err != nil {
			b.logger.Warn("Failed to publish prepared line", "fragment", picked.ID, "error", err)
		}
	}
	return line, true
}

// SetVariable sets a named override for {name} placeholders.
func (b *Builder) SetVariable(name, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.variables[name] = value
}

// ClearVariable removes one override.
func (b *Builder) ClearVariable(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.variables, name)
}

// ClearVariables removes every override.
func (b *Builder) ClearVariables() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.variables = make(map[string]string)
}

// Variable returns an override.
func (b *Builder) Variable(name string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.variables[name]
	return v, ok
}

// Strategy returns the configured strategy.
func (b *Builder) Strategy() saliency.Strategy { return b.strategy }

// Selection returns the selection context shared across builds.
func (b *Builder) Selection() *saliency.SelectionContext { return b.selection }
