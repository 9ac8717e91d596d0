// Package scoring rates how well a dialogue fragment fits a speaker, a
// target, and their relationship.
//
// Scoring starts from a base score, rejects fragments whose trait gates fail,
// adds the weight of every matching trait affinity and of every fragment tag
// weighted in the custom data, then multiplies by each relationship modifier
// whose threshold holds:
//
//	score = (base + Σ affinity weights + Σ tag weights) × Π satisfied multipliers
//
// A negative score marks the fragment invalid.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dotcommander/parley/internal/domain"
	"github.com/dotcommander/parley/internal/workpool"
)

const (
	DefaultBaseScore = 1.0
	InvalidScore     = -1.0
)

// Context supplies everything a fragment is scored against. Relationships
// may be nil, which disables relationship modifiers. Custom may be nil.
type Context struct {
	Speaker       *domain.Character
	Target        *domain.Character
	Relationships domain.RelationshipReader
	Custom        *Values
}

// FactorKind classifies one explanation line.
type FactorKind string

const (
	FactorBase         FactorKind = "base"
	FactorTrait        FactorKind = "trait"
	FactorTag          FactorKind = "tag"
	FactorRelationship FactorKind = "relationship"
	FactorRejected     FactorKind = "rejected"
)

// Factor is one contribution to a score, in evaluation order.
type Factor struct {
	Kind        FactorKind
	Description string
	Effect      float64
	Running     float64
}

// Result is the outcome of scoring one fragment.
type Result struct {
	Score       float64
	Explanation string
	Factors     []Factor
}

// Valid reports whether the fragment may be selected.
func (r Result) Valid() bool { return r.Score >= 0 }

// Scorer computes fragment scores.
type Scorer struct {
	baseScore float64
	pool      *workpool.Pool
	logger    *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithBaseScore overrides the starting score.
func WithBaseScore(base float64) Option {
	return func(s *Scorer) { s.baseScore = base }
}

// WithPool sets the pool used by ScoreAll.
func WithPool(p *workpool.Pool) Option {
	return func(s *Scorer) { s.pool = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScorer creates a Scorer.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		baseScore: DefaultBaseScore,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "fragment_scorer")
	return s
}

// Score rates fragment for sctx.
func (s *Scorer) Score(fragment *domain.DialogueFragment, sctx Context) Result {
	var b resultBuilder

	if fragment == nil {
		return b.reject("No fragment")
	}
	if sctx.Speaker == nil {
		return b.reject("No speaker")
	}
	for _, id := range fragment.RequiredTraits {
		if !sctx.Speaker.HasTrait(id) {
			return b.reject(fmt.Sprintf("Missing required trait '%s'", id))
		}
	}
	for _, id := range fragment.ForbiddenTraits {
		if sctx.Speaker.HasTrait(id) {
			return b.reject(fmt.Sprintf("Has forbidden trait '%s'", id))
		}
	}

	score := s.baseScore
	b.add(Factor{
		Kind:        FactorBase,
		Description: "Base score: " + domain.FormatScore(score),
		Effect:      score,
		Running:     score,
	})

	for _, a := range fragment.Affinities {
		if !sctx.Speaker.HasTrait(a.TraitID) {
			continue
		}
		score += a.Weight
		b.add(Factor{
			Kind:        FactorTrait,
			Description: fmt.Sprintf("Trait '%s' (%s): %s", a.TraitID, signed(a.Weight), domain.FormatScore(score)),
			Effect:      a.Weight,
			Running:     score,
		})
	}

	for _, tag := range fragment.Tags {
		w, ok := sctx.Custom.TagWeight(tag)
		if !ok {
			continue
		}
		score += w
		b.add(Factor{
			Kind:        FactorTag,
			Description: fmt.Sprintf("Tag '%s' (%s): %s", tag, signed(w), domain.FormatScore(score)),
			Effect:      w,
			Running:     score,
		})
	}

	if sctx.Target != nil && sctx.Relationships != nil {
		for _, m := range fragment.RelationshipModifiers {
			v := sctx.Relationships.GetRelationship(sctx.Speaker.ID, sctx.Target.ID, m.Type)
			if !m.Operator.Compare(v, m.Threshold) {
				continue
			}
			score *= m.Multiplier
			b.add(Factor{
				Kind: FactorRelationship,
				Description: fmt.Sprintf("Relationship %s %s %s (x%s): %s",
					m.Type, m.Operator, domain.FormatScore(m.Threshold),
					domain.FormatScore(m.Multiplier), domain.FormatScore(score)),
				Effect:  m.Multiplier,
				Running: score,
			})
		}
	}

	return b.result(score)
}

// ScoreAll scores every fragment independently. results[i] belongs to
// fragments[i]. Large batches are scored concurrently.
func (s *Scorer) ScoreAll(ctx context.Context, fragments []*domain.DialogueFragment, sctx Context) []Result {
	results, err := workpool.Map(ctx, s.pool, fragments,
		func(_ context.Context, _ int, f *domain.DialogueFragment) (Result, error) {
			return s.Score(f, sctx), nil
		})
	if err != nil {
		// Only cancellation can fail the map; score inline so callers
		// always receive one result per fragment.
		s.logger.Warn("Parallel scoring aborted, scoring inline", "error", err)
		results = make([]Result, len(fragments))
		for i, f := range fragments {
			results[i] = s.Score(f, sctx)
		}
	}
	return results
}

type resultBuilder struct {
	factors []Factor
}

func (b *resultBuilder) add(f Factor) {
	b.factors = append(b.factors, f)
}

func (b *resultBuilder) reject(reason string) Result {
	b.add(Factor{Kind: FactorRejected, Description: "Rejected: " + reason, Running: InvalidScore})
	return b.result(InvalidScore)
}

func (b *resultBuilder) result(score float64) Result {
	lines := make([]string, len(b.factors))
	for i, f := range b.factors {
		lines[i] = f.Description
	}
	return Result{
		Score:       score,
		Explanation: strings.Join(lines, "\n"),
		Factors:     b.factors,
	}
}

func signed(f float64) string {
	if f < 0 {
		return domain.FormatScore(f)
	}
	return "+" + domain.FormatScore(f)
}
