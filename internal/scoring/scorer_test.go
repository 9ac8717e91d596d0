package scoring

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/parley/internal/domain"
	"github.com/dotcommander/parley/internal/relationship"
	"github.com/dotcommander/parley/internal/workpool"
)

func speaker(traits ...string) *domain.Character {
	return &domain.Character{ID: "ash", Name: "Ash", Traits: traits}
}

func TestScore_AffinitiesAndModifiers(t *testing.T) {
	rels := relationship.NewStore()
	rels.SetRelationship("ash", "bryn", domain.RelAffection, 80)

	fragment := &domain.DialogueFragment{
		ID: "warm",
		Affinities: []domain.TraitWeight{
			{TraitID: "aggressive", Weight: 1},
			{TraitID: "shy", Weight: 5},
		},
		RelationshipModifiers: []domain.RelationshipModifier{
			{Type: domain.RelAffection, Threshold: 70, Operator: domain.AtLeast, Multiplier: 1.5},
			{Type: domain.RelAffection, Threshold: 20, Operator: domain.AtMost, Multiplier: 0.1},
		},
	}

	s := NewScorer()
	res := s.Score(fragment, Context{
		Speaker:       speaker("aggressive"),
		Target:        &domain.Character{ID: "bryn"},
		Relationships: rels,
	})

	assert.True(t, res.Valid())
	assert.Equal(t, 3.0, res.Score)
	assert.Equal(t,
		"Base score: 1.0\nTrait 'aggressive' (+1.0): 2.0\nRelationship affection >= 70.0 (x1.5): 3.0",
		res.Explanation)
	require.Len(t, res.Factors, 3)
	assert.Equal(t, FactorBase, res.Factors[0].Kind)
	assert.Equal(t, FactorTrait, res.Factors[1].Kind)
	assert.Equal(t, FactorRelationship, res.Factors[2].Kind)
	assert.Equal(t, 3.0, res.Factors[2].Running)
}

func TestScore_RequiredTraitAlwaysInvalid(t *testing.T) {
	fragment := &domain.DialogueFragment{
		ID:             "brave_line",
		RequiredTraits: []string{"brave"},
		Affinities:     []domain.TraitWeight{{TraitID: "loud", Weight: 100}},
	}

	res := NewScorer().Score(fragment, Context{Speaker: speaker("loud")})
	assert.False(t, res.Valid())
	assert.Less(t, res.Score, 0.0)
	assert.Contains(t, res.Explanation, "Missing required trait 'brave'")
}

func TestScore_ForbiddenTrait(t *testing.T) {
	fragment := &domain.DialogueFragment{ID: "calm", ForbiddenTraits: []string{"angry"}}
	res := NewScorer().Score(fragment, Context{Speaker: speaker("angry")})
	assert.False(t, res.Valid())
	assert.Contains(t, res.Explanation, "Has forbidden trait 'angry'")
}

func TestScore_NoTargetSkipsModifiers(t *testing.T) {
	rels := relationship.NewStore()
	fragment := &domain.DialogueFragment{
		ID: "f",
		RelationshipModifiers: []domain.RelationshipModifier{
			{Type: domain.RelTrust, Threshold: 0, Operator: domain.AtLeast, Multiplier: 3},
		},
	}

	s := NewScorer(WithBaseScore(2))
	assert.Equal(t, 2.0, s.Score(fragment, Context{Speaker: speaker(), Relationships: rels}).Score)
	assert.Equal(t, 2.0, s.Score(fragment, Context{Speaker: speaker(), Target: speaker()}).Score)
	assert.Equal(t, 6.0, s.Score(fragment, Context{Speaker: speaker(), Target: &domain.Character{ID: "t"}, Relationships: rels}).Score)
}

func TestScore_MissingInputs(t *testing.T) {
	s := NewScorer()
	assert.False(t, s.Score(nil, Context{Speaker: speaker()}).Valid())
	assert.False(t, s.Score(&domain.DialogueFragment{ID: "x"}, Context{}).Valid())
}

func TestScoreAll_OrderMatchesInput(t *testing.T) {
	var fragments []*domain.DialogueFragment
	for i := 0; i < 64; i++ {
		fragments = append(fragments, &domain.DialogueFragment{
			ID:         fmt.Sprintf("f%d", i),
			Affinities: []domain.TraitWeight{{TraitID: "brave", Weight: float64(i)}},
		})
	}

	for _, pool := range []*workpool.Pool{nil, workpool.New(workpool.WithWorkers(8), workpool.WithThreshold(4))} {
		s := NewScorer(WithPool(pool))
		results := s.ScoreAll(context.Background(), fragments, Context{Speaker: speaker("brave")})
		require.Len(t, results, len(fragments))
		for i, r := range results {
			assert.Equal(t, 1.0+float64(i), r.Score)
		}
	}
}

func TestValues(t *testing.T) {
	v := NewValues()
	v.Set("mood", domain.String("grim"))
	SetTyped(v, "weights", []float64{1, 2})

	got, ok := v.Get("mood")
	require.True(t, ok)
	assert.Equal(t, "grim", got.String())

	w, ok := GetTyped[[]float64](v, "weights")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, w)

	_, ok = GetTyped[string](v, "weights")
	assert.False(t, ok, "wrong type must not match")

	assert.Equal(t, []string{"mood", "weights"}, v.Keys())

	var empty *Values
	_, ok = empty.Get("mood")
	assert.False(t, ok)
}

func TestScore_TagWeightsFromCustomData(t *testing.T) {
	custom := NewValues()
	custom.SetTagWeight("threat", 2)
	custom.Set(TagWeightKey("joke"), domain.String("not a number"))

	fragment := &domain.DialogueFragment{
		ID:   "menace",
		Tags: []string{"threat", "joke", "untracked"},
		RelationshipModifiers: []domain.RelationshipModifier{
			{Type: domain.RelFear, Threshold: 0, Operator: domain.AtLeast, Multiplier: 2},
		},
	}

	s := NewScorer()
	res := s.Score(fragment, Context{
		Speaker:       speaker(),
		Target:        &domain.Character{ID: "bryn"},
		Relationships: relationship.NewStore(),
		Custom:        custom,
	})

	assert.Equal(t, 6.0, res.Score)
	require.Len(t, res.Factors, 3)
	assert.Equal(t, FactorTag, res.Factors[1].Kind)
	assert.Equal(t, "Tag 'threat' (+2.0): 3.0", res.Factors[1].Description)

	plain := s.Score(fragment, Context{Speaker: speaker()})
	assert.Equal(t, 1.0, plain.Score, "no custom data leaves tags unweighted")
}
