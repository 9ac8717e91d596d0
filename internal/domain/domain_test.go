package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		kind ValueKind
		str  string
	}{
		{"true", KindBool, "true"},
		{"FALSE", KindBool, "false"},
		{"42", KindFloat, "42"},
		{" 0.5 ", KindFloat, "0.5"},
		{"rowdy", KindString, "rowdy"},
		{"", KindString, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v := ParseValue(tt.raw)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.str, v.String())
		})
	}
}

func TestValueConversions(t *testing.T) {
	f, ok := String(" 12.5 ").AsFloat()
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	_, ok = Bool(true).AsFloat()
	assert.False(t, ok)

	b, ok := Float(3).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = String("maybe").AsBool()
	assert.False(t, ok)

	var zero Value
	assert.True(t, zero.IsZero())
	assert.Equal(t, "none", zero.Kind().String())
	assert.Equal(t, "", zero.String())
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "70.0", FormatScore(70))
	assert.Equal(t, "0.25", FormatScore(0.25))
	assert.Equal(t, "-1.0", FormatScore(-1))
	assert.Equal(t, "NaN", FormatScore(math.NaN()))
}

func TestThresholdOperator(t *testing.T) {
	assert.True(t, AtLeast.Compare(60, 60))
	assert.False(t, AtLeast.Compare(59.9, 60))
	assert.True(t, AtMost.Compare(60, 60))
	assert.False(t, AtMost.Compare(61, 60))
	assert.True(t, ThresholdOperator("").Compare(70, 60))
	assert.Equal(t, ">=", ThresholdOperator("weird").String())
}

func TestCast(t *testing.T) {
	ada := &Character{ID: "ada"}
	bex := &Character{ID: "bex"}
	members := map[string]*Character{"speaker": ada, "witness": ada, "target": bex, "ghost": nil}
	cast := NewCast(members)
	members["speaker"] = bex

	got, ok := cast.Get("speaker")
	assert.True(t, ok)
	assert.Same(t, ada, got)
	assert.False(t, cast.Has("ghost"))
	assert.Equal(t, 3, cast.Len())
	assert.Equal(t, []string{"speaker", "target", "witness"}, cast.Roles())
	assert.Equal(t, []*Character{ada, bex}, cast.Characters())
}

func TestRole(t *testing.T) {
	r := Role{
		ID:              "captain",
		Affinities:      []TraitWeight{{TraitID: "bold", Weight: 2}, {TraitID: "sailor", Weight: 0.5}},
		RequiredTraits:  []string{"sailor"},
		ForbiddenTraits: []string{"coward"},
	}
	mira := &Character{ID: "mira", Traits: []string{"bold", "sailor"}}
	tam := &Character{ID: "tam", Traits: []string{"sailor", "coward"}}

	assert.True(t, r.Accepts(mira))
	assert.False(t, r.Accepts(tam))
	assert.False(t, r.Accepts(nil))
	assert.Equal(t, 2.5, r.Affinity(mira))
}

func TestPronounsOrDefault(t *testing.T) {
	var nobody *Character
	assert.Equal(t, PronounsThey, nobody.PronounsOrDefault())
	assert.Equal(t, PronounsHe, (&Character{Pronouns: PronounsHe}).PronounsOrDefault())
}
