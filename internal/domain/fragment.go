package domain

import "fmt"

// ThresholdOperator selects the direction of a threshold comparison.
type ThresholdOperator string

const (
	AtLeast ThresholdOperator = ">="
	AtMost  ThresholdOperator = "<="
)

// Compare applies the operator; both directions are inclusive. An unknown
// operator behaves like AtLeast.
func (op ThresholdOperator) Compare(value, threshold float64) bool {
	if op == AtMost {
		return value <= threshold
	}
	return value >= threshold
}

func (op ThresholdOperator) String() string {
	if op == AtMost {
		return string(AtMost)
	}
	return string(AtLeast)
}

// RelationshipModifier multiplies a fragment's score when the speaker's
// relationship toward the target satisfies the threshold.
type RelationshipModifier struct {
	Type       RelationshipType  `yaml:"type" validate:"required"`
	Threshold  float64           `yaml:"threshold" validate:"min=0,max=100"`
	Operator   ThresholdOperator `yaml:"operator"`
	Multiplier float64           `yaml:"multiplier" validate:"min=0"`
}

func (m RelationshipModifier) String() string {
	return fmt.Sprintf("%s %s %s", m.Type, m.Operator.String(), FormatScore(m.Threshold))
}

// ContextOp is a scene-context mutation applied when a fragment is chosen.
type ContextOp string

const (
	ContextSet       ContextOp = "set"
	ContextIncrement ContextOp = "increment"
	ContextRemove    ContextOp = "remove"
)

// ContextModifier is an opaque key/value mutation instruction.
type ContextModifier struct {
	Key   string    `yaml:"key" validate:"required"`
	Op    ContextOp `yaml:"op" validate:"omitempty,oneof=set increment remove"`
	Value string    `yaml:"value"`
}

// DialogueFragment is one phrasing of a line plus the metadata that decides
// when it fits.
type DialogueFragment struct {
	ID                    string                 `yaml:"id" validate:"required"`
	Text                  string                 `yaml:"text"`
	Affinities            []TraitWeight          `yaml:"affinities" validate:"dive"`
	RelationshipModifiers []RelationshipModifier `yaml:"relationship_modifiers" validate:"dive"`
	RequiredTraits        []string               `yaml:"required_traits"`
	ForbiddenTraits       []string               `yaml:"forbidden_traits"`
	Tags                  []string               `yaml:"tags"`
	ContextModifiers      []ContextModifier      `yaml:"context_modifiers" validate:"dive"`
}

// VariationSet is the pool of fragments for one narrative moment.
type VariationSet struct {
	ID        string              `yaml:"id" validate:"required"`
	Fragments []*DialogueFragment `yaml:"fragments" validate:"dive"`
}

// Fragment looks up a fragment by ID.
func (v *VariationSet) Fragment(id string) (*DialogueFragment, bool) {
	for _, f := range v.Fragments {
		if f != nil && f.ID == id {
			return f, true
		}
	}
	return nil, false
}
