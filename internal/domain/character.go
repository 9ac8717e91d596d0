// Package domain holds the narrative data model shared by the runtime:
// characters and their traits, the roles they fill, scene graphs, and the
// dialogue fragments spoken at each beat.
package domain

// PronounSet carries the forms used when substituting a character into text.
type PronounSet struct {
	Subject    string `yaml:"subject"`
	Object     string `yaml:"object"`
	Possessive string `yaml:"possessive"`
	Reflexive  string `yaml:"reflexive"`
}

var (
	PronounsThey = PronounSet{Subject: "they", Object: "them", Possessive: "their", Reflexive: "themselves"}
	PronounsShe  = PronounSet{Subject: "she", Object: "her", Possessive: "her", Reflexive: "herself"}
	PronounsHe   = PronounSet{Subject: "he", Object: "him", Possessive: "his", Reflexive: "himself"}
)

// IsZero reports whether no pronoun form is set.
func (p PronounSet) IsZero() bool {
	return p == PronounSet{}
}

// Character is a concrete cast member. It is treated as immutable once built.
type Character struct {
	ID        string     `yaml:"id" validate:"required"`
	Name      string     `yaml:"name" validate:"required"`
	Pronouns  PronounSet `yaml:"pronouns"`
	Traits    []string   `yaml:"traits"`
	FactionID string     `yaml:"faction"`
}

// HasTrait reports whether the character carries traitID.
func (c *Character) HasTrait(traitID string) bool {
	if c == nil {
		return false
	}
	for _, t := range c.Traits {
		if t == traitID {
			return true
		}
	}
	return false
}

// HasAllTraits reports whether every id is carried. An empty list is satisfied.
func (c *Character) HasAllTraits(ids []string) bool {
	for _, id := range ids {
		if !c.HasTrait(id) {
			return false
		}
	}
	return true
}

// HasAnyTrait reports whether at least one id is carried.
func (c *Character) HasAnyTrait(ids []string) bool {
	for _, id := range ids {
		if c.HasTrait(id) {
			return true
		}
	}
	return false
}

// PronounsOrDefault returns the character's pronouns, falling back to they/them.
func (c *Character) PronounsOrDefault() PronounSet {
	if c == nil || c.Pronouns.IsZero() {
		return PronounsThey
	}
	return c.Pronouns
}

// TraitCategory groups traits for authoring and display.
type TraitCategory string

const (
	TraitPersonality TraitCategory = "personality"
	TraitBackground  TraitCategory = "background"
	TraitSkill       TraitCategory = "skill"
	TraitPhysical    TraitCategory = "physical"
	TraitSocial      TraitCategory = "social"
	TraitOther       TraitCategory = "other"
)

// Trait describes a character attribute referenced by ID elsewhere.
// ConflictsWith is symmetric by convention only.
type Trait struct {
	ID            string        `yaml:"id" validate:"required"`
	Name          string        `yaml:"name" validate:"required"`
	Category      TraitCategory `yaml:"category" validate:"omitempty,oneof=personality background skill physical social other"`
	ConflictsWith []string      `yaml:"conflicts_with"`
}

// ConflictsWithTrait reports whether id is listed as a conflict.
func (t *Trait) ConflictsWithTrait(id string) bool {
	for _, c := range t.ConflictsWith {
		if c == id {
			return true
		}
	}
	return false
}

// TraitWeight pairs a trait with an additive preference weight.
type TraitWeight struct {
	TraitID string  `yaml:"trait" validate:"required"`
	Weight  float64 `yaml:"weight"`
}

// Role is an abstract part in a scene template that a character fills.
type Role struct {
	ID              string        `yaml:"id" validate:"required"`
	Name            string        `yaml:"name"`
	Affinities      []TraitWeight `yaml:"affinities" validate:"dive"`
	RequiredTraits  []string      `yaml:"required_traits"`
	ForbiddenTraits []string      `yaml:"forbidden_traits"`
}

// Accepts applies the role's hard gates to c.
func (r *Role) Accepts(c *Character) bool {
	if c == nil {
		return false
	}
	if !c.HasAllTraits(r.RequiredTraits) {
		return false
	}
	return !c.HasAnyTrait(r.ForbiddenTraits)
}

// Affinity sums the weights of the role's preferred traits that c carries.
func (r *Role) Affinity(c *Character) float64 {
	var total float64
	for _, a := range r.Affinities {
		if c.HasTrait(a.TraitID) {
			total += a.Weight
		}
	}
	return total
}
