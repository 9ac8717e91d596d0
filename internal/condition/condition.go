// Package condition implements the predicates used by scene branches.
//
// Every condition fails closed: a role missing from the cast, a nil
// relationship reader, or an absent context key makes Evaluate return false.
package condition

import (
	"fmt"
	"strings"

	"github.com/dotcommander/parley/internal/domain"
)

// Trait checks whether the character in a role carries the listed traits.
type Trait struct {
	RoleID     string
	TraitIDs   []string
	RequireAll bool
}

// Evaluate implements domain.Condition.
func (c Trait) Evaluate(cast domain.Cast, _ domain.RelationshipReader, _ domain.ContextReader) bool {
	ch, ok := cast.Get(c.RoleID)
	if !ok {
		return false
	}
	if c.RequireAll {
		return ch.HasAllTraits(c.TraitIDs)
	}
	return ch.HasAnyTrait(c.TraitIDs)
}

// Describe implements domain.Condition.
func (c Trait) Describe() string {
	mode := "any of"
	if c.RequireAll {
		mode = "all of"
	}
	return fmt.Sprintf("Role '%s' has %s [%s]", c.RoleID, mode, strings.Join(c.TraitIDs, ", "))
}

// Relationship compares the directional from->to value against a threshold.
// The comparison is inclusive in both directions.
type Relationship struct {
	FromRoleID string
	ToRoleID   string
	Type       domain.RelationshipType
	Threshold  float64
	Operator   domain.ThresholdOperator
}

// Evaluate implements domain.Condition.
func (c Relationship) Evaluate(cast domain.Cast, rels domain.RelationshipReader, _ domain.ContextReader) bool {
	if rels == nil {
		return false
	}
	from, ok := cast.Get(c.FromRoleID)
	if !ok {
		return false
	}
	to, ok := cast.Get(c.ToRoleID)
	if !ok {
		return false
	}
	v := rels.GetRelationship(from.ID, to.ID, c.Type)
	return c.Operator.Compare(v, c.Threshold)
}

// Describe implements domain.Condition.
func (c Relationship) Describe() string {
	return fmt.Sprintf("Relationship %s -> %s (%s) %s %s",
		c.FromRoleID, c.ToRoleID, c.Type, c.Operator, domain.FormatScore(c.Threshold))
}

// All is satisfied when every inner condition is. An empty All is true.
type All []domain.Condition

// Evaluate implements domain.Condition.
func (a All) Evaluate(cast domain.Cast, rels domain.RelationshipReader, sc domain.ContextReader) bool {
	for _, c := range a {
		if c == nil || !c.Evaluate(cast, rels, sc) {
			return false
		}
	}
	return true
}

// Describe implements domain.Condition.
func (a All) Describe() string {
	return "all(" + describeList(a) + ")"
}

// Any is satisfied when at least one inner condition is. An empty Any is false.
type Any []domain.Condition

// Evaluate implements domain.Condition.
func (a Any) Evaluate(cast domain.Cast, rels domain.RelationshipReader, sc domain.ContextReader) bool {
	for _, c := range a {
		if c != nil && c.Evaluate(cast, rels, sc) {
			return true
		}
	}
	return false
}

// Describe implements domain.Condition.
func (a Any) Describe() string {
	return "any(" + describeList(a) + ")"
}

// Not inverts its inner condition. A nil inner condition stays false.
type Not struct {
	Inner domain.Condition
}

// Evaluate implements domain.Condition.
func (n Not) Evaluate(cast domain.Cast, rels domain.RelationshipReader, sc domain.ContextReader) bool {
	if n.Inner == nil {
		return false
	}
	return !n.Inner.Evaluate(cast, rels, sc)
}

// Describe implements domain.Condition.
func (n Not) Describe() string {
	if n.Inner == nil {
		return "not(<nil>)"
	}
	return "not(" + n.Inner.Describe() + ")"
}

func describeList(cs []domain.Condition) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		if c == nil {
			parts = append(parts, "<nil>")
			continue
		}
		parts = append(parts, c.Describe())
	}
	return strings.Join(parts, "; ")
}
