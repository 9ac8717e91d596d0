package condition

import (
	"fmt"
	"math"
	"strings"

	"github.com/dotcommander/parley/internal/domain"
)

// Aggregation reduces several relationship values to one.
type Aggregation string

const (
	AggregateSum     Aggregation = "sum"
	AggregateMin     Aggregation = "min"
	AggregateMax     Aggregation = "max"
	AggregateAverage Aggregation = "average"
)

// Apply reduces values. It returns false for an empty input or an unknown
// aggregation.
func (a Aggregation) Apply(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	switch a {
	case AggregateSum, AggregateAverage:
		var sum float64
		for _, v := range values {
			sum += v
		}
		if a == AggregateAverage {
			return sum / float64(len(values)), true
		}
		return sum, true
	case AggregateMin:
		out := math.Inf(1)
		for _, v := range values {
			out = math.Min(out, v)
		}
		return out, true
	case AggregateMax:
		out := math.Inf(-1)
		for _, v := range values {
			out = math.Max(out, v)
		}
		return out, true
	default:
		return 0, false
	}
}

// RolePair is a directional from->to role reference.
type RolePair struct {
	FromRoleID string
	ToRoleID   string
}

// AccumulatedRelationship aggregates a relationship type over several role
// pairs. Pairs with a missing character are skipped; if none resolve the
// condition is false.
type AccumulatedRelationship struct {
	Pairs       []RolePair
	Type        domain.RelationshipType
	Aggregation Aggregation
	Threshold   float64
	Operator    domain.ThresholdOperator
}

// Values returns the resolved relationship values in pair order.
func (c AccumulatedRelationship) Values(cast domain.Cast, rels domain.RelationshipReader) []float64 {
	if rels == nil {
		return nil
	}
	var values []float64
	for _, p := range c.Pairs {
		from, ok := cast.Get(p.FromRoleID)
		if !ok {
			continue
		}
		to, ok := cast.Get(p.ToRoleID)
		if !ok {
			continue
		}
		values = append(values, rels.GetRelationship(from.ID, to.ID, c.Type))
	}
	return values
}

// Aggregate returns the aggregated value, or false when nothing resolved.
func (c AccumulatedRelationship) Aggregate(cast domain.Cast, rels domain.RelationshipReader) (float64, bool) {
	return c.Aggregation.Apply(c.Values(cast, rels))
}

// Evaluate implements domain.Condition.
func (c AccumulatedRelationship) Evaluate(cast domain.Cast, rels domain.RelationshipReader, _ domain.ContextReader) bool {
	v, ok := c.Aggregate(cast, rels)
	if !ok {
		return false
	}
	return c.Operator.Compare(v, c.Threshold)
}

// Describe implements domain.Condition.
func (c AccumulatedRelationship) Describe() string {
	pairs := make([]string, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		pairs = append(pairs, p.FromRoleID+"->"+p.ToRoleID)
	}
	return fmt.Sprintf("%s of %s over [%s] %s %s",
		c.Aggregation, c.Type, strings.Join(pairs, ", "), c.Operator, domain.FormatScore(c.Threshold))
}
