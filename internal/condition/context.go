package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dotcommander/parley/internal/domain"
)

// Comparison is the operator of a SceneContext condition.
type Comparison string

const (
	CompareExists         Comparison = "exists"
	CompareNotExists      Comparison = "not_exists"
	CompareIsTrue         Comparison = "is_true"
	CompareIsFalse        Comparison = "is_false"
	CompareEquals         Comparison = "equals"
	CompareNotEquals      Comparison = "not_equals"
	CompareGreater        Comparison = "greater"
	CompareGreaterOrEqual Comparison = "greater_or_equal"
	CompareLess           Comparison = "less"
	CompareLessOrEqual    Comparison = "less_or_equal"
	CompareContains       Comparison = "contains"
	CompareStartsWith     Comparison = "starts_with"
)

// NeedsTarget reports whether the comparison reads TargetValue.
func (c Comparison) NeedsTarget() bool {
	switch c {
	case CompareExists, CompareNotExists, CompareIsTrue, CompareIsFalse:
		return false
	default:
		return true
	}
}

// SceneContext compares a scene-context entry against an authored value.
type SceneContext struct {
	Key         string
	Comparison  Comparison
	TargetValue string
}

// Evaluate implements domain.Condition.
func (c SceneContext) Evaluate(_ domain.Cast, _ domain.RelationshipReader, sc domain.ContextReader) bool {
	if sc == nil || c.Key == "" {
		return false
	}
	v, ok := sc.Get(c.Key)

	switch c.Comparison {
	case CompareExists:
		return ok
	case CompareNotExists:
		return !ok
	}
	if !ok {
		return false
	}

	switch c.Comparison {
	case CompareIsTrue:
		b, ok := v.AsBool()
		return ok && b
	case CompareIsFalse:
		b, ok := v.AsBool()
		return ok && !b
	}
	if c.TargetValue == "" {
		return false
	}

	switch c.Comparison {
	case CompareEquals:
		return c.equals(v)
	case CompareNotEquals:
		return !c.equals(v)
	case CompareGreater, CompareGreaterOrEqual, CompareLess, CompareLessOrEqual:
		stored, ok := v.AsFloat()
		if !ok {
			return false
		}
		target, err := strconv.ParseFloat(strings.TrimSpace(c.TargetValue), 64)
		if err != nil {
			return false
		}
		switch c.Comparison {
		case CompareGreater:
			return stored > target
		case CompareGreaterOrEqual:
			return stored >= target
		case CompareLess:
			return stored < target
		default:
			return stored <= target
		}
	case CompareContains:
		return strings.Contains(v.String(), c.TargetValue)
	case CompareStartsWith:
		return strings.HasPrefix(v.String(), c.TargetValue)
	default:
		return false
	}
}

// equals compares numerically when both sides parse as numbers and falls
// back to an ordinal string comparison otherwise.
func (c SceneContext) equals(v domain.Value) bool {
	if stored, ok := v.AsFloat(); ok {
		if target, err := strconv.ParseFloat(strings.TrimSpace(c.TargetValue), 64); err == nil {
			return stored == target
		}
	}
	return v.String() == c.TargetValue
}

// Describe implements domain.Condition.
func (c SceneContext) Describe() string {
	if !c.Comparison.NeedsTarget() {
		return fmt.Sprintf("Context '%s' %s", c.Key, c.Comparison)
	}
	return fmt.Sprintf("Context '%s' %s '%s'", c.Key, c.Comparison, c.TargetValue)
}
