package storage

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dotcommander/parley/internal/condition"
	"github.com/dotcommander/parley/internal/domain"
)

type traitsDoc struct {
	Traits []*domain.Trait `yaml:"traits" validate:"dive,required"`
}

type charactersDoc struct {
	Characters []characterDoc `yaml:"characters" validate:"dive"`
}

type characterDoc struct {
	ID       string      `yaml:"id" validate:"required"`
	Name     string      `yaml:"name" validate:"required"`
	Pronouns pronounsDoc `yaml:"pronouns"`
	Traits   []string    `yaml:"traits"`
	Faction  string      `yaml:"faction"`
}

func (d characterDoc) build() *domain.Character {
	return &domain.Character{
		ID:        d.ID,
		Name:      d.Name,
		Pronouns:  d.Pronouns.set,
		Traits:    d.Traits,
		FactionID: d.Faction,
	}
}

// pronounsDoc accepts either a preset name ("she", "he/him") or a full
// mapping of the four forms.
type pronounsDoc struct {
	set domain.PronounSet
}

func (p *pronounsDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		preset, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(node.Value)), "/")
		switch preset {
		case "they":
			p.set = domain.PronounsThey
		case "she":
			p.set = domain.PronounsShe
		case "he":
			p.set = domain.PronounsHe
		case "":
		default:
			return fmt.Errorf("line %d: unknown pronoun preset %q", node.Line, node.Value)
		}
		return nil
	}
	return node.Decode(&p.set)
}

type sceneDoc struct {
	ID      string             `yaml:"id" validate:"required"`
	Name    string             `yaml:"name"`
	Trigger domain.TriggerType `yaml:"trigger" validate:"omitempty,oneof=manual location event ambient scheduled"`
	Start   string             `yaml:"start" validate:"required"`
	Roles   []domain.Role      `yaml:"roles" validate:"dive"`
	Beats   []beatDoc          `yaml:"beats" validate:"min=1,dive"`
}

type beatDoc struct {
	ID         string      `yaml:"id" validate:"required"`
	Speaker    string      `yaml:"speaker"`
	Target     string      `yaml:"target"`
	Variations string      `yaml:"variations"`
	Branches   []branchDoc `yaml:"branches" validate:"dive"`
	Next       string      `yaml:"next"`
	End        bool        `yaml:"end"`
}

type branchDoc struct {
	Target     string         `yaml:"target" validate:"required"`
	Conditions []conditionDoc `yaml:"conditions"`
}

type pairDoc struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// conditionDoc is the tagged union of every condition kind; Type selects
// which fields apply.
type conditionDoc struct {
	Type string `yaml:"type"`

	Role       string   `yaml:"role"`
	Traits     []string `yaml:"traits"`
	RequireAll *bool    `yaml:"require_all"`

	From         string    `yaml:"from"`
	To           string    `yaml:"to"`
	Pairs        []pairDoc `yaml:"pairs"`
	Relationship string    `yaml:"relationship"`
	Threshold    float64   `yaml:"threshold"`
	Operator     string    `yaml:"operator"`
	Aggregation  string    `yaml:"aggregation"`

	Faction string `yaml:"faction"`
	Mode    string `yaml:"mode"`
	Count   int    `yaml:"count"`

	Key        string `yaml:"key"`
	Comparison string `yaml:"comparison"`
	Value      string `yaml:"value"`

	Conditions []conditionDoc `yaml:"conditions"`
	Condition  *conditionDoc  `yaml:"condition"`
}

func (d sceneDoc) build() (*domain.SceneTemplate, error) {
	scene := &domain.SceneTemplate{
		ID:          d.ID,
		Name:        d.Name,
		Trigger:     d.Trigger,
		Roles:       d.Roles,
		StartBeatID: d.Start,
		Beats:       make(map[string]*domain.SceneBeat, len(d.Beats)),
	}
	if scene.Trigger == "" {
		scene.Trigger = domain.TriggerManual
	}

	for i, b := range d.Beats {
		path := fmt.Sprintf("beats[%d]", i)
		if _, dup := scene.Beats[b.ID]; dup {
			return nil, &ContentError{Path: path, Err: fmt.Errorf("%w: duplicate beat %q", ErrInvalidContent, b.ID)}
		}

		beat := &domain.SceneBeat{
			ID:                b.ID,
			SpeakerRoleID:     b.Speaker,
			TargetRoleID:      b.Target,
			VariationSetID:    b.Variations,
			DefaultNextBeatID: b.Next,
			IsEndBeat:         b.End,
		}
		for j, br := range b.Branches {
			branch := domain.Branch{TargetBeatID: br.Target}
			for k, cd := range br.Conditions {
				cond, err := cd.build()
				if err != nil {
					return nil, &ContentError{
						Path: fmt.Sprintf("%s.branches[%d].conditions[%d]", path, j, k),
						Err:  err,
					}
				}
				branch.Conditions = append(branch.Conditions, cond)
			}
			beat.Branches = append(beat.Branches, branch)
		}
		scene.Beats[b.ID] = beat
	}

	if _, ok := scene.Beats[d.Start]; !ok {
		return nil, &ContentError{Path: "start", Err: fmt.Errorf("%w: start beat %q not defined", ErrInvalidContent, d.Start)}
	}
	return scene, nil
}

func (d conditionDoc) build() (domain.Condition, error) {
	switch strings.ToLower(d.Type) {
	case "trait":
		if d.Role == "" || len(d.Traits) == 0 {
			return nil, invalid("trait condition needs role and traits")
		}
		requireAll := true
		if d.RequireAll != nil {
			requireAll = *d.RequireAll
		}
		return condition.Trait{RoleID: d.Role, TraitIDs: d.Traits, RequireAll: requireAll}, nil

	case "relationship":
		if d.From == "" || d.To == "" || d.Relationship == "" {
			return nil, invalid("relationship condition needs from, to and relationship")
		}
		op, err := parseOperator(d.Operator)
		if err != nil {
			return nil, err
		}
		return condition.Relationship{
			FromRoleID: d.From,
			ToRoleID:   d.To,
			Type:       domain.RelationshipType(d.Relationship),
			Threshold:  d.Threshold,
			Operator:   op,
		}, nil

	case "accumulated", "accumulated_relationship":
		if len(d.Pairs) == 0 || d.Relationship == "" {
			return nil, invalid("accumulated condition needs pairs and relationship")
		}
		op, err := parseOperator(d.Operator)
		if err != nil {
			return nil, err
		}
		agg := condition.Aggregation(strings.ToLower(d.Aggregation))
		if agg == "" {
			agg = condition.AggregateAverage
		}
		if _, ok := agg.Apply([]float64{0}); !ok {
			return nil, invalid(fmt.Sprintf("unknown aggregation %q", d.Aggregation))
		}
		pairs := make([]condition.RolePair, len(d.Pairs))
		for i, p := range d.Pairs {
			pairs[i] = condition.RolePair{FromRoleID: p.From, ToRoleID: p.To}
		}
		return condition.AccumulatedRelationship{
			Pairs:       pairs,
			Type:        domain.RelationshipType(d.Relationship),
			Aggregation: agg,
			Threshold:   d.Threshold,
			Operator:    op,
		}, nil

	case "faction", "faction_majority":
		mode := condition.FactionMode(strings.ToLower(d.Mode))
		if mode == "" {
			mode = condition.FactionMajority
		}
		switch mode {
		case condition.FactionMajority, condition.FactionMinority, condition.FactionAtLeast,
			condition.FactionExactly, condition.FactionMoreThan, condition.FactionLessThan:
		default:
			return nil, invalid(fmt.Sprintf("unknown faction mode %q", d.Mode))
		}
		return condition.Faction{FactionID: d.Faction, Mode: mode, Count: d.Count}, nil

	case "context", "scene_context":
		if d.Key == "" {
			return nil, invalid("context condition needs key")
		}
		cmp := condition.Comparison(strings.ToLower(d.Comparison))
		if cmp == "" {
			cmp = condition.CompareExists
		}
		if !knownComparison(cmp) {
			return nil, invalid(fmt.Sprintf("unknown comparison %q", d.Comparison))
		}
		return condition.SceneContext{Key: d.Key, Comparison: cmp, TargetValue: d.Value}, nil

	case "all", "any":
		inner := make([]domain.Condition, 0, len(d.Conditions))
		for _, cd := range d.Conditions {
			c, err := cd.build()
			if err != nil {
				return nil, err
			}
			inner = append(inner, c)
		}
		if strings.EqualFold(d.Type, "all") {
			return condition.All(inner), nil
		}
		return condition.Any(inner), nil

	case "not":
		if d.Condition == nil {
			return nil, invalid("not condition needs condition")
		}
		c, err := d.Condition.build()
		if err != nil {
			return nil, err
		}
		return condition.Not{Inner: c}, nil
	}

	return nil, invalid(fmt.Sprintf("unknown condition type %q", d.Type))
}

func knownComparison(c condition.Comparison) bool {
	switch c {
	case condition.CompareExists, condition.CompareNotExists,
		condition.CompareIsTrue, condition.CompareIsFalse,
		condition.CompareEquals, condition.CompareNotEquals,
		condition.CompareGreater, condition.CompareGreaterOrEqual,
		condition.CompareLess, condition.CompareLessOrEqual,
		condition.CompareContains, condition.CompareStartsWith:
		return true
	}
	return false
}

func parseOperator(raw string) (domain.ThresholdOperator, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", ">=", "at_least", "gte":
		return domain.AtLeast, nil
	case "<=", "at_most", "lte":
		return domain.AtMost, nil
	}
	return "", invalid(fmt.Sprintf("unknown operator %q", raw))
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidContent, msg)
}
