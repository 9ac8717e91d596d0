package domain

import "context"

// RelationshipType names one axis of a directional relationship.
type RelationshipType string

const (
	RelAffection  RelationshipType = "affection"
	RelTrust      RelationshipType = "trust"
	RelRespect    RelationshipType = "respect"
	RelFear       RelationshipType = "fear"
	RelRivalry    RelationshipType = "rivalry"
	RelAttraction RelationshipType = "attraction"
)

// RelationshipReader is the read side of the relationship provider contract.
type RelationshipReader interface {
	GetRelationship(fromID, toID string, t RelationshipType) float64
}

// ContextReader is the read side of a scene context.
type ContextReader interface {
	Get(key string) (Value, bool)
}

// Condition is a pure predicate over the cast, relationships and scene
// context. Implementations must fail closed on missing data.
type Condition interface {
	Evaluate(cast Cast, rels RelationshipReader, sc ContextReader) bool
	Describe() string
}

// TriggerType is informational metadata on how a scene is meant to start.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerLocation  TriggerType = "location"
	TriggerEvent     TriggerType = "event"
	TriggerAmbient   TriggerType = "ambient"
	TriggerScheduled TriggerType = "scheduled"
)

// Branch is a conditional edge to another beat. With no conditions it is
// always taken when reached.
type Branch struct {
	TargetBeatID string
	Conditions   []Condition
}

// Matches reports whether every condition holds.
func (b Branch) Matches(cast Cast, rels RelationshipReader, sc ContextReader) bool {
	for _, c := range b.Conditions {
		if c == nil || !c.Evaluate(cast, rels, sc) {
			return false
		}
	}
	return true
}

// SceneBeat is one step of a scene. When IsEndBeat is set, Branches and
// DefaultNextBeatID are ignored.
type SceneBeat struct {
	ID                string
	SpeakerRoleID     string
	TargetRoleID      string
	VariationSetID    string
	Branches          []Branch
	DefaultNextBeatID string
	IsEndBeat         bool
}

// SceneTemplate is an authored scene graph with the roles it needs.
type SceneTemplate struct {
	ID          string
	Name        string
	Trigger     TriggerType
	Roles       []Role
	StartBeatID string
	Beats       map[string]*SceneBeat
}

// Beat looks up a beat by ID.
func (t *SceneTemplate) Beat(id string) (*SceneBeat, bool) {
	if t == nil || id == "" {
		return nil, false
	}
	b, ok := t.Beats[id]
	return b, ok && b != nil
}

// Role looks up a role by ID.
func (t *SceneTemplate) Role(id string) (*Role, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.Roles {
		if t.Roles[i].ID == id {
			return &t.Roles[i], true
		}
	}
	return nil, false
}

// Repository is the lookup contract for authored content.
type Repository[T any] interface {
	GetByID(id string) (T, bool)
	GetAll() []T
	Exists(id string) bool
}

// Publisher is the fire-and-forget event publication contract.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}
