// Package core runs scenes: it walks a scene template beat by beat, picks
// branches against the cast, relationships and scene history, and asks the
// dialogue builder for the line spoken at each beat.
//
// A SceneOrchestrator drives one logical thread of narrative. Its traversal
// methods are not safe for concurrent use; callers advance it from a single
// goroutine in response to discrete input.
package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dotcommander/parley/internal/dialogue"
	"github.com/dotcommander/parley/internal/domain"
	"github.com/dotcommander/parley/internal/state"
	"github.com/dotcommander/parley/internal/trace"
)

// State is the orchestrator's coarse state.
type State int

const (
	StateIdle State = iota
	StateInScene
)

func (s State) String() string {
	if s == StateInScene {
		return "in_scene"
	}
	return "idle"
}

// SceneOrchestrator is the beat-traversal state machine.
type SceneOrchestrator struct {
	sessionID     string
	logger        *slog.Logger
	relationships domain.RelationshipReader
	builder       *dialogue.Builder
	variations    domain.Repository[*domain.VariationSet]
	publisher     domain.Publisher
	sink          trace.Sink
	transcript    *Transcript
	applyMods     bool

	state        State
	scene        *domain.SceneTemplate
	cast         domain.Cast
	beat         *domain.SceneBeat
	context      *state.SceneContext
	lastFragment string
}

// Option configures a SceneOrchestrator.
type Option func(*SceneOrchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *SceneOrchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(o *SceneOrchestrator) {
		if id != "" {
			o.sessionID = id
		}
	}
}

// WithRelationships sets the store branch conditions read from.
func WithRelationships(r domain.RelationshipReader) Option {
	return func(o *SceneOrchestrator) { o.relationships = r }
}

// WithPresenter enables PresentCurrentBeat.
func WithPresenter(b *dialogue.Builder, variations domain.Repository[*domain.VariationSet]) Option {
	return func(o *SceneOrchestrator) {
		o.builder = b
		o.variations = variations
	}
}

func WithPublisher(p domain.Publisher) Option {
	return func(o *SceneOrchestrator) { o.publisher = p }
}

func WithSink(s trace.Sink) Option {
	return func(o *SceneOrchestrator) { o.sink = s }
}

func WithTranscript(t *Transcript) Option {
	return func(o *SceneOrchestrator) { o.transcript = t }
}

// WithRelationshipModifiers controls whether presented lines are scored with
// relationship modifiers. Enabled by default.
func WithRelationshipModifiers(enabled bool) Option {
	return func(o *SceneOrchestrator) { o.applyMods = enabled }
}

// New creates an idle orchestrator.
func New(opts ...Option) *SceneOrchestrator {
	o := &SceneOrchestrator{
		sessionID: uuid.New().String(),
		logger:    slog.Default(),
		applyMods: true,
		context:   state.NewSceneContext(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "scene_orchestrator", "session_id", o.sessionID)
	return o
}

func (o *SceneOrchestrator) SessionID() string { return o.sessionID }

// StartScene begins template with cast. It fails without touching the
// current state when the template has no valid start beat or the cast is
// missing a role the start beat needs. Starting while another scene is
// active ends that scene first.
func (o *SceneOrchestrator) StartScene(ctx context.Context, template *domain.SceneTemplate, cast domain.Cast) bool {
	op := trace.Op{Name: trace.OpSceneStart, Attrs: map[string]string{}}
	if template != nil {
		op.Attrs["scene"] = template.ID
	}

	out := trace.Run(ctx, o.sink, op, func(ctx context.Context) trace.Outcome {
		start, err := validateStart(template, cast)
		if err != nil {
			o.logger.Warn("Cannot start scene", "error", err)
			return trace.Outcome{Err: err}
		}

		if o.state == StateInScene {
			o.end(ctx, EndReasonReplaced)
		}

		o.scene = template
		o.cast = cast
		o.beat = start
		o.context = state.NewSceneContext()
		o.lastFragment = ""
		o.state = StateInScene
		o.context.RecordBeatVisit(start.ID, "", start.SpeakerRoleID)

		o.logger.Info("Scene started", "scene", template.ID, "beat", start.ID, "cast", cast.Len())
		o.publish(ctx, SceneStarted{
			SessionID:   o.sessionID,
			SceneID:     template.ID,
			StartBeatID: start.ID,
			Cast:        cast,
		})
		return trace.Outcome{OK: true, Detail: start.ID}
	})
	return out.OK
}

func validateStart(template *domain.SceneTemplate, cast domain.Cast) (*domain.SceneBeat, error) {
	if template == nil {
		return nil, fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}
	start, ok := template.Beat(template.StartBeatID)
	if !ok {
		return nil, fmt.Errorf("%w: scene %s has no start beat %q", ErrInvalidTemplate, template.ID, template.StartBeatID)
	}
	for _, role := range []string{start.SpeakerRoleID, start.TargetRoleID} {
		if role != "" && !cast.Has(role) {
			return nil, fmt.Errorf("%w: %s", ErrMissingRole, role)
		}
	}
	return start, nil
}

// AdvanceToNextBeat moves to the next beat. The first branch whose
// conditions all hold wins, then the beat's default. It returns false when
// the scene ends, when no scene is active, and when the resolved target beat
// does not exist; in the last case the orchestrator stays where it is.
func (o *SceneOrchestrator) AdvanceToNextBeat(ctx context.Context) bool {
	op := trace.Op{Name: trace.OpSceneAdvance, Attrs: map[string]string{}}
	if o.state == StateInScene {
		op.Attrs["scene"] = o.scene.ID
		op.Attrs["beat"] = o.beat.ID
	}

	out := trace.Run(ctx, o.sink, op, func(ctx context.Context) trace.Outcome {
		if o.state != StateInScene {
			return trace.Outcome{Err: ErrNoActiveScene}
		}

		from := o.beat
		if from.IsEndBeat {
			o.end(ctx, EndReasonEndBeat)
			return trace.Outcome{Detail: string(EndReasonEndBeat)}
		}

		targetID := o.resolveTarget(from)
		if targetID == "" {
			o.end(ctx, EndReasonNoTransition)
			return trace.Outcome{Detail: string(EndReasonNoTransition)}
		}

		next, ok := o.scene.Beat(targetID)
		if !ok {
			err := &TransitionError{SceneID: o.scene.ID, FromBeat: from.ID, ToBeat: targetID, Cause: ErrDanglingTarget}
			o.logger.Error("Beat transition failed", "error", err)
			return trace.Outcome{Err: err}
		}

		o.context.RecordBeatVisit(from.ID, o.lastFragment, from.SpeakerRoleID)
		o.beat = next
		o.lastFragment = ""
		o.context.RecordBeatVisit(next.ID, "", next.SpeakerRoleID)

		o.logger.Debug("Advanced beat", "from", from.ID, "to", next.ID)
		o.publish(ctx, BeatEntered{
			SessionID:  o.sessionID,
			SceneID:    o.scene.ID,
			FromBeatID: from.ID,
			BeatID:     next.ID,
		})
		return trace.Outcome{OK: true, Detail: next.ID}
	})
	return out.OK
}

func (o *SceneOrchestrator) resolveTarget(beat *domain.SceneBeat) string {
	for i, b := range beat.Branches {
		if b.Matches(o.cast, o.relationships, o.context) {
			o.logger.Debug("Branch matched", "beat", beat.ID, "branch", i, "target", b.TargetBeatID)
			return b.TargetBeatID
		}
	}
	return beat.DefaultNextBeatID
}

// EndScene stops the active scene. It reports false when already idle.
func (o *SceneOrchestrator) EndScene(ctx context.Context) bool {
	if o.state != StateInScene {
		return false
	}
	op := trace.Op{Name: trace.OpSceneEnd, Attrs: map[string]string{"scene": o.scene.ID}}
	trace.Run(ctx, o.sink, op, func(ctx context.Context) trace.Outcome {
		o.end(ctx, EndReasonStopped)
		return trace.Outcome{OK: true, Detail: string(EndReasonStopped)}
	})
	return true
}

func (o *SceneOrchestrator) end(ctx context.Context, reason EndReason) {
	scene, beat := o.scene, o.beat
	if beat != nil {
		o.context.RecordBeatVisit(beat.ID, o.lastFragment, beat.SpeakerRoleID)
	}

	o.state = StateIdle
	o.scene = nil
	o.cast = domain.Cast{}
	o.beat = nil
	o.lastFragment = ""

	if scene == nil {
		return
	}
	lastBeat := ""
	if beat != nil {
		lastBeat = beat.ID
	}
	o.logger.Info("Scene ended", "scene", scene.ID, "beat", lastBeat, "reason", reason)
	o.publish(ctx, SceneEnded{
		SessionID:  o.sessionID,
		SceneID:    scene.ID,
		LastBeatID: lastBeat,
		Reason:     reason,
	})
}

// RecordFragmentSelection notes that fragmentID was shown at beatID so later
// conditions can branch on it.
func (o *SceneOrchestrator) RecordFragmentSelection(beatID, fragmentID, speakerRoleID string) {
	o.context.RecordBeatVisit(beatID, fragmentID, speakerRoleID)
	if o.beat != nil && o.beat.ID == beatID && fragmentID != "" {
		o.lastFragment = fragmentID
	}
}

// PresentCurrentBeat builds the line for the current beat from its variation
// set, records the pick and applies the fragment's context modifiers.
func (o *SceneOrchestrator) PresentCurrentBeat(ctx context.Context) (dialogue.Line, bool) {
	if o.state != StateInScene {
		return dialogue.Line{}, false
	}
	if o.builder == nil || o.variations == nil {
		o.logger.Warn("Cannot present beat", "beat", o.beat.ID, "error", ErrNoPresenter)
		return dialogue.Line{}, false
	}

	beat := o.beat
	set, ok := o.variations.GetByID(beat.VariationSetID)
	if !ok || set == nil {
		o.logger.Warn("Cannot present beat", "beat", beat.ID,
			"error", fmt.Errorf("%w: %q", ErrVariationSetNotFound, beat.VariationSetID))
		return dialogue.Line{}, false
	}

	speaker, ok := o.cast.Get(beat.SpeakerRoleID)
	if !ok {
		o.logger.Warn("Cannot present beat", "beat", beat.ID,
			"error", fmt.Errorf("%w: %s", ErrMissingRole, beat.SpeakerRoleID))
		return dialogue.Line{}, false
	}
	var target *domain.Character
	if beat.TargetRoleID != "" {
		if target, ok = o.cast.Get(beat.TargetRoleID); !ok {
			o.logger.Warn("Cannot present beat", "beat", beat.ID,
				"error", fmt.Errorf("%w: %s", ErrMissingRole, beat.TargetRoleID))
			return dialogue.Line{}, false
		}
	}

	line, ok := o.builder.BuildLineWithDetails(ctx, set.Fragments, speaker, target, o.applyMods)
	if !ok {
		o.logger.Debug("Nothing to say at beat", "beat", beat.ID, "error", ErrNoSelection)
		return line, false
	}

	o.RecordFragmentSelection(beat.ID, line.Fragment.ID, beat.SpeakerRoleID)
	for _, m := range line.Fragment.ContextModifiers {
		o.context.Apply(m)
	}
	if o.transcript != nil {
		o.transcript.Append(o.scene.ID, beat.ID, line)
	}
	return line, true
}

func (o *SceneOrchestrator) publish(ctx context.Context, event any) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("Failed to publish event", "event", fmt.Sprintf("%T", event), "error", err)
	}
}

// CurrentBeat returns the active beat, or nil when idle.
func (o *SceneOrchestrator) CurrentBeat() *domain.SceneBeat { return o.beat }

// CurrentScene returns the active template, or nil when idle.
func (o *SceneOrchestrator) CurrentScene() *domain.SceneTemplate { return o.scene }

// CurrentCast returns the active cast; it is empty when idle.
func (o *SceneOrchestrator) CurrentCast() domain.Cast { return o.cast }

// CharacterForRole resolves a role in the active cast.
func (o *SceneOrchestrator) CharacterForRole(roleID string) (*domain.Character, bool) {
	return o.cast.Get(roleID)
}

// HasVisitedBeat reports whether beatID was reached in the current or most
// recent scene.
func (o *SceneOrchestrator) HasVisitedBeat(beatID string) bool {
	return o.context.WasBeatVisited(beatID)
}

func (o *SceneOrchestrator) IsSceneActive() bool { return o.state == StateInScene }

func (o *SceneOrchestrator) State() State { return o.state }

// SceneContext returns the context of the current or most recent scene.
func (o *SceneOrchestrator) SceneContext() *state.SceneContext { return o.context }
