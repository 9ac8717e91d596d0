package core

import "github.com/dotcommander/parley/internal/domain"

// EndReason says why a scene stopped.
type EndReason string

const (
	EndReasonEndBeat      EndReason = "end_beat"
	EndReasonNoTransition EndReason = "no_transition"
	EndReasonStopped      EndReason = "stopped"
	EndReasonReplaced     EndReason = "replaced"
)

// SceneStarted is published when a scene begins.
type SceneStarted struct {
	SessionID   string
	SceneID     string
	StartBeatID string
	Cast        domain.Cast
}

// BeatEntered is published after every successful advance.
type BeatEntered struct {
	SessionID  string
	SceneID    string
	FromBeatID string
	BeatID     string
}

// SceneEnded is published when the orchestrator returns to idle.
type SceneEnded struct {
	SessionID  string
	SceneID    string
	LastBeatID string
	Reason     EndReason
}
