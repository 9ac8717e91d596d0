package core

import (
	"errors"
	"fmt"
)

// Predefined error values. Orchestrator operations report failure through
// their bool results; these errors describe the reason to trace sinks and
// logs.
var (
	ErrNoActiveScene        = errors.New("no active scene")
	ErrInvalidTemplate      = errors.New("invalid scene template")
	ErrMissingRole          = errors.New("role not in cast")
	ErrDanglingTarget       = errors.New("branch target beat does not exist")
	ErrNoPresenter          = errors.New("no dialogue builder or variation repository configured")
	ErrVariationSetNotFound = errors.New("variation set not found")
	ErrNoSelection          = errors.New("no selectable fragment")
	ErrRoleUnfilled         = errors.New("no eligible character for role")
)

// TransitionError describes a failed beat transition.
type TransitionError struct {
	SceneID  string
	FromBeat string
	ToBeat   string
	Cause    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("scene %s: transition %s -> %s: %v", e.SceneID, e.FromBeat, e.ToBeat, e.Cause)
}

func (e *TransitionError) Unwrap() error {
	return e.Cause
}
