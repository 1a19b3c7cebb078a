// Package storage persists the session and intervention journal.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrInvalidSession      = errors.New("invalid session")
	ErrInvalidIntervention = errors.New("invalid intervention")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateSession(task model.TaskState) error {
	switch {
	case task.SessionID == "":
		return fmt.Errorf("%w: missing session id", ErrInvalidSession)
	case strings.TrimSpace(task.Title) == "":
		return fmt.Errorf("%w: missing task title", ErrInvalidSession)
	case task.StartedAt.IsZero():
		return fmt.Errorf("%w: missing start time", ErrInvalidSession)
	}
	return nil
}

func validateNudge(n model.Nudge) error {
	switch {
	case n.SessionID == "":
		return fmt.Errorf("%w: missing session id", ErrInvalidIntervention)
	case n.Source != model.NudgeSourceLocal && n.Source != model.NudgeSourceJudgment:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidIntervention, n.Source)
	case strings.TrimSpace(n.Message) == "":
		return fmt.Errorf("%w: empty message", ErrInvalidIntervention)
	case n.At.IsZero():
		return fmt.Errorf("%w: missing time", ErrInvalidIntervention)
	}
	return nil
}
