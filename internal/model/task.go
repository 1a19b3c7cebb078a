package model

import "time"

// TaskMode is the session lifecycle mode.
type TaskMode string

// Task modes.
const (
	ModeIdle   TaskMode = "idle"
	ModeActive TaskMode = "active"
)

// TaskState is the session state read by the classification engine.
// It is a copy; mutating it has no effect on the session controller.
type TaskState struct {
	StartedAt  time.Time
	AllowHosts map[string]struct{}
	SessionID  string
	Title      string
	Mode       TaskMode
}

// Active reports whether a task session is running.
func (t TaskState) Active() bool {
	return t.Mode == ModeActive
}

// Elapsed returns the session time elapsed at now. It is zero while idle.
func (t TaskState) Elapsed(now time.Time) time.Duration {
	if !t.Active() || t.StartedAt.IsZero() {
		return 0
	}
	if d := now.Sub(t.StartedAt); d > 0 {
		return d
	}
	return 0
}

// Allowed reports whether host was allow-listed for this session.
func (t TaskState) Allowed(host string) bool {
	if host == "" {
		return false
	}
	_, ok := t.AllowHosts[host]
	return ok
}
