package model

import "time"

// SessionRecord is a journaled task session.
type SessionRecord struct {
	StartedAt time.Time
	EndedAt   *time.Time // nil while the session is running
	ID        string
	Task      string
}

// Intervention is a journaled nudge together with its session's task.
type Intervention struct {
	Nudge
	Task string
	ID   int64
}
