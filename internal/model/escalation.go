package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Tone selects the voice of nudge messages.
type Tone string

// Tones.
const (
	ToneGentle  Tone = "gentle"
	ToneDirect  Tone = "direct"
	TonePlayful Tone = "playful"
)

// ParseTone maps a tone name to a Tone, falling back to ToneGentle.
func ParseTone(name string) Tone {
	switch Tone(strings.ToLower(strings.TrimSpace(name))) {
	case ToneDirect:
		return ToneDirect
	case TonePlayful:
		return TonePlayful
	default:
		return ToneGentle
	}
}

// Preferences are the user-tunable presentation settings sent with escalations
// and used by the local nudge generator.
type Preferences struct {
	Tone    Tone
	Persona string
	Emoji   bool
}

// EscalationRequest asks the judgment service about an ambiguous snapshot.
type EscalationRequest struct {
	TaskTitle      string
	AppName        string
	BundleID       string
	WindowTitle    string
	URLHost        string
	URLPath        string
	Category       TopicCategory
	ElapsedSeconds int
	SessionID      string
}

// NewEscalationRequest builds a request from a snapshot and the task it was scored against.
func NewEscalationRequest(snap ContextSnapshot, task TaskState, elapsedSeconds int) EscalationRequest {
	return EscalationRequest{
		TaskTitle:      task.Title,
		AppName:        snap.AppName,
		BundleID:       snap.BundleID,
		WindowTitle:    snap.Title,
		URLHost:        snap.Host(),
		URLPath:        snap.Path(),
		Category:       snap.Category,
		ElapsedSeconds: elapsedSeconds,
		SessionID:      task.SessionID,
	}
}

// Hash returns the content digest used for deduplication and rate limiting.
// Elapsed time and session id are excluded so near-identical contexts coalesce.
func (r EscalationRequest) Hash() string {
	data := strings.Join([]string{
		r.TaskTitle,
		r.AppName,
		r.BundleID,
		r.WindowTitle,
		r.URLHost,
		r.URLPath,
		string(r.Category),
	}, "\x1f")
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// JudgmentVerdict is the judgment service's answer.
type JudgmentVerdict string

// Judgment verdicts.
const (
	JudgmentOnTask  JudgmentVerdict = "on-task"
	JudgmentOffTask JudgmentVerdict = "off-task"
	JudgmentUnsure  JudgmentVerdict = "unsure"
)

// Valid reports whether v is one of the known judgment verdicts.
func (v JudgmentVerdict) Valid() bool {
	switch v {
	case JudgmentOnTask, JudgmentOffTask, JudgmentUnsure:
		return true
	}
	return false
}

// EscalationResult is the judgment service's response.
type EscalationResult struct {
	Verdict    JudgmentVerdict
	Message    string
	Rationale  string
	AllowHosts []string
	Confidence float64
}

// Nudge sources.
const (
	NudgeSourceLocal    = "local"
	NudgeSourceJudgment = "judgment"
)

// Nudge is a user-visible intervention.
type Nudge struct {
	At        time.Time
	SessionID string
	Source    string
	Message   string
	Reason    string
	AppName   string
	Host      string
}
