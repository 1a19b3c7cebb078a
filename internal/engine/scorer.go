// Package engine scores context snapshots against the active task, applying
// grace, persistence and cooldown hysteresis before acting on off-task activity.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
	"github.com/Veraticus/the-focus-must-flow/internal/normalize"
)

// Escalator receives ambiguous snapshots for asynchronous judgment.
// Submit must not block.
type Escalator interface {
	Submit(req model.EscalationRequest)
}

// Rule names the heuristic that decided a poll.
type Rule string

// Rules, in evaluation order.
const (
	RuleIdle         Rule = "idle"
	RuleGrace        Rule = "grace"
	RuleAllowList    Rule = "allow-list"
	RuleDevApp       Rule = "dev-app"
	RuleURLPending   Rule = "url-pending"
	RuleWorkCategory Rule = "work-category"
	RuleVideoHost    Rule = "video-host"
	RuleLeisure      Rule = "leisure-category"
	RuleNoTitle      Rule = "no-title"
	RuleNonBrowser   Rule = "non-browser"
	RuleUnknownSite  Rule = "unknown-site"
	RuleKeyword      Rule = "keyword"
	RuleNeutral      Rule = "neutral"
	RuleJudgment     Rule = "judgment"
)

// Result is the outcome of scoring one snapshot.
type Result struct {
	State     model.ScorerState
	Verdict   model.Verdict
	Reason    string
	Rule      Rule
	Escalated bool
}

// Engine is the stateful classifier. It is safe for concurrent use: the
// polling loop scores snapshots while escalation callbacks apply overrides.
type Engine struct {
	escalator Escalator
	logger    *slog.Logger
	sessionID string // session of the last scored snapshot
	state     model.ScorerState
	mu        sync.Mutex
}

// New creates an engine in the unknown state.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger,
		state:  model.ScorerState{Verdict: model.VerdictUnknown},
	}
}

// SetEscalator wires the escalation coordinator. A nil escalator disables escalation.
func (e *Engine) SetEscalator(esc Escalator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.escalator = esc
}

// State returns a copy of the current scorer state.
func (e *Engine) State() model.ScorerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Reset returns the engine to the unknown state. It is called when the session goes idle.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = model.ScorerState{Verdict: model.VerdictUnknown}
	e.sessionID = ""
}

// Override applies an on-task judgment: the off-task counter resets and the
// verdict becomes onTask. It only moves state forward; a nudge that already
// fired stays fired. Overrides while the engine is unknown, or for a session
// other than the one being scored, are ignored.
func (e *Engine) Override(sessionID, reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Verdict == model.VerdictUnknown || sessionID == "" || sessionID != e.sessionID {
		return false
	}
	e.state.OffCount = 0
	e.state.Verdict = model.VerdictOnTask
	e.state.Reason = reason
	return true
}

// Score classifies one snapshot against the task. While the task is idle it
// returns unknown without touching hysteresis state.
func (e *Engine) Score(snap model.ContextSnapshot, task model.TaskState, cfg model.ScorerConfig, now time.Time) Result {
	if !task.Active() {
		return Result{
			Verdict: model.VerdictUnknown,
			Reason:  "idle",
			Rule:    RuleIdle,
			State:   e.State(),
		}
	}

	d := decide(snap, task, cfg, now)

	e.mu.Lock()
	e.sessionID = task.SessionID
	res := e.resolve(d, cfg, now)
	esc := e.escalator
	e.mu.Unlock()

	if d.escalate && esc != nil {
		elapsed := int(task.Elapsed(now) / time.Second)
		esc.Submit(model.NewEscalationRequest(snap, task, elapsed))
		res.Escalated = true
	}

	e.logger.Debug("scored snapshot",
		"seq", snap.Seq,
		"app", snap.AppName,
		"host", snap.Host(),
		"category", snap.Category,
		"rule", res.Rule,
		"verdict", res.Verdict,
		"off_count", res.State.OffCount,
		"escalated", res.Escalated)

	return res
}

// decision is the stateless part of scoring.
type decision struct {
	rule     Rule
	reason   string
	onTask   bool
	offTask  bool
	hold     bool
	escalate bool
}

func decide(snap model.ContextSnapshot, task model.TaskState, cfg model.ScorerConfig, now time.Time) decision {
	elapsed := task.Elapsed(now)
	if elapsed < cfg.Grace {
		left := int(math.Ceil((cfg.Grace - elapsed).Seconds()))
		return decision{rule: RuleGrace, onTask: true, reason: fmt.Sprintf("grace period, %ds left", left)}
	}

	host := snap.Host()
	if task.Allowed(host) {
		return decision{rule: RuleAllowList, onTask: true, reason: fmt.Sprintf("%s allowed for this session", host)}
	}

	if isDevApp(snap.AppName) {
		return decision{rule: RuleDevApp, onTask: true, reason: fmt.Sprintf("working in %s", snap.AppName)}
	}

	title := strings.ToLower(snap.Title)
	display := strings.ToLower(snap.Display())

	if snap.URLPending {
		if kw, hit := matchKeyword(Keywords(task.Title), title); hit {
			return decision{rule: RuleKeyword, onTask: true, reason: fmt.Sprintf("keyword match %q", kw)}
		}
		return decision{rule: RuleURLPending, hold: true, reason: fmt.Sprintf("waiting for %s tab url", appLabel(snap))}
	}

	if _, work := workCategories[snap.Category]; work && !hasDistractor(title, display) {
		return decision{rule: RuleWorkCategory, onTask: true, reason: fmt.Sprintf("%s site %s", snap.Category, host)}
	}

	kw, hit := matchKeyword(Keywords(task.Title), title, display)

	d := decision{escalate: snap.Category == model.CategoryOther}
	_, leisure := leisureCategories[snap.Category]
	browser := normalize.IsBrowser(snap.AppName, snap.BundleID)

	switch {
	case hit:
	case normalize.IsVideoHost(host):
		d.rule, d.reason = RuleVideoHost, fmt.Sprintf("video on %s doesn't mention %q", host, task.Title)
	case leisure:
		d.rule, d.reason = RuleLeisure, fmt.Sprintf("%s site %s doesn't mention %q", snap.Category, host, task.Title)
	case !browser && title == "":
		d.rule, d.reason = RuleNoTitle, fmt.Sprintf("no window title in %s", appLabel(snap))
	case !browser:
		d.rule, d.reason = RuleNonBrowser, fmt.Sprintf("%s window doesn't mention %q", appLabel(snap), task.Title)
	case snap.Category == model.CategoryOther:
		d.rule, d.reason = RuleUnknownSite, fmt.Sprintf("unrecognized page %s doesn't mention %q", siteLabel(snap), task.Title)
	}

	if d.rule != "" {
		d.offTask = true
		d.escalate = true
		return d
	}

	d.onTask = true
	if hit {
		d.rule, d.reason = RuleKeyword, fmt.Sprintf("keyword match %q", kw)
	} else {
		d.rule, d.reason = RuleNeutral, "neutral"
	}
	return d
}

// resolve applies hysteresis. The caller holds e.mu.
func (e *Engine) resolve(d decision, cfg model.ScorerConfig, now time.Time) Result {
	threshold := cfg.Persistence
	if threshold < 1 {
		threshold = 1
	}

	s := &e.state
	if d.hold {
		// Counter and cooldown are untouched; an earlier offTask is not repeated.
		verdict := s.Verdict
		if verdict == model.VerdictOffTask {
			verdict = model.VerdictOffTaskCandidate
		}
		return Result{Verdict: verdict, Reason: d.reason, Rule: d.rule, State: *s}
	}

	if !d.offTask {
		s.OffCount = 0
		s.Verdict = model.VerdictOnTask
		s.Reason = d.reason
		return Result{Verdict: s.Verdict, Reason: s.Reason, Rule: d.rule, State: *s}
	}

	s.OffCount++
	switch {
	case s.OffCount < threshold:
		s.Verdict = model.VerdictOffTaskCandidate
		s.Reason = fmt.Sprintf("(%d/%d) %s", s.OffCount, threshold, d.reason)
	case !s.LastActed.IsZero() && now.Sub(s.LastActed) < cfg.Cooldown:
		s.OffCount = threshold
		left := int(math.Ceil((cfg.Cooldown - now.Sub(s.LastActed)).Seconds()))
		s.Verdict = model.VerdictOffTaskCandidate
		s.Reason = fmt.Sprintf("cooldown, %ds left: %s", left, d.reason)
	default:
		s.OffCount = threshold
		s.Verdict = model.VerdictOffTask
		s.Reason = d.reason
		s.LastActed = now
	}
	return Result{Verdict: s.Verdict, Reason: s.Reason, Rule: d.rule, State: *s}
}

func appLabel(snap model.ContextSnapshot) string {
	if snap.AppName != "" {
		return snap.AppName
	}
	if snap.BundleID != "" {
		return snap.BundleID
	}
	return "unknown app"
}

func siteLabel(snap model.ContextSnapshot) string {
	if d := snap.Display(); d != "" {
		return d
	}
	return "(no url)"
}
