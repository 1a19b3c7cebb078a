// Package monitor wires the sampler, classification engine, escalation
// coordinator and session controller into the running focus loop.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/engine"
	"github.com/Veraticus/the-focus-must-flow/internal/escalation"
	"github.com/Veraticus/the-focus-must-flow/internal/model"
	"github.com/Veraticus/the-focus-must-flow/internal/sampler"
	"github.com/Veraticus/the-focus-must-flow/internal/session"
)

// Sampler produces snapshots while a session runs.
type Sampler interface {
	Start(ctx context.Context, handler sampler.Handler)
	Stop()
}

// Settings supplies the live-tunable values, re-read on every poll.
type Settings interface {
	Scorer() model.ScorerConfig
	Preferences() model.Preferences
}

// Resetter forgets escalation history between sessions.
type Resetter interface {
	Reset()
}

// Deps are the collaborators of a Monitor.
type Deps struct {
	Session     *session.Controller
	Engine      *engine.Engine
	Coordinator Resetter
	Sampler     Sampler
	Settings    Settings
	Composer    escalation.Composer
	Presenter   Presenter
	Notifier    *Notifier
	Journal     Journal
	Logger      *slog.Logger
	Now         func() time.Time
}

// Monitor reacts to session transitions and classifies every snapshot.
type Monitor struct {
	deps      Deps
	ctx       context.Context
	idle      chan struct{}
	sessionID string
	mu        sync.Mutex
}

// New creates a monitor and subscribes it to session transitions. A stop
// requested through the presenter ends the session.
func New(deps Deps) *Monitor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = NewNotifier(deps.Presenter, deps.Journal, deps.Logger)
	}

	m := &Monitor{
		deps: deps,
		ctx:  context.Background(),
		idle: make(chan struct{}, 1),
	}

	deps.Session.Subscribe(m.onSession)
	if deps.Presenter != nil {
		deps.Presenter.OnStop(m.requestStop)
	}
	return m
}

// Run starts a session for task and blocks until the session ends or ctx is
// cancelled. A still-running session is stopped before Run returns.
func (m *Monitor) Run(ctx context.Context, task string) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	select {
	case <-m.idle:
	default:
	}

	if _, err := m.deps.Session.Start(task); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-m.idle:
	}

	if err := m.deps.Session.Stop(); err != nil && !errors.Is(err, session.ErrNotActive) {
		return err
	}
	return nil
}

func (m *Monitor) requestStop() {
	if err := m.deps.Session.Stop(); err != nil && !errors.Is(err, session.ErrNotActive) {
		m.deps.Logger.Warn("failed to stop session", "error", err)
	}
}

func (m *Monitor) onSession(state model.TaskState) {
	m.mu.Lock()
	ctx := m.ctx
	previous := m.sessionID
	m.sessionID = state.SessionID
	m.mu.Unlock()

	if state.Active() {
		m.resetScoring()
		m.journalStart(state)
		m.showSession(state)
		m.deps.Sampler.Start(ctx, m.handle)
		return
	}

	m.deps.Sampler.Stop()
	m.resetScoring()
	m.journalEnd(previous)
	m.showSession(state)

	select {
	case m.idle <- struct{}{}:
	default:
	}
}

func (m *Monitor) resetScoring() {
	m.deps.Engine.Reset()
	if m.deps.Coordinator != nil {
		m.deps.Coordinator.Reset()
	}
}

// handle classifies one snapshot. It runs on the sampler goroutine.
func (m *Monitor) handle(snap model.ContextSnapshot) {
	task := m.deps.Session.State()
	if !task.Active() {
		return
	}

	now := m.deps.Now()
	res := m.deps.Engine.Score(snap, task, m.deps.Settings.Scorer(), now)

	if sp, ok := m.deps.Presenter.(StatusPresenter); ok {
		sp.ShowVerdict(res.Verdict, res.Reason)
	}

	if res.Verdict != model.VerdictOffTask {
		return
	}

	message := ""
	if m.deps.Composer != nil {
		message = m.deps.Composer.Compose(m.deps.Settings.Preferences(), task.Title, res.Reason)
	}
	m.deps.Notifier.Notify(model.Nudge{
		At:        now,
		SessionID: task.SessionID,
		Source:    model.NudgeSourceLocal,
		Message:   message,
		Reason:    res.Reason,
		AppName:   snap.AppName,
		Host:      snap.Host(),
	})
}

func (m *Monitor) showSession(state model.TaskState) {
	if sp, ok := m.deps.Presenter.(StatusPresenter); ok {
		sp.ShowSession(state)
	}
}

func (m *Monitor) journalStart(state model.TaskState) {
	if m.deps.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := m.deps.Journal.StartSession(ctx, state); err != nil {
		m.deps.Logger.Error("failed to journal session start", "session_id", state.SessionID, "error", err)
	}
}

func (m *Monitor) journalEnd(sessionID string) {
	if m.deps.Journal == nil || sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := m.deps.Journal.EndSession(ctx, sessionID, m.deps.Now()); err != nil {
		m.deps.Logger.Error("failed to journal session end", "session_id", sessionID, "error", err)
	}
}
