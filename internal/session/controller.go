// Package session owns the task lifecycle: which task is active, since when,
// and which hosts were allow-listed for it.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
	"github.com/Veraticus/the-focus-must-flow/internal/normalize"
	"github.com/google/uuid"
)

// Session errors.
var (
	ErrEmptyTask    = errors.New("task title cannot be empty")
	ErrNotActive    = errors.New("no active session")
	ErrStaleSession = errors.New("session is no longer current")
)

// Listener is called after every mode transition with the new state.
type Listener func(state model.TaskState)

// Controller is the single owner of the TaskState.
type Controller struct {
	startedAt time.Time
	allow     map[string]struct{}
	logger    *slog.Logger
	now       func() time.Time
	id        string
	title     string
	listeners []Listener
	mu        sync.Mutex
	active    bool
}

// New creates an idle controller.
func New(logger *slog.Logger) *Controller {
	return NewWithClock(logger, time.Now)
}

// NewWithClock creates an idle controller that reads time from now.
func NewWithClock(logger *slog.Logger, now func() time.Time) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{
		logger: logger,
		now:    now,
		allow:  make(map[string]struct{}),
	}
}

// Subscribe registers l for mode transitions. Listeners run synchronously on
// the goroutine that caused the transition, in registration order.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Start begins a session for title. Starting while a session is active ends
// the current session first.
func (c *Controller) Start(title string) (model.TaskState, error) {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return model.TaskState{}, ErrEmptyTask
	}

	if c.isActive() {
		if err := c.Stop(); err != nil && !errors.Is(err, ErrNotActive) {
			return model.TaskState{}, err
		}
	}

	c.mu.Lock()
	c.active = true
	c.title = title
	c.startedAt = c.now()
	c.id = uuid.New().String()
	c.allow = make(map[string]struct{})
	state := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	c.logger.Info("session started", "session_id", state.SessionID, "task", title)
	notify(listeners, state)
	return state, nil
}

// Stop ends the active session, clearing its allow-list.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrNotActive
	}
	id, title, started := c.id, c.title, c.startedAt
	c.active = false
	c.title = ""
	c.id = ""
	c.startedAt = time.Time{}
	c.allow = make(map[string]struct{})
	state := c.snapshotLocked()
	listeners := c.listeners
	c.mu.Unlock()

	c.logger.Info("session stopped",
		"session_id", id,
		"task", title,
		"duration", c.now().Sub(started).Round(time.Second))
	notify(listeners, state)
	return nil
}

// State returns a copy of the current task state.
func (c *Controller) State() model.TaskState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// AllowHosts adds hosts to the allow-list of session sessionID. Hosts may be
// bare names or URLs; they are normalized the same way snapshot URLs are.
func (c *Controller) AllowHosts(sessionID string, hosts ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return ErrNotActive
	}
	if sessionID != c.id {
		return fmt.Errorf("%w: %s", ErrStaleSession, sessionID)
	}

	for _, h := range hosts {
		u := normalize.NormalizeURL(h)
		if u == nil {
			continue
		}
		c.allow[u.Host] = struct{}{}
	}
	return nil
}

func (c *Controller) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) snapshotLocked() model.TaskState {
	state := model.TaskState{Mode: model.ModeIdle}
	if !c.active {
		return state
	}

	state.Mode = model.ModeActive
	state.Title = c.title
	state.StartedAt = c.startedAt
	state.SessionID = c.id
	state.AllowHosts = make(map[string]struct{}, len(c.allow))
	for h := range c.allow {
		state.AllowHosts[h] = struct{}{}
	}
	return state
}

func notify(listeners []Listener, state model.TaskState) {
	for _, l := range listeners {
		l(state)
	}
}
