// Package escalation forwards ambiguous snapshots to the external judgment
// service and merges the answers back into local state.
//
// Submissions are deduplicated against the previous submission, coalesced
// over a short window, rate limited per content hash and never sent twice
// while an identical request is still waiting for an answer.
package escalation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

// Transport performs the judgment call. Implementations must honour ctx.
type Transport interface {
	Judge(ctx context.Context, req model.EscalationRequest, prefs model.Preferences) (model.EscalationResult, error)
}

// Scorer receives on-task overrides.
type Scorer interface {
	Override(sessionID, reason string) bool
}

// Session exposes the current task and the session allow-list.
type Session interface {
	State() model.TaskState
	AllowHosts(sessionID string, hosts ...string) error
}

// Notifier shows off-task nudges to the user.
type Notifier interface {
	Notify(n model.Nudge)
}

// Composer writes a fallback nudge when the judgment carries no message.
type Composer interface {
	Compose(prefs model.Preferences, task, reason string) string
}

// Config tunes the coordinator.
type Config struct {
	Window     time.Duration
	MinGap     time.Duration
	Timeout    time.Duration
	Confidence float64
}

// DefaultConfig returns the default coordinator settings.
func DefaultConfig() Config {
	return Config{
		Window:     time.Second,
		MinGap:     20 * time.Second,
		Timeout:    6 * time.Second,
		Confidence: 0.55,
	}
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Transport   Transport
	Scorer      Scorer
	Session     Session
	Notifier    Notifier
	Composer    Composer
	Preferences func() model.Preferences
	Logger      *slog.Logger
	Now         func() time.Time
}

// pruneThreshold bounds the dispatch history before stale entries are swept.
const pruneThreshold = 256

// Coordinator deduplicates, rate limits and dispatches escalation requests.
type Coordinator struct {
	deps         Deps
	ctx          context.Context
	cancel       context.CancelFunc
	pending      *model.EscalationRequest
	timer        *time.Timer
	inFlight     map[string]struct{}
	lastDispatch map[string]time.Time
	lastHash     string
	cfg          Config
	wg           sync.WaitGroup
	mu           sync.Mutex
	closed       bool
}

// New creates a coordinator. Transport may be nil, in which case every
// submission is dropped.
func New(cfg Config, deps Deps) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Preferences == nil {
		deps.Preferences = func() model.Preferences { return model.Preferences{Tone: model.ToneGentle} }
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:          cfg,
		deps:         deps,
		ctx:          ctx,
		cancel:       cancel,
		inFlight:     make(map[string]struct{}),
		lastDispatch: make(map[string]time.Time),
	}
}

// Submit queues req for judgment. It never blocks on the transport.
func (c *Coordinator) Submit(req model.EscalationRequest) {
	hash := req.Hash()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.deps.Transport == nil {
		return
	}
	if hash == c.lastHash {
		c.deps.Logger.Debug("escalation dropped", "reason", "duplicate", "hash", short(hash))
		return
	}
	c.lastHash = hash

	pending := req
	c.pending = &pending
	if c.timer == nil {
		c.timer = time.AfterFunc(c.cfg.Window, c.flush)
	}
}

// flush dispatches the most recent submission of a burst.
func (c *Coordinator) flush() {
	c.mu.Lock()
	req := c.pending
	c.pending = nil
	c.timer = nil
	if req == nil || c.closed {
		c.mu.Unlock()
		return
	}

	hash := req.Hash()
	now := c.deps.Now()

	if _, busy := c.inFlight[hash]; busy {
		c.mu.Unlock()
		c.deps.Logger.Debug("escalation dropped", "reason", "in flight", "hash", short(hash))
		return
	}
	if last, ok := c.lastDispatch[hash]; ok && now.Sub(last) < c.cfg.MinGap {
		c.forgetLocked(hash)
		c.mu.Unlock()
		c.deps.Logger.Debug("escalation dropped", "reason", "rate limited", "hash", short(hash),
			"since_last", now.Sub(last))
		return
	}

	if len(c.lastDispatch) >= pruneThreshold {
		for h, at := range c.lastDispatch {
			if now.Sub(at) >= c.cfg.MinGap {
				delete(c.lastDispatch, h)
			}
		}
	}
	c.inFlight[hash] = struct{}{}
	c.lastDispatch[hash] = now
	c.wg.Add(1)
	c.mu.Unlock()

	c.deps.Logger.Info("escalating snapshot",
		"hash", short(hash),
		"app", req.AppName,
		"host", req.URLHost,
		"category", req.Category)

	go c.dispatch(hash, *req)
}

func (c *Coordinator) dispatch(hash string, req model.EscalationRequest) {
	defer c.wg.Done()

	prefs := c.deps.Preferences()
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.Timeout)
	defer cancel()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, hash)
		c.mu.Unlock()
	}()

	result, err := c.deps.Transport.Judge(ctx, req, prefs)
	if err != nil {
		c.deps.Logger.Warn("judgment failed", "hash", short(hash), "error", err)
		c.mu.Lock()
		c.forgetLocked(hash)
		c.mu.Unlock()
		return
	}

	c.apply(req, result, prefs)
}

// forgetLocked lets the next submission of hash past the adjacent-duplicate
// check when it was never judged. The minimum gap still applies. The caller
// holds c.mu.
func (c *Coordinator) forgetLocked(hash string) {
	if c.lastHash == hash {
		c.lastHash = ""
	}
}

// apply merges a judgment into local state. Results for a session that is no
// longer current, unsure verdicts and low-confidence answers change nothing.
func (c *Coordinator) apply(req model.EscalationRequest, result model.EscalationResult, prefs model.Preferences) {
	logger := c.deps.Logger.With("verdict", result.Verdict, "confidence", result.Confidence)

	if c.deps.Session != nil {
		state := c.deps.Session.State()
		if !state.Active() || state.SessionID != req.SessionID {
			logger.Debug("judgment discarded", "reason", "stale session")
			return
		}
	}
	if result.Verdict == model.JudgmentUnsure || result.Confidence < c.cfg.Confidence {
		logger.Debug("judgment discarded", "reason", "not confident")
		return
	}

	switch result.Verdict {
	case model.JudgmentOnTask:
		reason := "judged on-task"
		if r := strings.TrimSpace(result.Rationale); r != "" {
			reason = "judge: " + r
		}
		if c.deps.Scorer != nil {
			if !c.deps.Scorer.Override(req.SessionID, reason) {
				logger.Debug("override ignored", "reason", "scorer moved on")
			}
		}
		if len(result.AllowHosts) > 0 && c.deps.Session != nil {
			if err := c.deps.Session.AllowHosts(req.SessionID, result.AllowHosts...); err != nil {
				logger.Warn("failed to allow hosts", "hosts", result.AllowHosts, "error", err)
			}
		}
		logger.Info("judgment confirmed on-task", "host", req.URLHost, "allow_hosts", result.AllowHosts)

	case model.JudgmentOffTask:
		message := strings.TrimSpace(result.Message)
		if message == "" && c.deps.Composer != nil {
			message = c.deps.Composer.Compose(prefs, req.TaskTitle, result.Rationale)
		}
		if c.deps.Notifier != nil {
			c.deps.Notifier.Notify(model.Nudge{
				At:        c.deps.Now(),
				SessionID: req.SessionID,
				Source:    model.NudgeSourceJudgment,
				Message:   message,
				Reason:    result.Rationale,
				AppName:   req.AppName,
				Host:      req.URLHost,
			})
		}
		logger.Info("judgment confirmed off-task", "host", req.URLHost)
	}
}

// Reset forgets submission history. It is called when a session ends so the
// next session can escalate the same contexts again. In-flight calls keep
// running; their answers are discarded by the session check.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.lastHash = ""
	c.lastDispatch = make(map[string]time.Time)
}

// InFlight returns the number of requests waiting for an answer.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// Close cancels outstanding transport calls and waits for them to return.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
