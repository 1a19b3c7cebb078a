package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeTransport struct {
	block  chan struct{}
	err    error
	calls  []model.EscalationRequest
	prefs  []model.Preferences
	result model.EscalationResult
	mu     sync.Mutex
}

func (f *fakeTransport) Judge(ctx context.Context, req model.EscalationRequest, prefs model.Preferences) (model.EscalationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.prefs = append(f.prefs, prefs)
	block, result, err := f.block, f.result, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return model.EscalationResult{}, ctx.Err()
		}
	}
	return result, err
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) lastCall() model.EscalationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeSession struct {
	allowed []string
	state   model.TaskState
	mu      sync.Mutex
}

func (f *fakeSession) State() model.TaskState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) AllowHosts(_ string, hosts ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowed = append(f.allowed, hosts...)
	return nil
}

func (f *fakeSession) allowedHosts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.allowed...)
}

type fakeScorer struct {
	reasons  []string
	sessions []string
	mu       sync.Mutex
}

func (f *fakeScorer) Override(sessionID, reason string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reasons = append(f.reasons, reason)
	f.sessions = append(f.sessions, sessionID)
	return true
}

func (f *fakeScorer) overrideSessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sessions...)
}

func (f *fakeScorer) overrides() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reasons...)
}

type fakeNotifier struct {
	nudges []model.Nudge
	mu     sync.Mutex
}

func (f *fakeNotifier) Notify(n model.Nudge) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nudges = append(f.nudges, n)
}

func (f *fakeNotifier) all() []model.Nudge {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Nudge(nil), f.nudges...)
}

type stubComposer struct{}

func (stubComposer) Compose(prefs model.Preferences, task, _ string) string {
	return string(prefs.Tone) + ": back to " + task
}

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	coord     *Coordinator
	transport *fakeTransport
	session   *fakeSession
	scorer    *fakeScorer
	notifier  *fakeNotifier
	clock     *fakeClock
}

func newHarness(t *testing.T, cfg Config, transport *fakeTransport) *harness {
	t.Helper()
	h := &harness{
		transport: transport,
		session: &fakeSession{state: model.TaskState{
			Mode:      model.ModeActive,
			Title:     "leetcode",
			SessionID: "s1",
			StartedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		}},
		scorer:   &fakeScorer{},
		notifier: &fakeNotifier{},
		clock:    &fakeClock{now: time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC)},
	}
	h.coord = New(cfg, Deps{
		Transport: transport,
		Scorer:    h.scorer,
		Session:   h.session,
		Notifier:  h.notifier,
		Composer:  stubComposer{},
		Preferences: func() model.Preferences {
			return model.Preferences{Tone: model.TonePlayful, Persona: "Coach", Emoji: true}
		},
		Now: h.clock.Now,
	})
	return h
}

func testConfig() Config {
	return Config{
		Window:     10 * time.Millisecond,
		MinGap:     20 * time.Second,
		Timeout:    time.Second,
		Confidence: 0.55,
	}
}

func request(host string) model.EscalationRequest {
	return model.EscalationRequest{
		TaskTitle:      "leetcode",
		AppName:        "Safari",
		BundleID:       "com.apple.Safari",
		WindowTitle:    "Top 10 Fails",
		URLHost:        host,
		URLPath:        "/watch",
		Category:       model.CategoryVideo,
		ElapsedSeconds: 60,
		SessionID:      "s1",
	}
}

func waitForCalls(t *testing.T, tr *fakeTransport, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return tr.callCount() == n }, time.Second, 5*time.Millisecond)
}

func TestRequestHash(t *testing.T) {
	a := request("youtube.com")
	b := a
	b.ElapsedSeconds = 600
	b.SessionID = "other"
	assert.Equal(t, a.Hash(), b.Hash(), "elapsed time and session are not part of the hash")

	c := a
	c.URLPath = "/shorts"
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Len(t, a.Hash(), 64)
}

func TestCoordinator_DeduplicatesIdenticalRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{result: model.EscalationResult{Verdict: model.JudgmentUnsure}}
	h := newHarness(t, testConfig(), tr)
	defer h.coord.Close()

	for i := 0; i < 5; i++ {
		req := request("youtube.com")
		req.ElapsedSeconds = 60 + i
		h.coord.Submit(req)
	}

	waitForCalls(t, tr, 1)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, tr.callCount())
}

func TestCoordinator_CoalescesBurstToMostRecent(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{result: model.EscalationResult{Verdict: model.JudgmentUnsure}}
	cfg := testConfig()
	cfg.Window = 50 * time.Millisecond
	h := newHarness(t, cfg, tr)
	defer h.coord.Close()

	h.coord.Submit(request("a.example"))
	h.coord.Submit(request("b.example"))
	h.coord.Submit(request("c.example"))

	waitForCalls(t, tr, 1)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, tr.callCount())
	assert.Equal(t, "c.example", tr.lastCall().URLHost)
}

func TestCoordinator_RateLimitsPerHash(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{result: model.EscalationResult{Verdict: model.JudgmentUnsure}}
	h := newHarness(t, testConfig(), tr)
	defer h.coord.Close()

	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 1)
	h.coord.Submit(request("b.example"))
	waitForCalls(t, tr, 2)
	require.Eventually(t, func() bool { return h.coord.InFlight() == 0 }, time.Second, 5*time.Millisecond)

	// a.example again, 5s after its dispatch: inside the minimum gap.
	h.clock.Advance(5 * time.Second)
	h.coord.Submit(request("a.example"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, tr.callCount())

	// b.example once the gap has passed.
	h.clock.Advance(20 * time.Second)
	h.coord.Submit(request("b.example"))
	waitForCalls(t, tr, 3)
	assert.Equal(t, "b.example", tr.lastCall().URLHost)
}

func TestCoordinator_DropsWhileInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	tr := &fakeTransport{block: release, result: model.EscalationResult{Verdict: model.JudgmentUnsure}}
	cfg := testConfig()
	cfg.MinGap = 0
	h := newHarness(t, cfg, tr)
	defer h.coord.Close()

	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 1)
	h.coord.Submit(request("b.example"))
	waitForCalls(t, tr, 2)

	h.coord.Submit(request("a.example"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, tr.callCount(), "a.example is still awaiting an answer")
	assert.Equal(t, 2, h.coord.InFlight())

	close(release)
	require.Eventually(t, func() bool { return h.coord.InFlight() == 0 }, time.Second, 5*time.Millisecond)

	h.coord.Submit(request("b.example"))
	waitForCalls(t, tr, 3)
	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 4)
}

func TestCoordinator_TransportFailureClearsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{err: errors.New("connection refused")}
	cfg := testConfig()
	cfg.MinGap = 0
	h := newHarness(t, cfg, tr)
	defer h.coord.Close()

	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 1)
	require.Eventually(t, func() bool { return h.coord.InFlight() == 0 }, time.Second, 5*time.Millisecond)

	h.coord.Submit(request("b.example"))
	waitForCalls(t, tr, 2)
	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 3)

	assert.Empty(t, h.scorer.overrides())
	assert.Empty(t, h.notifier.all())
}

func (c *Coordinator) idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending == nil && c.timer == nil && len(c.inFlight) == 0
}

func TestCoordinator_FailedContextIsRejudgedAfterGap(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{err: errors.New("connection refused")}
	h := newHarness(t, testConfig(), tr)
	defer h.coord.Close()

	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 1)
	require.Eventually(t, h.coord.idle, time.Second, 5*time.Millisecond)

	h.clock.Advance(time.Second)
	h.coord.Submit(request("a.example"))
	require.Eventually(t, h.coord.idle, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, tr.callCount(), "minimum gap still applies")

	h.clock.Advance(20 * time.Second)
	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 2)
}

func TestCoordinator_TimeoutIsAFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{block: make(chan struct{}), result: model.EscalationResult{Verdict: model.JudgmentOffTask, Confidence: 1}}
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	h := newHarness(t, cfg, tr)
	defer h.coord.Close()

	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 1)
	require.Eventually(t, func() bool { return h.coord.InFlight() == 0 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.notifier.all())
}

func TestCoordinator_ApplyJudgment(t *testing.T) {
	tests := []struct {
		name          string
		result        model.EscalationResult
		sessionID     string
		wantOverrides []string
		wantAllowed   []string
		wantNudge     string
	}{
		{
			name: "confident on-task resets and allow-lists",
			result: model.EscalationResult{
				Verdict:    model.JudgmentOnTask,
				Confidence: 0.8,
				Rationale:  "practice problems for the task",
				AllowHosts: []string{"leetcode-extra.com"},
			},
			wantOverrides: []string{"judge: practice problems for the task"},
			wantAllowed:   []string{"leetcode-extra.com"},
		},
		{
			name:          "on-task without rationale",
			result:        model.EscalationResult{Verdict: model.JudgmentOnTask, Confidence: 0.9},
			wantOverrides: []string{"judged on-task"},
		},
		{
			name:      "confident off-task uses the judgment message",
			result:    model.EscalationResult{Verdict: model.JudgmentOffTask, Confidence: 0.9, Message: "Fails can wait."},
			wantNudge: "Fails can wait.",
		},
		{
			name:      "off-task without message falls back to the composer",
			result:    model.EscalationResult{Verdict: model.JudgmentOffTask, Confidence: 0.9, Rationale: "video"},
			wantNudge: "playful: back to leetcode",
		},
		{
			name:   "below the confidence threshold",
			result: model.EscalationResult{Verdict: model.JudgmentOffTask, Confidence: 0.5, Message: "nope"},
		},
		{
			name:   "unsure",
			result: model.EscalationResult{Verdict: model.JudgmentUnsure, Confidence: 0.99},
		},
		{
			name:      "answer for a finished session",
			result:    model.EscalationResult{Verdict: model.JudgmentOnTask, Confidence: 0.99, AllowHosts: []string{"x.example"}},
			sessionID: "s0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			tr := &fakeTransport{result: tt.result}
			h := newHarness(t, testConfig(), tr)
			defer h.coord.Close()

			req := request("leetcode-extra.com")
			if tt.sessionID != "" {
				req.SessionID = tt.sessionID
			}
			h.coord.Submit(req)
			waitForCalls(t, tr, 1)
			require.Eventually(t, func() bool { return h.coord.InFlight() == 0 }, time.Second, 5*time.Millisecond)

			assert.Equal(t, tt.wantOverrides, h.scorer.overrides())
			for _, id := range h.scorer.overrideSessions() {
				assert.Equal(t, req.SessionID, id)
			}
			assert.Equal(t, tt.wantAllowed, h.session.allowedHosts())

			nudges := h.notifier.all()
			if tt.wantNudge == "" {
				assert.Empty(t, nudges)
				return
			}
			require.Len(t, nudges, 1)
			assert.Equal(t, tt.wantNudge, nudges[0].Message)
			assert.Equal(t, model.NudgeSourceJudgment, nudges[0].Source)
			assert.Equal(t, "s1", nudges[0].SessionID)
			assert.Equal(t, "leetcode-extra.com", nudges[0].Host)
		})
	}
}

func TestCoordinator_SendsPreferences(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{result: model.EscalationResult{Verdict: model.JudgmentUnsure}}
	h := newHarness(t, testConfig(), tr)
	defer h.coord.Close()

	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 1)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	assert.Equal(t, model.Preferences{Tone: model.TonePlayful, Persona: "Coach", Emoji: true}, tr.prefs[0])
}

func TestCoordinator_ResetAllowsResubmission(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{result: model.EscalationResult{Verdict: model.JudgmentUnsure}}
	h := newHarness(t, testConfig(), tr)
	defer h.coord.Close()

	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 1)
	require.Eventually(t, func() bool { return h.coord.InFlight() == 0 }, time.Second, 5*time.Millisecond)

	h.coord.Reset()
	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 2)
}

func TestCoordinator_CloseCancelsInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := &fakeTransport{block: make(chan struct{}), result: model.EscalationResult{Verdict: model.JudgmentOffTask, Confidence: 1}}
	cfg := testConfig()
	cfg.Timeout = time.Minute
	h := newHarness(t, cfg, tr)

	h.coord.Submit(request("a.example"))
	waitForCalls(t, tr, 1)

	done := make(chan struct{})
	go func() {
		_ = h.coord.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, 0, h.coord.InFlight())
	assert.Empty(t, h.notifier.all())

	h.coord.Submit(request("b.example"))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, tr.callCount(), "submissions after Close are ignored")
}

func TestCoordinator_NilTransportDropsEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(testConfig(), Deps{})
	defer c.Close()

	c.Submit(request("a.example"))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, c.InFlight())
}
