package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-focus-must-flow/internal/engine"
	"github.com/Veraticus/the-focus-must-flow/internal/model"
	"github.com/Veraticus/the-focus-must-flow/internal/normalize"
	"github.com/Veraticus/the-focus-must-flow/internal/nudge"
	"github.com/Veraticus/the-focus-must-flow/internal/sampler"
	"github.com/Veraticus/the-focus-must-flow/internal/session"
)

// manualSampler hands snapshots to the handler only when the test asks.
type manualSampler struct {
	started chan struct{}
	handler sampler.Handler
	mu      sync.Mutex
	starts  int
	stops   int
	running bool
}

func newManualSampler() *manualSampler {
	return &manualSampler{started: make(chan struct{}, 4)}
}

func (s *manualSampler) Start(_ context.Context, h sampler.Handler) {
	s.mu.Lock()
	s.handler = h
	s.starts++
	s.running = true
	s.mu.Unlock()
	s.started <- struct{}{}
}

func (s *manualSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.stops++
	}
	s.running = false
}

func (s *manualSampler) emit(snap model.ContextSnapshot) {
	s.mu.Lock()
	h, running := s.handler, s.running
	s.mu.Unlock()
	if running {
		h(snap)
	}
}

type fixedSettings struct {
	scorer model.ScorerConfig
	prefs  model.Preferences
}

func (f fixedSettings) Scorer() model.ScorerConfig     { return f.scorer }
func (f fixedSettings) Preferences() model.Preferences { return f.prefs }

type recordingPresenter struct {
	stopFns  []func()
	nudges   []string
	verdicts []model.Verdict
	sessions []model.TaskState
	mu       sync.Mutex
}

func (p *recordingPresenter) ShowNudge(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nudges = append(p.nudges, text)
}

func (p *recordingPresenter) OnStop(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopFns = append(p.stopFns, fn)
}

func (p *recordingPresenter) ShowSession(state model.TaskState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = append(p.sessions, state)
}

func (p *recordingPresenter) ShowVerdict(v model.Verdict, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verdicts = append(p.verdicts, v)
}

func (p *recordingPresenter) stop() {
	p.mu.Lock()
	fns := append([]func(){}, p.stopFns...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (p *recordingPresenter) Nudges() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.nudges...)
}

type recordingJournal struct {
	err           error
	started       []string
	ended         []string
	interventions []model.Nudge
	mu            sync.Mutex
}

func (j *recordingJournal) StartSession(_ context.Context, task model.TaskState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, task.SessionID)
	return j.err
}

func (j *recordingJournal) EndSession(_ context.Context, id string, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ended = append(j.ended, id)
	return j.err
}

func (j *recordingJournal) SaveIntervention(_ context.Context, n model.Nudge) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.interventions = append(j.interventions, n)
	return int64(len(j.interventions)), j.err
}

type countingResetter struct {
	mu     sync.Mutex
	resets int
}

func (r *countingResetter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
}

type harness struct {
	monitor   *Monitor
	session   *session.Controller
	engine    *engine.Engine
	sampler   *manualSampler
	presenter *recordingPresenter
	journal   *recordingJournal
	resetter  *countingResetter
	now       time.Time
	mu        sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithScorer(t, model.ScorerConfig{Grace: 0, Persistence: 3, Cooldown: 45 * time.Second})
}

func newHarnessWithScorer(t *testing.T, scorer model.ScorerConfig) *harness {
	t.Helper()
	h := &harness{
		now:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		sampler:   newManualSampler(),
		presenter: &recordingPresenter{},
		journal:   &recordingJournal{},
		resetter:  &countingResetter{},
		engine:    engine.New(nil),
	}
	h.session = session.NewWithClock(nil, h.clock)
	h.monitor = New(Deps{
		Session:     h.session,
		Engine:      h.engine,
		Coordinator: h.resetter,
		Sampler:     h.sampler,
		Settings: fixedSettings{
			scorer: scorer,
			prefs:  model.Preferences{Tone: model.ToneDirect},
		},
		Composer:  nudge.NewGenerator(),
		Presenter: h.presenter,
		Journal:   h.journal,
		Now:       h.clock,
	})
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

// run starts Run in the background and waits for the sampler to start.
func (h *harness) run(t *testing.T, ctx context.Context, task string) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- h.monitor.Run(ctx, task) }()

	select {
	case <-h.sampler.started:
	case <-time.After(time.Second):
		t.Fatal("sampler was not started")
	}
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func youtube() model.ContextSnapshot {
	return model.ContextSnapshot{
		AppName:  "Safari",
		BundleID: "com.apple.Safari",
		Title:    "Top 10 Fails",
		URL:      normalize.NormalizeURL("https://youtube.com/watch?v=x"),
		Category: model.CategoryVideo,
	}
}

func TestMonitor_OffTaskFiresLocalNudge(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := h.run(t, ctx, "leetcode")

	for range 3 {
		h.advance(time.Second)
		h.sampler.emit(youtube())
	}

	nudges := h.presenter.Nudges()
	require.Len(t, nudges, 1)
	assert.Contains(t, nudges[0], "leetcode")
	assert.Equal(t, model.VerdictOffTask, h.engine.State().Verdict)

	h.advance(time.Second)
	h.sampler.emit(youtube())
	assert.Len(t, h.presenter.Nudges(), 1, "cooldown holds the next nudge")

	h.journal.mu.Lock()
	require.Len(t, h.journal.interventions, 1)
	n := h.journal.interventions[0]
	h.journal.mu.Unlock()
	assert.Equal(t, model.NudgeSourceLocal, n.Source)
	assert.Equal(t, "youtube.com", n.Host)
	assert.Equal(t, "Safari", n.AppName)
	assert.Equal(t, h.session.State().SessionID, n.SessionID)

	assert.Equal(t, []model.Verdict{
		model.VerdictOffTaskCandidate,
		model.VerdictOffTaskCandidate,
		model.VerdictOffTask,
		model.VerdictOffTaskCandidate,
	}, h.presenter.verdicts)

	cancel()
	require.NoError(t, waitDone(t, done))
}

func TestMonitor_BrowserSwitchDoesNotNudgeBeforeURL(t *testing.T) {
	h := newHarnessWithScorer(t, model.ScorerConfig{Grace: 0, Persistence: 1, Cooldown: 45 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := h.run(t, ctx, "leetcode")

	h.advance(time.Second)
	h.sampler.emit(model.ContextSnapshot{
		AppName:    "Safari",
		BundleID:   "com.apple.Safari",
		Title:      "Problems",
		Category:   model.CategoryOther,
		URLPending: true,
	})
	assert.Empty(t, h.presenter.Nudges())
	assert.Equal(t, 0, h.engine.State().OffCount)

	h.advance(time.Second)
	h.sampler.emit(model.ContextSnapshot{
		AppName:  "Safari",
		BundleID: "com.apple.Safari",
		Title:    "Problems",
		URL:      normalize.NormalizeURL("https://leetcode.com/problems/two-sum/"),
		Category: model.CategoryCoding,
	})
	assert.Empty(t, h.presenter.Nudges())
	assert.Equal(t, model.VerdictOnTask, h.engine.State().Verdict)

	cancel()
	require.NoError(t, waitDone(t, done))
}

func TestMonitor_PresenterStopEndsRun(t *testing.T) {
	h := newHarness(t)

	done := h.run(t, context.Background(), "leetcode")
	id := h.session.State().SessionID
	require.NotEmpty(t, id)

	h.advance(time.Second)
	h.sampler.emit(youtube())
	assert.Equal(t, 1, h.engine.State().OffCount)

	h.presenter.stop()
	require.NoError(t, waitDone(t, done))

	assert.False(t, h.session.State().Active())
	assert.Equal(t, model.VerdictUnknown, h.engine.State().Verdict)
	assert.Equal(t, 0, h.engine.State().OffCount)
	assert.Equal(t, 1, h.sampler.stops)
	assert.Equal(t, []string{id}, h.journal.started)
	assert.Equal(t, []string{id}, h.journal.ended)
	assert.Equal(t, 2, h.resetter.resets, "reset on start and on stop")
	require.Len(t, h.presenter.sessions, 2)
	assert.True(t, h.presenter.sessions[0].Active())
	assert.False(t, h.presenter.sessions[1].Active())

	h.sampler.emit(youtube())
	assert.Empty(t, h.presenter.Nudges(), "nothing is scored after stop")
}

func TestMonitor_ContextCancelStopsSession(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := h.run(t, ctx, "write report")
	cancel()

	require.NoError(t, waitDone(t, done))
	assert.False(t, h.session.State().Active())
	assert.Len(t, h.journal.ended, 1)
}

func TestMonitor_EmptyTask(t *testing.T) {
	h := newHarness(t)

	err := h.monitor.Run(context.Background(), "   ")
	assert.ErrorIs(t, err, session.ErrEmptyTask)
	assert.Zero(t, h.sampler.starts)
}

func TestMonitor_JournalFailureDoesNotBlockNudges(t *testing.T) {
	h := newHarness(t)
	h.journal.err = errors.New("disk full")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := h.run(t, ctx, "leetcode")
	for range 3 {
		h.advance(time.Second)
		h.sampler.emit(youtube())
	}

	assert.Len(t, h.presenter.Nudges(), 1)

	cancel()
	require.NoError(t, waitDone(t, done))
}

func TestNotifier(t *testing.T) {
	presenter := &recordingPresenter{}
	journal := &recordingJournal{}
	n := NewNotifier(presenter, journal, nil)

	n.Notify(model.Nudge{SessionID: "s1", Source: model.NudgeSourceJudgment, Message: ""})
	n.Notify(model.Nudge{SessionID: "s1", Source: model.NudgeSourceJudgment, Message: "Close the tab."})

	assert.Equal(t, []string{"Close the tab."}, presenter.Nudges())
	require.Len(t, journal.interventions, 1)
	assert.Equal(t, model.NudgeSourceJudgment, journal.interventions[0].Source)

	NewNotifier(nil, nil, nil).Notify(model.Nudge{Message: "no presenter"})
}
