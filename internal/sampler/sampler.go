// Package sampler polls the desktop for foreground context and turns it into
// normalized snapshots.
package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
	"github.com/Veraticus/the-focus-must-flow/internal/normalize"
)

// Polling bounds.
const (
	DefaultInterval = time.Second
	MinInterval     = 250 * time.Millisecond
	MaxInterval     = 10 * time.Second
)

// Config controls the polling loop.
type Config struct {
	Interval time.Duration
	OCREvery int // polls between screen text reads; 0 disables them
}

// Handler receives each snapshot on the polling goroutine.
type Handler func(model.ContextSnapshot)

// signal is the latest applied result of a background probe.
type signal struct {
	value  string
	seq    uint64
	ok     bool
	landed bool
}

// Sampler runs the polling loop. App and title probes are read inline on each
// tick; URL and screen text probes run on background workers and their results
// are picked up by the following poll.
type Sampler struct {
	probes   Probes
	catalog  *normalize.Catalog
	logger   *slog.Logger
	now      func() time.Time
	baseCtx  context.Context
	parent   context.Context
	handler  Handler
	cancel   context.CancelFunc
	loopDone chan struct{}
	bundle   string
	url      signal
	text     signal
	cfg      Config
	workers  sync.WaitGroup
	gen      uint64
	seq      uint64
	ticks    uint64
	mu       sync.Mutex
	urlBusy  bool
	textBusy bool
}

// New creates a stopped sampler. A nil catalog uses the built-in host table.
func New(probes Probes, catalog *normalize.Catalog, cfg Config, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	if catalog == nil {
		catalog = normalize.NewCatalog(nil, logger)
	}
	return &Sampler{
		probes:  probes,
		catalog: catalog,
		cfg:     ClampConfig(cfg),
		logger:  logger,
		now:     time.Now,
		baseCtx: context.Background(),
	}
}

// ClampConfig bounds the interval and rejects negative OCR cadences.
func ClampConfig(cfg Config) Config {
	switch {
	case cfg.Interval <= 0:
		cfg.Interval = DefaultInterval
	case cfg.Interval < MinInterval:
		cfg.Interval = MinInterval
	case cfg.Interval > MaxInterval:
		cfg.Interval = MaxInterval
	}
	if cfg.OCREvery < 0 {
		cfg.OCREvery = 0
	}
	return cfg
}

// Start begins polling, restarting the loop if it is already running. The
// handler is invoked once per tick, starting immediately.
func (s *Sampler) Start(ctx context.Context, handler Handler) {
	s.Stop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.baseCtx = context.WithoutCancel(ctx)
	s.parent = ctx
	s.handler = handler
	s.cancel = cancel
	s.loopDone = done
	s.resetSignalsLocked()
	interval := s.cfg.Interval
	s.mu.Unlock()

	s.logger.Debug("sampler started", "interval", interval, "generation", gen)

	go s.loop(loopCtx, gen, interval, handler, done)
}

// Stop ends the polling loop and waits for it to exit. Background probes
// still running are not cancelled; their results are discarded.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.loopDone
	s.cancel, s.loopDone = nil, nil
	if cancel != nil {
		s.gen++
		s.resetSignalsLocked()
	}
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("sampler stopped")
}

// Reconfigure applies cfg. A running loop is restarted when the interval changes.
func (s *Sampler) Reconfigure(cfg Config) {
	cfg = ClampConfig(cfg)

	s.mu.Lock()
	restart := s.cancel != nil && cfg.Interval != s.cfg.Interval
	s.cfg = cfg
	parent, handler := s.parent, s.handler
	s.mu.Unlock()

	if restart {
		s.logger.Debug("sampler interval changed", "interval", cfg.Interval)
		s.Start(parent, handler)
	}
}

// Close stops the loop and waits for outstanding background probes.
func (s *Sampler) Close() error {
	s.Stop()
	s.workers.Wait()
	return nil
}

// Running reports whether the polling loop is active.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Sampler) loop(ctx context.Context, gen uint64, interval time.Duration, handler Handler, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if snap, ok := s.sample(ctx, gen); ok && handler != nil {
			handler(snap)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sample takes one snapshot outside the polling loop.
func (s *Sampler) Sample(ctx context.Context) model.ContextSnapshot {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	snap, _ := s.sample(ctx, gen)
	return snap
}

func (s *Sampler) sample(ctx context.Context, gen uint64) (model.ContextSnapshot, bool) {
	appValue, _ := read(ctx, s.probes.App)
	appName, bundleID := SplitApp(appValue)
	rawTitle, _ := read(ctx, s.probes.Title)
	browser := normalize.IsBrowser(appName, bundleID)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return model.ContextSnapshot{}, false
	}
	s.seq++
	s.ticks++
	seq := s.seq
	if bundleID != s.bundle {
		// Results requested before the switch are stale.
		s.bundle = bundleID
		s.url = signal{seq: seq - 1}
		s.text = signal{seq: seq - 1}
	}

	var rawURL string
	if browser && s.url.ok {
		rawURL = s.url.value
	}
	urlPending := browser && s.probes.URL != nil && !s.url.landed
	screenText := s.text.value

	fetchURL := browser && s.probes.URL != nil && !s.urlBusy
	if fetchURL {
		s.urlBusy = true
	}
	fetchText := s.probes.ScreenText != nil && s.cfg.OCREvery > 0 &&
		(s.ticks-1)%uint64(s.cfg.OCREvery) == 0 && !s.textBusy
	if fetchText {
		s.textBusy = true
	}
	baseCtx := s.baseCtx
	s.mu.Unlock()

	if fetchURL {
		s.workers.Add(1)
		go s.fetch(baseCtx, "url", s.probes.URL, gen, seq, bundleID)
	}
	if fetchText {
		s.workers.Add(1)
		go s.fetch(baseCtx, "screen_text", s.probes.ScreenText, gen, seq, bundleID)
	}

	parsed := normalize.NormalizeURL(rawURL)
	category := model.CategoryOther
	if parsed != nil {
		category = s.catalog.Categorize(parsed.Host, parsed.Path)
	}

	return model.ContextSnapshot{
		CapturedAt: s.now(),
		AppName:    appName,
		BundleID:   bundleID,
		RawTitle:   rawTitle,
		Title:      normalize.NormalizeTitle(appName, bundleID, rawTitle),
		RawURL:     rawURL,
		URL:        parsed,
		Category:   category,
		URLPending: urlPending,
		ScreenText: screenText,
		Seq:        seq,
	}, true
}

// fetch runs a background probe and applies its result unless the sampler
// restarted, the foreground app changed, or a newer result already landed.
func (s *Sampler) fetch(ctx context.Context, kind string, probe Probe, gen, seq uint64, bundleID string) {
	defer s.workers.Done()

	value, ok := probe.Read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, busy := &s.url, &s.urlBusy
	if kind == "screen_text" {
		slot, busy = &s.text, &s.textBusy
	}

	switch {
	case gen != s.gen:
		s.logger.Debug("discarding probe result", "probe", kind, "reason", "sampler restarted", "seq", seq)
		return
	case bundleID != s.bundle:
		*busy = false
		s.logger.Debug("discarding probe result", "probe", kind, "reason", "foreground changed", "seq", seq)
		return
	case seq <= slot.seq:
		*busy = false
		s.logger.Debug("discarding probe result", "probe", kind, "reason", "superseded", "seq", seq)
		return
	}

	*busy = false
	*slot = signal{value: value, seq: seq, ok: ok, landed: true}
}

func (s *Sampler) resetSignalsLocked() {
	s.bundle = ""
	s.url = signal{}
	s.text = signal{}
	s.urlBusy = false
	s.textBusy = false
	s.ticks = 0
}

func read(ctx context.Context, p Probe) (string, bool) {
	if p == nil {
		return "", false
	}
	return p.Read(ctx)
}
