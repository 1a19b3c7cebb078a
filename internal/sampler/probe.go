package sampler

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultProbeTimeout bounds a single probe invocation.
const DefaultProbeTimeout = 2 * time.Second

// Probe reads one environmental signal. It returns false when the signal is
// unavailable; unavailability is not an error.
type Probe interface {
	Read(ctx context.Context) (string, bool)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) (string, bool)

// Read calls f.
func (f ProbeFunc) Read(ctx context.Context) (string, bool) {
	return f(ctx)
}

// Probes groups the signal sources polled by the sampler. Any of them may be nil.
type Probes struct {
	App        Probe // "name|bundle" of the foreground application
	Title      Probe // foreground window title
	URL        Probe // active browser tab URL
	ScreenText Probe // extracted on-screen text
}

// ExecProbe reads a signal by running a shell command.
type ExecProbe struct {
	logger  *slog.Logger
	name    string
	command string
	timeout time.Duration
}

// NewExecProbe creates a probe that runs command with "sh -c". An empty command
// yields a nil probe.
func NewExecProbe(name, command string, timeout time.Duration, logger *slog.Logger) *ExecProbe {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecProbe{
		name:    name,
		command: command,
		timeout: timeout,
		logger:  logger,
	}
}

// Read runs the command and returns its trimmed stdout. A failed, timed out or
// silent command reports the signal as unavailable.
func (p *ExecProbe) Read(ctx context.Context) (string, bool) {
	if p == nil {
		return "", false
	}
	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, "sh", "-c", p.command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		p.logger.Debug("probe unavailable",
			"probe", p.name,
			"error", err,
			"stderr", strings.TrimSpace(stderr.String()))
		return "", false
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", false
	}
	return out, true
}

// SplitApp parses an app probe value of the form "name|bundle".
func SplitApp(value string) (name, bundle string) {
	name, bundle, _ = strings.Cut(value, "|")
	return strings.TrimSpace(name), strings.TrimSpace(bundle)
}
