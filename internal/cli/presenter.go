package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

// ConsolePresenter renders nudges and status changes to a terminal and routes
// stop requests back to whoever registered for them.
type ConsolePresenter struct {
	writer      io.Writer
	now         func() time.Time
	stopFns     []func()
	lastVerdict model.Verdict
	mu          sync.Mutex
	verbose     bool
}

// NewConsolePresenter creates a presenter. In verbose mode every verdict
// change is printed, not just nudges.
func NewConsolePresenter(writer io.Writer, verbose bool) *ConsolePresenter {
	if writer == nil {
		writer = os.Stdout
	}
	return &ConsolePresenter{
		writer:  writer,
		verbose: verbose,
		now:     time.Now,
	}
}

// ShowNudge displays an intervention.
func (p *ConsolePresenter) ShowNudge(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stamp := SubtleStyle.Render(p.now().Format("15:04:05"))
	_, _ = fmt.Fprintf(p.writer, "%s\n%s\n", stamp, FormatNudge(text))
}

// ShowSession announces a session transition.
func (p *ConsolePresenter) ShowSession(state model.TaskState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastVerdict = model.VerdictUnknown
	if state.Active() {
		_, _ = fmt.Fprintln(p.writer, FormatTitle("Focusing on "+BoldStyle.Render(state.Title)))
		return
	}
	_, _ = fmt.Fprintln(p.writer, FormatInfo("Session ended"))
}

// ShowVerdict prints a verdict when it differs from the last one shown.
func (p *ConsolePresenter) ShowVerdict(verdict model.Verdict, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verbose || verdict == p.lastVerdict {
		return
	}
	p.lastVerdict = verdict
	_, _ = fmt.Fprintf(p.writer, "%s %s\n", FormatVerdict(verdict), SubtleStyle.Render(reason))
}

// OnStop registers a callback for user-initiated stops.
func (p *ConsolePresenter) OnStop(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopFns = append(p.stopFns, fn)
}

// RequestStop runs the registered stop callbacks.
func (p *ConsolePresenter) RequestStop() {
	p.mu.Lock()
	fns := append([]func(){}, p.stopFns...)
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
