package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

// journalTimeout bounds a single journal write.
const journalTimeout = 2 * time.Second

// Presenter is the user-facing surface.
type Presenter interface {
	ShowNudge(text string)
	OnStop(fn func())
}

// StatusPresenter is optionally implemented by presenters that show session
// and verdict changes.
type StatusPresenter interface {
	ShowSession(state model.TaskState)
	ShowVerdict(verdict model.Verdict, reason string)
}

// Journal records sessions and fired nudges.
type Journal interface {
	StartSession(ctx context.Context, task model.TaskState) error
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
	SaveIntervention(ctx context.Context, n model.Nudge) (int64, error)
}

// Notifier delivers nudges from both the local engine and the judgment
// service to the presenter and the journal.
type Notifier struct {
	presenter Presenter
	journal   Journal
	logger    *slog.Logger
}

// NewNotifier creates a notifier. The journal may be nil.
func NewNotifier(presenter Presenter, journal Journal, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{presenter: presenter, journal: journal, logger: logger}
}

// Notify shows n and journals it. Journal failures are logged only.
func (n *Notifier) Notify(nudge model.Nudge) {
	if nudge.Message == "" {
		n.logger.Debug("empty nudge dropped", "source", nudge.Source)
		return
	}

	n.logger.Info("nudge fired",
		"source", nudge.Source,
		"session_id", nudge.SessionID,
		"app", nudge.AppName,
		"host", nudge.Host,
		"reason", nudge.Reason)

	if n.presenter != nil {
		n.presenter.ShowNudge(nudge.Message)
	}

	if n.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if _, err := n.journal.SaveIntervention(ctx, nudge); err != nil {
		n.logger.Error("failed to journal intervention", "error", err)
	}
}
