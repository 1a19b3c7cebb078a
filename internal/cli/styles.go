// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#7C83FD")
	// SuccessColor marks on-task output.
	SuccessColor = lipgloss.Color("#4ECDC4")
	// WarningColor marks candidates and warnings.
	WarningColor = lipgloss.Color("#FFE66D")
	// ErrorColor marks off-task verdicts and failures.
	ErrorColor = lipgloss.Color("#FF6B6B")
	// InfoColor marks informational messages.
	InfoColor = lipgloss.Color("#95E1D3")
	// SubtleColor marks less prominent text.
	SubtleColor = lipgloss.Color("#666666")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().Foreground(ErrorColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().Bold(true)

	// NudgeStyle frames a nudge.
	NudgeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor).
			Padding(0, 2)

	// LabelStyle aligns key/value labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Width(10)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	FocusIcon   = "🎯"
	NudgeIcon   = "🔔"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle formats a title with the focus icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(FocusIcon + " " + title)
}

// FormatField renders an aligned "label value" line.
func FormatField(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value)
}

// FormatNudge renders a nudge in a bordered box.
func FormatNudge(text string) string {
	return NudgeStyle.Render(BoldStyle.Render(NudgeIcon + " " + text))
}

// FormatVerdict colors a verdict by severity.
func FormatVerdict(v model.Verdict) string {
	switch v {
	case model.VerdictOnTask:
		return SuccessStyle.Render(string(v))
	case model.VerdictOffTaskCandidate:
		return WarningStyle.Render(string(v))
	case model.VerdictOffTask:
		return ErrorStyle.Render(string(v))
	default:
		return SubtleStyle.Render(string(v))
	}
}
