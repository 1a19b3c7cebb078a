// Package nudge writes local intervention messages in the user's chosen tone.
package nudge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

var templates = map[model.Tone][]string{
	model.ToneGentle: {
		"Hey, looks like you drifted a little. Ready to get back to %s?",
		"Small detour spotted. %s is waiting for you.",
		"No pressure, but %s would love some attention.",
	},
	model.ToneDirect: {
		"Off task. Back to %s.",
		"This isn't %s. Close it and refocus.",
		"You said %s. Do that now.",
	},
	model.TonePlayful: {
		"Plot twist: %s is still not done. Shall we?",
		"The internet will still be here later. %s, on the other hand...",
		"Caught you! %s called, it misses you.",
	},
}

var emojis = map[model.Tone]string{
	model.ToneGentle:  "🌱",
	model.ToneDirect:  "⏰",
	model.TonePlayful: "🙃",
}

// Generator composes nudges, rotating through the templates of each tone.
type Generator struct {
	next map[model.Tone]int
	mu   sync.Mutex
}

// NewGenerator creates a generator starting at the first template of every tone.
func NewGenerator() *Generator {
	return &Generator{next: make(map[model.Tone]int)}
}

// Compose writes a nudge about task. The reason, when present, is appended
// in parentheses.
func (g *Generator) Compose(prefs model.Preferences, task, reason string) string {
	tone := model.ParseTone(string(prefs.Tone))
	list := templates[tone]

	g.mu.Lock()
	idx := g.next[tone] % len(list)
	g.next[tone] = idx + 1
	g.mu.Unlock()

	subject := strings.TrimSpace(task)
	if subject == "" {
		subject = "your task"
	} else {
		subject = fmt.Sprintf("%q", subject)
	}

	msg := fmt.Sprintf(list[idx], subject)
	if r := strings.TrimSpace(reason); r != "" {
		msg += " (" + r + ")"
	}
	if persona := strings.TrimSpace(prefs.Persona); persona != "" {
		msg = persona + ": " + msg
	}
	if prefs.Emoji {
		msg += " " + emojis[tone]
	}
	return msg
}
