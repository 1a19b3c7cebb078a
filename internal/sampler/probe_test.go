package sampler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecProbe(t *testing.T) {
	tests := []struct {
		name    string
		command string
		timeout time.Duration
		want    string
		wantOK  bool
	}{
		{name: "trims output", command: "printf '  Safari|com.apple.Safari\\n'", want: "Safari|com.apple.Safari", wantOK: true},
		{name: "non-zero exit", command: "echo denied; exit 1"},
		{name: "empty output", command: "true"},
		{name: "timeout", command: "sleep 5", timeout: 50 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewExecProbe(tt.name, tt.command, tt.timeout, nil)
			got, ok := p.Read(context.Background())
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewExecProbe_EmptyCommand(t *testing.T) {
	p := NewExecProbe("title", "  ", 0, nil)
	assert.Nil(t, p)

	got, ok := p.Read(context.Background())
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestProbeFunc(t *testing.T) {
	p := ProbeFunc(func(context.Context) (string, bool) { return "Notes", true })
	got, ok := p.Read(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Notes", got)
}

func TestSplitApp(t *testing.T) {
	name, bundle := SplitApp(" Google Chrome | com.google.Chrome ")
	assert.Equal(t, "Google Chrome", name)
	assert.Equal(t, "com.google.Chrome", bundle)

	name, bundle = SplitApp("Terminal")
	assert.Equal(t, "Terminal", name)
	assert.Empty(t, bundle)
}

func TestActiveTab(t *testing.T) {
	tests := []struct {
		name   string
		tabs   []tab
		want   string
		wantOK bool
	}{
		{name: "no tabs"},
		{
			name:   "focused visible tab wins over earlier targets",
			tabs:   []tab{{url: "https://news.example"}, {url: "https://youtube.com", state: 1}, {url: "https://leetcode.com", state: 3}},
			want:   "https://leetcode.com",
			wantOK: true,
		},
		{
			name:   "visible tab when nothing has focus",
			tabs:   []tab{{url: "https://a.example"}, {url: "https://b.example", state: 1}},
			want:   "https://b.example",
			wantOK: true,
		},
		{
			name:   "first target when state is unknown",
			tabs:   []tab{{url: "https://a.example"}, {url: "https://b.example"}},
			want:   "https://a.example",
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := activeTab(tt.tabs)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCDPTabProbe_Unreachable(t *testing.T) {
	p := NewCDPTabProbe("http://127.0.0.1:1", 200*time.Millisecond, nil)
	defer func() { _ = p.Close() }()

	got, ok := p.Read(context.Background())
	assert.False(t, ok)
	assert.Empty(t, got)
}
