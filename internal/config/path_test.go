package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("FOCUS_TEST_DIR", "/tmp/focus")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/.local/share/focus/journal.db", want: filepath.Join(home, ".local/share/focus/journal.db")},
		{in: "$FOCUS_TEST_DIR/journal.db", want: "/tmp/focus/journal.db"},
		{in: "/abs/path.db", want: "/abs/path.db"},
		{in: "~other/path", want: "~other/path"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/focus", dir)
}
