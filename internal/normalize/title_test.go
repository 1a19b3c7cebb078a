package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		appName  string
		bundleID string
		raw      string
		want     string
	}{
		{
			name:    "site suffix with em dash",
			appName: "Safari",
			raw:     "Top 10 Fails — YouTube",
			want:    "Top 10 Fails",
		},
		{
			name:    "app suffix with hyphen",
			appName: "Google Chrome",
			raw:     "Two Sum - LeetCode - Google Chrome",
			want:    "Two Sum - LeetCode",
		},
		{
			name:    "site name that is not the app is kept",
			appName: "Safari",
			raw:     "Two Sum - LeetCode",
			want:    "Two Sum - LeetCode",
		},
		{
			name:     "alias resolved through bundle id",
			appName:  "",
			bundleID: "com.google.Chrome",
			raw:      "Inbox | Chrome",
			want:     "Inbox",
		},
		{
			name:    "pipe separator with app name",
			appName: "Firefox",
			raw:     "MDN Web Docs | Mozilla Firefox",
			want:    "MDN Web Docs",
		},
		{
			name:    "middle dot separator",
			appName: "Arc",
			raw:     "Pull requests · Arc",
			want:    "Pull requests",
		},
		{
			name:    "unknown suffix is kept",
			appName: "Safari",
			raw:     "Design doc - Draft",
			want:    "Design doc - Draft",
		},
		{
			name:    "whitespace collapsed",
			appName: "Terminal",
			raw:     "  zsh   —   ~/src  ",
			want:    "zsh — ~/src",
		},
		{
			name:    "title that is only a suffix is kept",
			appName: "Safari",
			raw:     "YouTube",
			want:    "YouTube",
		},
		{
			name: "empty title",
			raw:  "   ",
			want: "",
		},
		{
			name:    "native app strips its own name",
			appName: "Xcode",
			raw:     "Project.swift — Xcode",
			want:    "Project.swift",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTitle(tt.appName, tt.bundleID, tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeTitle(tt.appName, tt.bundleID, got), "normalizing twice must be stable")
		})
	}
}

func TestIsBrowser(t *testing.T) {
	assert.True(t, IsBrowser("Safari", ""))
	assert.True(t, IsBrowser("", "com.google.Chrome"))
	assert.True(t, IsBrowser("Firefox", "org.mozilla.firefox"))
	assert.False(t, IsBrowser("Visual Studio Code", "com.microsoft.VSCode"))
	assert.False(t, IsBrowser("", ""))
}
