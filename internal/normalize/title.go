// Package normalize turns raw window titles and URLs into canonical, comparable
// forms and classifies URL hosts into topic categories. Everything here is pure.
package normalize

import "strings"

// titleSeparators are tried in order when looking for a trailing app or site suffix.
var titleSeparators = []string{" - ", " — ", " – ", " | ", " · "}

// appAliases maps a lower-cased application name to the suffixes that app
// appends to its window titles.
var appAliases = map[string][]string{
	"google chrome":  {"google chrome", "chrome"},
	"chrome":         {"google chrome", "chrome"},
	"chromium":       {"chromium"},
	"safari":         {"safari", "safari technology preview"},
	"firefox":        {"firefox", "mozilla firefox", "firefox developer edition", "firefox nightly"},
	"arc":            {"arc"},
	"microsoft edge": {"microsoft edge", "edge"},
	"brave browser":  {"brave", "brave browser"},
	"opera":          {"opera"},
	"vivaldi":        {"vivaldi"},
}

// siteSuffixes are video site names appended to page titles. Other site names
// stay in the title so they can match task keywords.
var siteSuffixes = []string{"youtube", "netflix", "twitch", "vimeo"}

// NormalizeTitle strips a trailing " - AppName" style suffix naming the
// foreground application, one of its aliases, or a video site, and
// collapses whitespace. Without a matching suffix the squished original is
// returned. Applying it to its own output is a no-op.
func NormalizeTitle(appName, bundleID, rawTitle string) string {
	title := squish(rawTitle)
	if title == "" {
		return ""
	}

	candidates := suffixCandidates(appName, bundleID)
	for {
		stripped, ok := stripSuffix(title, candidates)
		if !ok {
			return title
		}
		title = stripped
	}
}

func suffixCandidates(appName, bundleID string) map[string]struct{} {
	set := make(map[string]struct{}, len(siteSuffixes)+4)
	for _, s := range siteSuffixes {
		set[s] = struct{}{}
	}

	name := strings.ToLower(squish(appName))
	if name != "" {
		set[name] = struct{}{}
		for _, alias := range appAliases[name] {
			set[alias] = struct{}{}
		}
	}
	if b, ok := browserByBundle[strings.ToLower(bundleID)]; ok {
		for _, alias := range appAliases[b] {
			set[alias] = struct{}{}
		}
	}
	return set
}

// stripSuffix removes the last separator-delimited segment when it is a known
// suffix and something non-empty remains in front of it.
func stripSuffix(title string, candidates map[string]struct{}) (string, bool) {
	for _, sep := range titleSeparators {
		idx := strings.LastIndex(title, sep)
		if idx <= 0 {
			continue
		}
		suffix := strings.ToLower(strings.TrimSpace(title[idx+len(sep):]))
		if _, ok := candidates[suffix]; !ok {
			continue
		}
		head := strings.TrimSpace(title[:idx])
		if head == "" {
			continue
		}
		return head, true
	}
	return title, false
}

func squish(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
