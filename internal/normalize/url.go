package normalize

import (
	"net/url"
	"strings"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

// keptQueryParams lists, per host, the only query parameters that survive
// normalization. Everything else, tracking parameters included, is dropped.
var keptQueryParams = map[string][]string{
	"youtube.com":      {"v", "t", "list"},
	"m.youtube.com":    {"v", "t", "list"},
	"youtu.be":         {"t"},
	"google.com":       {"q"},
	"bing.com":         {"q"},
	"duckduckgo.com":   {"q"},
	"kagi.com":         {"q"},
	"search.brave.com": {"q"},
	"github.com":       {"q", "tab"},
}

// NormalizeURL parses raw into its canonical form. It returns nil for empty or
// unparseable input, which callers treat as "no URL".
func NormalizeURL(raw string) *model.ParsedURL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ".")
	if host == "" || strings.ContainsAny(host, " \t") {
		return nil
	}

	path := cleanPath(u.EscapedPath())
	short := shortPath(path)
	query := keptQuery(host, u.Query())

	canonical := host + path
	if query != "" {
		canonical += "?" + query
	}
	display := host
	if short != "/" {
		display += short
	}

	return &model.ParsedURL{
		Host:      host,
		Path:      path,
		ShortPath: short,
		Query:     query,
		Canonical: canonical,
		Display:   display,
	}
}

// cleanPath collapses duplicate slashes and strips one trailing slash; the
// root path stays "/".
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// shortPath keeps at most the first two path segments.
func shortPath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	if len(segments) == 1 && segments[0] == "" {
		return "/"
	}
	if len(segments) > 2 {
		segments = segments[:2]
	}
	return "/" + strings.Join(segments, "/")
}

func keptQuery(host string, values url.Values) string {
	allowed, ok := keptQueryParams[host]
	if !ok || len(values) == 0 {
		return ""
	}

	kept := url.Values{}
	for _, key := range allowed {
		if v := values.Get(key); v != "" {
			kept.Set(key, v)
		}
	}
	if len(kept) == 0 {
		return ""
	}

	return kept.Encode()
}
