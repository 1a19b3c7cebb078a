// Package model defines the values passed between the sampler, the classification
// engine and the escalation coordinator.
package model

import (
	"strings"
	"time"
)

// TopicCategory is the coarse topic of a URL host.
type TopicCategory string

// Topic categories.
const (
	CategoryCoding       TopicCategory = "coding"
	CategoryDocs         TopicCategory = "docs"
	CategoryLearning     TopicCategory = "learning"
	CategoryVideo        TopicCategory = "video"
	CategorySocial       TopicCategory = "social"
	CategorySearch       TopicCategory = "search"
	CategoryEmail        TopicCategory = "email"
	CategoryMessaging    TopicCategory = "messaging"
	CategoryShopping     TopicCategory = "shopping"
	CategoryNews         TopicCategory = "news"
	CategoryMusic        TopicCategory = "music"
	CategoryGaming       TopicCategory = "gaming"
	CategoryFinance      TopicCategory = "finance"
	CategoryCloud        TopicCategory = "cloud"
	CategoryAI           TopicCategory = "ai"
	CategoryProductivity TopicCategory = "productivity"
	CategoryStorage      TopicCategory = "storage"
	CategoryOther        TopicCategory = "other"
)

var allCategories = []TopicCategory{
	CategoryCoding, CategoryDocs, CategoryLearning, CategoryVideo, CategorySocial,
	CategorySearch, CategoryEmail, CategoryMessaging, CategoryShopping, CategoryNews,
	CategoryMusic, CategoryGaming, CategoryFinance, CategoryCloud, CategoryAI,
	CategoryProductivity, CategoryStorage, CategoryOther,
}

// ParseTopicCategory maps a category name to a TopicCategory.
// It returns false for names outside the fixed set.
func ParseTopicCategory(name string) (TopicCategory, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, c := range allCategories {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// ParsedURL is a normalized browser URL.
type ParsedURL struct {
	Host      string // lower-cased, without "www."
	Path      string // collapsed slashes, no trailing slash except root
	ShortPath string // at most the first two path segments
	Query     string // retained query parameters only, encoded
	Canonical string // host + path (+ "?" + query when present)
	Display   string // host + short path
}

// ContextSnapshot is one poll's worth of normalized environmental signals.
// Snapshots are values and are never mutated after the sampler produces them.
type ContextSnapshot struct {
	CapturedAt time.Time
	AppName    string
	BundleID   string
	RawTitle   string
	Title      string // normalized window title
	RawURL     string
	URL        *ParsedURL // nil when no URL is available or parseable
	URLPending bool       // browser in front and its tab URL has not been read yet
	Category   TopicCategory
	ScreenText string
	Seq        uint64
}

// Host returns the normalized URL host, or "" without a URL.
func (s ContextSnapshot) Host() string {
	if s.URL == nil {
		return ""
	}
	return s.URL.Host
}

// Path returns the normalized URL path, or "" without a URL.
func (s ContextSnapshot) Path() string {
	if s.URL == nil {
		return ""
	}
	return s.URL.Path
}

// Display returns the URL display string, or "" without a URL.
func (s ContextSnapshot) Display() string {
	if s.URL == nil {
		return ""
	}
	return s.URL.Display
}
