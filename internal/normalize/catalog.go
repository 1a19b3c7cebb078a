package normalize

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
	"gopkg.in/yaml.v3"
)

// defaultCategories is the built-in host → category table.
var defaultCategories = map[string]model.TopicCategory{
	// coding
	"github.com":        model.CategoryCoding,
	"gitlab.com":        model.CategoryCoding,
	"bitbucket.org":     model.CategoryCoding,
	"stackoverflow.com": model.CategoryCoding,
	"stackexchange.com": model.CategoryCoding,
	"leetcode.com":      model.CategoryCoding,
	"hackerrank.com":    model.CategoryCoding,
	"codeforces.com":    model.CategoryCoding,
	"replit.com":        model.CategoryCoding,
	"codesandbox.io":    model.CategoryCoding,
	"pkg.go.dev":        model.CategoryCoding,
	"go.dev":            model.CategoryCoding,
	"npmjs.com":         model.CategoryCoding,
	"pypi.org":          model.CategoryCoding,
	"crates.io":         model.CategoryCoding,
	"localhost":         model.CategoryCoding,
	"127.0.0.1":         model.CategoryCoding,
	// docs
	"developer.mozilla.org": model.CategoryDocs,
	"docs.python.org":       model.CategoryDocs,
	"readthedocs.io":        model.CategoryDocs,
	"docs.rs":               model.CategoryDocs,
	"devdocs.io":            model.CategoryDocs,
	"developer.apple.com":   model.CategoryDocs,
	"learn.microsoft.com":   model.CategoryDocs,
	"wikipedia.org":         model.CategoryDocs,
	// learning
	"coursera.org":     model.CategoryLearning,
	"udemy.com":        model.CategoryLearning,
	"edx.org":          model.CategoryLearning,
	"khanacademy.org":  model.CategoryLearning,
	"duolingo.com":     model.CategoryLearning,
	"brilliant.org":    model.CategoryLearning,
	"exercism.org":     model.CategoryLearning,
	"freecodecamp.org": model.CategoryLearning,
	// video
	"youtube.com":    model.CategoryVideo,
	"youtu.be":       model.CategoryVideo,
	"netflix.com":    model.CategoryVideo,
	"twitch.tv":      model.CategoryVideo,
	"vimeo.com":      model.CategoryVideo,
	"hulu.com":       model.CategoryVideo,
	"disneyplus.com": model.CategoryVideo,
	"primevideo.com": model.CategoryVideo,
	// social
	"x.com":                model.CategorySocial,
	"twitter.com":          model.CategorySocial,
	"facebook.com":         model.CategorySocial,
	"instagram.com":        model.CategorySocial,
	"reddit.com":           model.CategorySocial,
	"tiktok.com":           model.CategorySocial,
	"linkedin.com":         model.CategorySocial,
	"threads.net":          model.CategorySocial,
	"bsky.app":             model.CategorySocial,
	"mastodon.social":      model.CategorySocial,
	"news.ycombinator.com": model.CategorySocial,
	// search
	"duckduckgo.com":   model.CategorySearch,
	"kagi.com":         model.CategorySearch,
	"search.brave.com": model.CategorySearch,
	// email
	"mail.google.com":    model.CategoryEmail,
	"outlook.live.com":   model.CategoryEmail,
	"outlook.office.com": model.CategoryEmail,
	"mail.yahoo.com":     model.CategoryEmail,
	"proton.me":          model.CategoryEmail,
	"fastmail.com":       model.CategoryEmail,
	// messaging
	"slack.com":           model.CategoryMessaging,
	"discord.com":         model.CategoryMessaging,
	"web.whatsapp.com":    model.CategoryMessaging,
	"messenger.com":       model.CategoryMessaging,
	"web.telegram.org":    model.CategoryMessaging,
	"teams.microsoft.com": model.CategoryMessaging,
	// shopping
	"amazon.com":     model.CategoryShopping,
	"ebay.com":       model.CategoryShopping,
	"etsy.com":       model.CategoryShopping,
	"aliexpress.com": model.CategoryShopping,
	"walmart.com":    model.CategoryShopping,
	"target.com":     model.CategoryShopping,
	"bestbuy.com":    model.CategoryShopping,
	// news
	"nytimes.com":     model.CategoryNews,
	"cnn.com":         model.CategoryNews,
	"bbc.com":         model.CategoryNews,
	"bbc.co.uk":       model.CategoryNews,
	"theguardian.com": model.CategoryNews,
	"reuters.com":     model.CategoryNews,
	"news.google.com": model.CategoryNews,
	"theverge.com":    model.CategoryNews,
	// music
	"open.spotify.com":  model.CategoryMusic,
	"spotify.com":       model.CategoryMusic,
	"music.apple.com":   model.CategoryMusic,
	"soundcloud.com":    model.CategoryMusic,
	"music.youtube.com": model.CategoryMusic,
	"bandcamp.com":      model.CategoryMusic,
	// gaming
	"steampowered.com": model.CategoryGaming,
	"epicgames.com":    model.CategoryGaming,
	"chess.com":        model.CategoryGaming,
	"lichess.org":      model.CategoryGaming,
	"roblox.com":       model.CategoryGaming,
	"ign.com":          model.CategoryGaming,
	// finance
	"robinhood.com":     model.CategoryFinance,
	"coinbase.com":      model.CategoryFinance,
	"finance.yahoo.com": model.CategoryFinance,
	"paypal.com":        model.CategoryFinance,
	"chase.com":         model.CategoryFinance,
	// cloud
	"console.aws.amazon.com":   model.CategoryCloud,
	"aws.amazon.com":           model.CategoryCloud,
	"console.cloud.google.com": model.CategoryCloud,
	"portal.azure.com":         model.CategoryCloud,
	"vercel.com":               model.CategoryCloud,
	"netlify.com":              model.CategoryCloud,
	"cloudflare.com":           model.CategoryCloud,
	"heroku.com":               model.CategoryCloud,
	"fly.io":                   model.CategoryCloud,
	// ai
	"chatgpt.com":       model.CategoryAI,
	"chat.openai.com":   model.CategoryAI,
	"claude.ai":         model.CategoryAI,
	"gemini.google.com": model.CategoryAI,
	"perplexity.ai":     model.CategoryAI,
	"huggingface.co":    model.CategoryAI,
	// productivity
	"docs.google.com":     model.CategoryProductivity,
	"sheets.google.com":   model.CategoryProductivity,
	"calendar.google.com": model.CategoryProductivity,
	"notion.so":           model.CategoryProductivity,
	"linear.app":          model.CategoryProductivity,
	"atlassian.net":       model.CategoryProductivity,
	"trello.com":          model.CategoryProductivity,
	"asana.com":           model.CategoryProductivity,
	"figma.com":           model.CategoryProductivity,
	"miro.com":            model.CategoryProductivity,
	"overleaf.com":        model.CategoryProductivity,
	// storage
	"drive.google.com":  model.CategoryStorage,
	"dropbox.com":       model.CategoryStorage,
	"icloud.com":        model.CategoryStorage,
	"onedrive.live.com": model.CategoryStorage,
	"box.com":           model.CategoryStorage,
}

// searchHosts are general-purpose engines whose category depends on the path.
var searchHosts = map[string]struct{}{
	"google.com": {},
	"bing.com":   {},
	"yahoo.com":  {},
}

// Catalog classifies URL hosts into topic categories.
type Catalog struct {
	table map[string]model.TopicCategory
}

// NewCatalog builds a catalog from the built-in table merged with overrides.
// Override entries with unknown category names are skipped and logged.
func NewCatalog(overrides map[string]string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}

	table := make(map[string]model.TopicCategory, len(defaultCategories)+len(overrides))
	for host, c := range defaultCategories {
		table[host] = c
	}

	for host, name := range overrides {
		c, ok := model.ParseTopicCategory(name)
		if !ok {
			logger.Warn("ignoring catalog override with unknown category",
				"host", host,
				"category", name)
			continue
		}
		key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
		if key == "" {
			continue
		}
		table[key] = c
	}

	return &Catalog{table: table}
}

// Categorize returns the topic category for a normalized host and path.
func (c *Catalog) Categorize(host, path string) model.TopicCategory {
	host = strings.ToLower(host)
	if host == "" {
		return model.CategoryOther
	}

	if cat, ok := c.table[host]; ok {
		return cat
	}

	labels := strings.Split(host, ".")
	for i := 1; len(labels)-i >= 2; i++ {
		if cat, ok := c.table[strings.Join(labels[i:], ".")]; ok {
			return cat
		}
	}

	switch {
	case IsVideoHost(host):
		return model.CategoryVideo
	case isSearchHost(host):
		if strings.HasPrefix(path, "/search") {
			return model.CategorySearch
		}
		return model.CategoryProductivity
	}

	return model.CategoryOther
}

// IsVideoHost reports whether host belongs to a known video-sharing site.
func IsVideoHost(host string) bool {
	return strings.Contains(host, "youtube") || strings.Contains(host, "youtu.be")
}

func isSearchHost(host string) bool {
	if _, ok := searchHosts[host]; ok {
		return true
	}
	// Regional Google domains such as google.co.uk or google.de.
	return strings.HasPrefix(host, "google.")
}

// LoadOverrides reads a YAML (or JSON) mapping of host to category name.
// Entries whose value is not a string are skipped; category names are
// validated later by NewCatalog.
func LoadOverrides(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog overrides: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog overrides: %w", err)
	}

	overrides := make(map[string]string, len(raw))
	for host, value := range raw {
		if name, ok := value.(string); ok {
			overrides[host] = name
		}
	}
	return overrides, nil
}
