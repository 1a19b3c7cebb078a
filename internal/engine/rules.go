package engine

import (
	"strings"

	"github.com/Veraticus/the-focus-must-flow/internal/model"
)

// devApps are substrings of application names that count as development tools.
var devApps = []string{
	"code", "intellij", "goland", "pycharm", "webstorm", "clion", "rider", "rubymine",
	"android studio", "terminal", "iterm", "warp", "ghostty", "alacritty", "kitty",
	"wezterm", "vim", "emacs", "sublime", "cursor", "zed", "nova", "tower", "postman",
}

// workCategories are topics treated as on-task unless a distractor marker shows up.
var workCategories = map[model.TopicCategory]struct{}{
	model.CategoryCoding:       {},
	model.CategoryDocs:         {},
	model.CategoryProductivity: {},
	model.CategoryAI:           {},
	model.CategoryCloud:        {},
	model.CategorySearch:       {},
	model.CategoryStorage:      {},
}

// leisureCategories are topics that are off-task unless they mention the task.
var leisureCategories = map[model.TopicCategory]struct{}{
	model.CategorySocial:   {},
	model.CategoryVideo:    {},
	model.CategoryMusic:    {},
	model.CategoryGaming:   {},
	model.CategoryShopping: {},
	model.CategoryNews:     {},
}

// distractorMarkers flag feed-style pages even on otherwise productive hosts.
var distractorMarkers = []string{
	"trending", "shorts", "for you", "reels", "explore", "watch later", "/feed",
}

func isDevApp(appName string) bool {
	name := strings.ToLower(appName)
	if name == "" {
		return false
	}
	for _, d := range devApps {
		if strings.Contains(name, d) {
			return true
		}
	}
	return false
}

func hasDistractor(haystacks ...string) bool {
	for _, h := range haystacks {
		for _, m := range distractorMarkers {
			if strings.Contains(h, m) {
				return true
			}
		}
	}
	return false
}
