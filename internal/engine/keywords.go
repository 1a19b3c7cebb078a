package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {}, "this": {},
	"these": {}, "those": {}, "into": {}, "onto": {}, "about": {}, "over": {}, "under": {},
	"then": {}, "than": {}, "just": {}, "some": {}, "work": {}, "working": {}, "task": {},
	"tasks": {}, "todo": {}, "finish": {}, "doing": {}, "make": {}, "get": {}, "have": {},
	"has": {}, "are": {}, "was": {}, "were": {}, "will": {}, "would": {}, "should": {},
	"could": {}, "can": {}, "not": {}, "but": {}, "all": {}, "any": {}, "our": {},
	"out": {}, "you": {}, "your": {}, "its": {}, "let": {}, "lets": {},
}

// Keywords extracts the matchable terms of a task title: lower-cased
// alphanumeric tokens of three or more characters that are not stop words,
// plus a hyphen-free variant of every hyphenated word.
func Keywords(title string) []string {
	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	seen := make(map[string]struct{})
	var keywords []string
	add := func(token string) {
		if utf8.RuneCountInString(token) < 3 {
			return
		}
		if _, stop := stopWords[token]; stop {
			return
		}
		if _, dup := seen[token]; dup {
			return
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
	}

	for _, word := range words {
		if strings.Contains(word, "-") {
			add(strings.ReplaceAll(word, "-", ""))
		}
		for _, token := range strings.Split(word, "-") {
			add(token)
		}
	}
	return keywords
}

// matchKeyword returns the first keyword contained in any of the haystacks.
func matchKeyword(keywords []string, haystacks ...string) (string, bool) {
	for _, kw := range keywords {
		for _, h := range haystacks {
			if h != "" && strings.Contains(h, kw) {
				return kw, true
			}
		}
	}
	return "", false
}
