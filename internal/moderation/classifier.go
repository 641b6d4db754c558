package moderation

import (
	"strings"
	"unicode"
)

// DefaultBlocklist is the built-in profanity list. It can be replaced or
// extended through configuration.
var DefaultBlocklist = []string{
	"fuck", "shit", "bitch", "asshole", "bastard", "cunt", "dick", "whore",
}

// Classifier flags chat messages containing blocklisted words. Matching is
// case-insensitive and happens in two passes per token: an exact match
// after stripping surrounding punctuation, and a fuzzy match that removes
// every non-alphanumeric rune so obfuscations like "f.u.c.k" still hit.
type Classifier struct {
	blocklist map[string]struct{}
}

// NewClassifier builds a classifier from the given word list. An empty
// list falls back to DefaultBlocklist.
func NewClassifier(words []string) *Classifier {
	if len(words) == 0 {
		words = DefaultBlocklist
	}
	bl := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			bl[w] = struct{}{}
		}
	}
	return &Classifier{blocklist: bl}
}

// Flag reports whether the message contains a blocklisted word.
func (c *Classifier) Flag(message string) bool {
	for _, token := range strings.Fields(message) {
		stripped := strings.ToLower(strings.TrimFunc(token, isPunct))
		if _, ok := c.blocklist[stripped]; ok {
			return true
		}
		if collapsed := collapse(token); collapsed != stripped {
			if _, ok := c.blocklist[collapsed]; ok {
				return true
			}
		}
	}
	return false
}

func isPunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// collapse lowercases the token and drops every non-alphanumeric rune.
func collapse(token string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(token) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
