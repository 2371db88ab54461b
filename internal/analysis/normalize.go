// Package analysis holds the pure delivery-analysis building blocks used by the
// session coordinator: text normalisation, lexicon tables, filler detection,
// per-window metrics, the feedback policy and the end-of-session confidence
// scorer. Nothing in this package performs I/O except the lexicon loader and
// watcher.
package analysis

import (
	"strings"
	"unicode"
)

// Normalize lowercases text, drops every rune that is neither a letter, a number
// nor whitespace, and collapses whitespace runs into single spaces.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokenize returns the words of the normalised form of text.
func Tokenize(text string) []string {
	return strings.Fields(Normalize(text))
}
