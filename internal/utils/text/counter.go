// Package text provides character weighting and line sanitizing helpers
// shared by message composition and the durable store.
package text

import (
	"strings"
	"unicode/utf8"
)

// Weigher measures how much of a platform's length budget a string consumes.
type Weigher func(string) int

// CountRunes counts the number of Unicode characters (runes) in the given text.
// It is the weighting used by platforms that limit posts by characters.
//
// Examples:
//
//	CountRunes("hello")          // returns 5 (ASCII text)
//	CountRunes("hello世界")         // returns 7 (mixed text)
//	CountRunes("")               // returns 0 (empty string)
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// CountWeibo weighs text the way Weibo-style platforms do: every non-ASCII
// rune counts as one unit and every ASCII rune as half a unit, rounded up.
//
//	CountWeibo("abcd")   // returns 2
//	CountWeibo("abc")    // returns 2
//	CountWeibo("世界")     // returns 2
func CountWeibo(text string) int {
	halves := 0
	for _, r := range text {
		if r < utf8.RuneSelf {
			halves++
		} else {
			halves += 2
		}
	}
	return (halves + 1) / 2
}

// WeigherFor returns the Weigher registered under name ("runes" or "weibo").
// Unknown names fall back to CountRunes and report false.
func WeigherFor(name string) (Weigher, bool) {
	switch strings.ToLower(name) {
	case "weibo":
		return CountWeibo, true
	case "runes", "":
		return CountRunes, true
	default:
		return CountRunes, false
	}
}

var lineBreaker = strings.NewReplacer("\t", " ", "\r\n", " ", "\r", " ", "\n", " ")

// SingleLine replaces tab, CR and LF characters with spaces so the value can be
// stored as one field of a tab separated record.
func SingleLine(s string) string {
	return lineBreaker.Replace(s)
}
