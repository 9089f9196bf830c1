package deliver

import (
	"strings"
	"unicode"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/utils/text"
)

// Ellipsis marks text shortened to fit the budget.
const Ellipsis = "..."

// Budget describes a platform's message length limit.
type Budget struct {
	// Max is the largest weighted length a message may have.
	Max int
	// LinkWeight is what the link counts for, whatever its length.
	// Zero means the link is measured with Weigh.
	LinkWeight int
	// Weigh measures text; CountRunes when nil.
	Weigh text.Weigher
	// Separator goes between the text and the link and counts as text.
	Separator string
}

// DefaultBudget mirrors the original target platform: 140 weighted units,
// links counted as 20, ASCII weighted half.
func DefaultBudget() Budget {
	return Budget{Max: 140, LinkWeight: 20, Weigh: text.CountWeibo, Separator: " "}
}

// MessageText returns the message body for item before the link is added.
func MessageText(item *entity.Item) string {
	return item.Title + " - " + item.Description
}

// Compose shortens body until body, separator and link fit the budget, then
// appends the link. Words are dropped from the end one at a time and an
// ellipsis is added; a body without whitespace is cut rune by rune. The link
// itself is never altered, so a link heavier than the whole budget yields a
// message holding only the link.
func Compose(body, link string, b Budget) string {
	weigh := b.Weigh
	if weigh == nil {
		weigh = text.CountRunes
	}
	linkWeight := b.LinkWeight
	if linkWeight <= 0 {
		linkWeight = weigh(link)
	}
	fits := func(s string) bool {
		return weigh(s+b.Separator)+linkWeight <= b.Max
	}

	for !fits(body) {
		cut := strings.LastIndexFunc(body, unicode.IsSpace)
		if cut < 0 {
			body = hardTruncate(strings.TrimSuffix(body, Ellipsis), fits)
			break
		}
		body = body[:cut] + Ellipsis
	}

	if body == "" {
		return link
	}
	return body + b.Separator + link
}

// hardTruncate keeps the longest rune prefix of s that still fits once the
// ellipsis is appended, or returns "" when none does.
func hardTruncate(s string, fits func(string) bool) string {
	runes := []rune(s)
	for n := len(runes); n > 0; n-- {
		if candidate := string(runes[:n]) + Ellipsis; fits(candidate) {
			return candidate
		}
	}
	return ""
}
