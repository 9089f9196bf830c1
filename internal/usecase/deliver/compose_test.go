package deliver_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"feed-relay/internal/domain/entity"
	"feed-relay/internal/usecase/deliver"
	"feed-relay/internal/utils/text"
)

func weightOf(message, link string, b deliver.Budget) int {
	body := strings.TrimSuffix(message, link)
	return b.Weigh(body) + b.LinkWeight
}

func TestCompose_FitsUnchanged(t *testing.T) {
	b := deliver.Budget{Max: 140, LinkWeight: 20, Weigh: text.CountRunes, Separator: " "}
	got := deliver.Compose("Linux 6.9 Released - new drivers", "https://t.co/abc", b)

	assert.Equal(t, "Linux 6.9 Released - new drivers https://t.co/abc", got)
}

func TestCompose_DropsWordsAndAddsEllipsis(t *testing.T) {
	b := deliver.Budget{Max: 30, LinkWeight: 10, Weigh: text.CountRunes}
	got := deliver.Compose("one two three four five six", "LINK", b)

	// 30 - 10 leaves 20 units for the body.
	assert.Equal(t, "one two three...LINK", got)
}

func TestCompose_WeightBound(t *testing.T) {
	long := strings.Repeat("Phoronix benchmarks the latest kernel and Mesa drivers ", 10)
	link := "http://www.phoronix.com/vr.php?view=12345"

	for _, weigh := range []text.Weigher{text.CountRunes, text.CountWeibo} {
		b := deliver.Budget{Max: 140, LinkWeight: 20, Weigh: weigh}
		got := deliver.Compose(long, link, b)

		assert.True(t, strings.HasSuffix(got, link), "message must end with the link")
		assert.LessOrEqual(t, weightOf(got, link, b), 140)
		assert.Contains(t, got, deliver.Ellipsis)
	}
}

func TestCompose_HardTruncatesWithoutWhitespace(t *testing.T) {
	b := deliver.Budget{Max: 20, LinkWeight: 5, Weigh: text.CountRunes}
	got := deliver.Compose(strings.Repeat("x", 50), "LINK!", b)

	assert.Equal(t, strings.Repeat("x", 12)+"...LINK!", got)
	assert.LessOrEqual(t, weightOf(got, "LINK!", b), 20)
}

func TestCompose_HardTruncatesLastWord(t *testing.T) {
	b := deliver.Budget{Max: 12, LinkWeight: 2, Weigh: text.CountRunes}
	got := deliver.Compose("supercalifragilistic expialidocious", "LK", b)

	assert.True(t, strings.HasSuffix(got, "LK"))
	assert.LessOrEqual(t, weightOf(got, "LK", b), 12)
	assert.Equal(t, "superca...LK", got)
}

func TestCompose_LinkHeavierThanBudget(t *testing.T) {
	b := deliver.Budget{Max: 10, LinkWeight: 15, Weigh: text.CountRunes, Separator: " "}
	got := deliver.Compose("some text", "https://example.com/very/long", b)

	assert.Equal(t, "https://example.com/very/long", got)
}

func TestCompose_MeasuredLink(t *testing.T) {
	b := deliver.Budget{Max: 20, Weigh: text.CountRunes}
	link := "https://e.io" // 12 runes
	got := deliver.Compose("alpha beta gamma", link, b)

	assert.Equal(t, "alpha...https://e.io", got)
}

func TestCompose_TrailingWhitespaceTerminates(t *testing.T) {
	b := deliver.Budget{Max: 10, LinkWeight: 2, Weigh: text.CountRunes}
	got := deliver.Compose("aaaa bbbb    ", "LK", b)

	assert.LessOrEqual(t, weightOf(got, "LK", b), 10)
	assert.True(t, strings.HasSuffix(got, "LK"))
}

func TestMessageText(t *testing.T) {
	item := entity.NewItem("g", "Mesa 24.1", "https://example.com", "New release")
	assert.Equal(t, "Mesa 24.1 - New release", deliver.MessageText(item))
}

func TestDefaultBudget(t *testing.T) {
	b := deliver.DefaultBudget()
	assert.Equal(t, 140, b.Max)
	assert.Equal(t, 20, b.LinkWeight)
	assert.Equal(t, 2, b.Weigh("abc"))
}

func TestCompose_Separator(t *testing.T) {
	b := deliver.DefaultBudget()
	assert.Equal(t, " ", b.Separator)
	assert.Equal(t, "Title - Body https://e.io", deliver.Compose("Title - Body", "https://e.io", b))

	b.Separator = ""
	assert.Equal(t, "Title - Bodyhttps://e.io", deliver.Compose("Title - Body", "https://e.io", b))
}
