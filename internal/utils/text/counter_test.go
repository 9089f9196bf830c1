package text_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"feed-relay/internal/utils/text"
)

func TestCountRunes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "ASCII text", input: "hello", expected: 5},
		{name: "ASCII with spaces", input: "hello world", expected: 11},
		{name: "Japanese hiragana", input: "こんにちは", expected: 5},
		{name: "mixed text", input: "hello世界", expected: 7},
		{name: "emoji", input: "Hello👋", expected: 6},
		{name: "empty", input: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, text.CountRunes(tt.input))
		})
	}
}

func TestCountWeibo(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "even ASCII", input: "abcd", expected: 2},
		{name: "odd ASCII rounds up", input: "abc", expected: 2},
		{name: "chinese", input: "世界", expected: 2},
		{name: "mixed", input: "a世", expected: 2},
		{name: "empty", input: "", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, text.CountWeibo(tt.input))
		})
	}
}

func TestWeigherFor(t *testing.T) {
	w, ok := text.WeigherFor("weibo")
	assert.True(t, ok)
	assert.Equal(t, 2, w("abc"))

	w, ok = text.WeigherFor("RUNES")
	assert.True(t, ok)
	assert.Equal(t, 3, w("abc"))

	w, ok = text.WeigherFor("graphemes")
	assert.False(t, ok)
	assert.Equal(t, 3, w("abc"))
}

func TestSingleLine(t *testing.T) {
	assert.Equal(t, "a b c d e", text.SingleLine("a\tb\nc\r\nd\re"))
	assert.Equal(t, "plain", text.SingleLine("plain"))
}
