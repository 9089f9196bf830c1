package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvString(t *testing.T) {
	assert.Equal(t, "default_value", LoadEnvString("TEST_STRING", "default_value"))

	t.Setenv("TEST_STRING", "custom_value")
	assert.Equal(t, "custom_value", LoadEnvString("TEST_STRING", "default_value"))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "default_value", LoadEnvString("TEST_STRING", "default_value"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	result := LoadEnvWithFallback("TEST_CRON", "0 3 * * *", ValidateCronSchedule)
	assert.Equal(t, "0 3 * * *", result.Value)
	assert.False(t, result.FallbackApplied)

	t.Setenv("TEST_CRON", "0 6 * * *")
	result = LoadEnvWithFallback("TEST_CRON", "0 3 * * *", ValidateCronSchedule)
	assert.Equal(t, "0 6 * * *", result.Value)
	assert.Empty(t, result.Warnings)

	t.Setenv("TEST_CRON", "not a cron")
	result = LoadEnvWithFallback("TEST_CRON", "0 3 * * *", ValidateCronSchedule)
	assert.Equal(t, "0 3 * * *", result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Invalid TEST_CRON='not a cron'")
	assert.Contains(t, result.Warnings[0], "falling back to default '0 3 * * *'")
}

func TestLoadEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
		fallback bool
	}{
		{name: "unset", value: "", expected: 120 * time.Second},
		{name: "valid", value: "10m", expected: 10 * time.Minute},
		{name: "unparseable", value: "ten minutes", expected: 120 * time.Second, fallback: true},
		{name: "rejected by validator", value: "-5s", expected: 120 * time.Second, fallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			result := LoadEnvDuration("TEST_DURATION", 120*time.Second, ValidatePositiveDuration)
			assert.Equal(t, tt.expected, result.Value)
			assert.Equal(t, tt.fallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
		fallback bool
	}{
		{name: "unset", value: "", expected: 3},
		{name: "valid", value: "7", expected: 7},
		{name: "padded", value: " 7 ", expected: 7},
		{name: "not a number", value: "seven", expected: 3, fallback: true},
		{name: "trailing garbage", value: "7x", expected: 3, fallback: true},
		{name: "out of range", value: "1000", expected: 3, fallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)
			result := LoadEnvInt("TEST_INT", 3, func(v int) error { return ValidateIntRange(v, 0, 100) })
			assert.Equal(t, tt.expected, result.Value)
			assert.Equal(t, tt.fallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	assert.Equal(t, true, LoadEnvBool("TEST_BOOL", false).Value)

	t.Setenv("TEST_BOOL", "0")
	assert.Equal(t, false, LoadEnvBool("TEST_BOOL", true).Value)

	t.Setenv("TEST_BOOL", "maybe")
	result := LoadEnvBool("TEST_BOOL", true)
	assert.Equal(t, true, result.Value)
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvStringList(t *testing.T) {
	def := []string{"t.co"}
	assert.Equal(t, def, LoadEnvStringList("TEST_LIST", def))

	t.Setenv("TEST_LIST", "t.cn, bit.ly ,,")
	assert.Equal(t, []string{"t.cn", "bit.ly"}, LoadEnvStringList("TEST_LIST", def))

	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, def, LoadEnvStringList("TEST_LIST", def))
}
