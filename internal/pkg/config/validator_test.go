package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		valid    bool
	}{
		{"30 5 * * *", true},
		{"0 */6 * * *", true},
		{"30 9 * * 1-5", true},
		{"", false},
		{"* * *", false},
		{"61 * * * *", false},
		{"@every 5m", false},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateCronSchedule(tt.schedule)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateDurations(t *testing.T) {
	assert.NoError(t, ValidateDuration(5*time.Second, time.Second, time.Minute))
	assert.Error(t, ValidateDuration(500*time.Millisecond, time.Second, time.Minute))
	assert.Error(t, ValidateDuration(2*time.Minute, time.Second, time.Minute))

	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
	assert.Error(t, ValidatePositiveDuration(0))

	assert.NoError(t, ValidateNonNegativeDuration(0))
	assert.Error(t, ValidateNonNegativeDuration(-time.Second))
}

func TestValidateIntRangeAndPort(t *testing.T) {
	assert.NoError(t, ValidateIntRange(0, 0, 10))
	assert.NoError(t, ValidateIntRange(10, 0, 10))
	assert.Error(t, ValidateIntRange(11, 0, 10))

	assert.NoError(t, ValidatePort(9090))
	assert.Error(t, ValidatePort(80))
	assert.Error(t, ValidatePort(70000))
}

func TestValidateHTTPURL(t *testing.T) {
	assert.NoError(t, ValidateHTTPURL("http://www.phoronix.com/rss.php"))
	assert.NoError(t, ValidateHTTPURL("https://bsky.social"))
	assert.Error(t, ValidateHTTPURL("ftp://example.com/feed"))
	assert.Error(t, ValidateHTTPURL("https://"))
	assert.Error(t, ValidateHTTPURL("::not a url"))
}

func TestValidateRegexp(t *testing.T) {
	assert.NoError(t, ValidateRegexp(`^https?://www\.phoronix\.com/`))
	assert.Error(t, ValidateRegexp(`([unclosed`))
}
