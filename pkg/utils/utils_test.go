package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exactly", Truncate("exactly", 7))
	assert.Equal(t, "long st...", Truncate("long string here", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "", Truncate("anything", 0))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "******", MaskToken("secret"))
	assert.Equal(t, "eyJh****here", MaskToken("eyJhbGciOisomethinghere"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "2.5s", FormatDuration(2500*time.Millisecond))
	assert.Equal(t, "3m20s", FormatDuration(200*time.Second))
	assert.Equal(t, "2h5m", FormatDuration(125*time.Minute))
}
