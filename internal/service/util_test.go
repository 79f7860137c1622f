package service

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, Truncate("short", 60), "short")
	assert.Equal(t, Truncate("abcdef", 3), "abc")
	// Multi-byte characters are never split.
	assert.Equal(t, Truncate("héllo wörld", 7), "héllo w")
	assert.Equal(t, Truncate("", 10), "")
}
