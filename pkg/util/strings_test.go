package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeTicker(" aapl "))
	assert.Equal(t, "BRK.B", NormalizeTicker("brk.b"))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", 250)
	got := Truncate(long, 200, "...")
	assert.Len(t, got, 203)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "short", Truncate("short", 200, "..."))
	assert.Equal(t, "Əla...", Truncate("Əlaxxx", 3, "..."))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 7, ParseIntDefault("7", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
	assert.Equal(t, 1, ParseIntDefault("x", 1))
}
