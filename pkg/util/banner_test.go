package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "rdb", "cyan", "v0.1.0")

	out := buf.String()
	lines := BannerLines("rdb")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(out, ColorCyan))
	assert.Contains(t, out, ColorReset)
	assert.Contains(t, out, "rdb version v0.1.0")
}

func TestPrintBannerNoColor(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "rdb", "magenta", "")

	assert.NotContains(t, buf.String(), "\x1b[")
	assert.Equal(t, len(BannerLines("rdb")), strings.Count(buf.String(), "\n"))
}
