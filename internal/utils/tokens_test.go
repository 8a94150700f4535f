package utils_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KaramelBytes/dashloom-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short", "hi", 1},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 1000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, utils.CountTokens(c.in), c.name)
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("abcd ", 1000)
	trunc := utils.TruncateToTokenLimit(text, 300)
	assert.LessOrEqual(t, utils.CountTokens(trunc), 300)
	assert.NotEmpty(t, trunc)

	assert.Equal(t, "", utils.TruncateToTokenLimit(text, 0))
	assert.Equal(t, "short", utils.TruncateToTokenLimit("short", 10))
}

func TestTruncatePrefersLineBreak(t *testing.T) {
	text := strings.Repeat("row,1,2\n", 100)
	trunc := utils.TruncateToTokenLimit(text, 50)
	assert.True(t, strings.HasSuffix(trunc, "row,1,2"))
	assert.LessOrEqual(t, len(trunc), 200)
}

func TestTokenBreakdown(t *testing.T) {
	got := utils.TokenBreakdown(map[string]string{"a": "abcdefgh", "b": ""})
	assert.Equal(t, map[string]int{"a": 2, "b": 0}, got)
}
