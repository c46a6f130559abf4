package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectorArabicBlock(t *testing.T) {
	d, err := NewDetector([]string{"0600-06FF"})
	require.NoError(t, err)

	assert.True(t, d.Match("hello مرحبا"))
	assert.True(t, d.Match("؟"))
	assert.False(t, d.Match("hello world"))
	assert.False(t, d.Match("Привет"))
	assert.False(t, d.Match(""))
	// Arabic presentation forms are outside the default block
	assert.False(t, d.Match("ﻻ"))
}

func TestDetectorExcerpt(t *testing.T) {
	d, err := NewDetector([]string{"0600-06FF"})
	require.NoError(t, err)

	assert.Equal(t, "مرحبا", d.Excerpt("please مرحبا", 5))
	assert.Equal(t, "", d.Excerpt("please", 5))
}

func TestParseRanges(t *testing.T) {
	table, err := ParseRanges([]string{"0750-077F", "U+0600-06FF", "0700-074F", "1EE00-1EEFF", "0041"})
	require.NoError(t, err)

	d := &Detector{table: table}
	assert.True(t, d.Match("A"))
	assert.False(t, d.Match("B"))
	assert.True(t, d.Match("܀"))
	assert.True(t, d.Match("\U0001EE00"))
	// 0600-077F collapse into one range
	assert.Len(t, table.R16, 2)
	assert.Len(t, table.R32, 1)

	for _, bad := range [][]string{nil, {"zz"}, {"06FF-0600"}, {"0600-"}, {"110000"}} {
		_, err := ParseRanges(bad)
		assert.Error(t, err, bad)
	}
}
