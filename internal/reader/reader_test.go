package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsonflat/internal/errors"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "big.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadHead_Lines(t *testing.T) {
	path := writeFile(t, "{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n")

	tests := []struct {
		name     string
		n        int
		expected string
	}{
		{"zero lines", 0, ""},
		{"first line", 1, "{\"id\":1}\n"},
		{"two lines", 2, "{\"id\":1}\n{\"id\":2}\n"},
		{"more than available", 10, "{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadHead(path, tt.n, ModeLines)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReadHead_LinesWithoutTrailingNewline(t *testing.T) {
	got, err := ReadHead(writeFile(t, "a\nb"), 5, ModeLines)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", got)
}

func TestReadHead_Bytes(t *testing.T) {
	path := writeFile(t, "abcdef")

	got, err := ReadHead(path, 4, ModeBytes)
	require.NoError(t, err)
	assert.Equal(t, "abcd", got)

	got, err = ReadHead(path, 100, ModeBytes)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", got)
}

func TestHead_BytesDropsPartialRune(t *testing.T) {
	// "é" is two bytes; cutting after the first leaves half a rune
	got, err := Head(strings.NewReader("aé"), 2, ModeBytes)
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestHead_BytesLimitLargerThanInput(t *testing.T) {
	// The limit is an upper bound, not an allocation size
	got, err := ReadHead(writeFile(t, "small"), 100_000_000_000, ModeBytes)
	require.NoError(t, err)
	assert.Equal(t, "small", got)
}

func TestHead_BytesTrimsOnlyTheLastRune(t *testing.T) {
	// Invalid bytes early in the input do not cost the complete tail
	got, err := Head(strings.NewReader("\xffabc"), 4, ModeBytes)
	require.NoError(t, err)
	assert.Equal(t, "\xffabc", got)

	// "😀" is four bytes; three of them are dropped
	got, err = Head(strings.NewReader("x😀"), 4, ModeBytes)
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	got, err = Head(strings.NewReader("x😀"), 5, ModeBytes)
	require.NoError(t, err)
	assert.Equal(t, "x😀", got)
}

func TestReadHead_InvalidMode(t *testing.T) {
	_, err := ReadHead(writeFile(t, "x"), 1, Mode("words"))
	assert.ErrorIs(t, err, errors.ErrInvalidHeadMode)

	_, err = ReadHead(writeFile(t, "x"), -1, ModeLines)
	assert.ErrorIs(t, err, errors.ErrInvalidHeadMode)
}

func TestReadHead_MissingFile(t *testing.T) {
	_, err := ReadHead(filepath.Join(t.TempDir(), "missing"), 1, ModeLines)
	assert.ErrorIs(t, err, errors.ErrFileNotFound)
}
