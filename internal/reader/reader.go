// Package reader reads the beginning of text files that are too large to
// load whole, so a sample can be inspected or normalized.
package reader

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mcncl/jsonflat/internal/errors"
)

// Mode selects the unit ReadHead counts in.
type Mode string

const (
	ModeLines Mode = "lines"
	ModeBytes Mode = "bytes"
)

// ReadHead returns the first n lines or n bytes of the file at path.
// Lines keep their line terminators. A file shorter than n is returned in
// full. In bytes mode a multi-byte UTF-8 character split by the limit is
// dropped rather than returned half-decoded.
func ReadHead(path string, n int, mode Mode) (string, error) {
	if mode != ModeLines && mode != ModeBytes {
		return "", errors.NewInputError(fmt.Sprintf("unknown head mode '%s'", mode), errors.ErrInvalidHeadMode)
	}
	if n < 0 {
		return "", errors.NewInputError(fmt.Sprintf("head limit %d is negative", n), errors.ErrInvalidHeadMode)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewInputError(fmt.Sprintf("file '%s' not found", path), errors.ErrFileNotFound)
		}
		return "", errors.NewInputError(fmt.Sprintf("failed to open file '%s'", path), err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing file: %v\n", err)
		}
	}()

	return Head(file, n, mode)
}

// Head is ReadHead for an already open reader.
func Head(r io.Reader, n int, mode Mode) (string, error) {
	switch mode {
	case ModeLines:
		return headLines(r, n)
	case ModeBytes:
		return headBytes(r, n)
	default:
		return "", errors.NewInputError(fmt.Sprintf("unknown head mode '%s'", mode), errors.ErrInvalidHeadMode)
	}
}

func headLines(r io.Reader, n int) (string, error) {
	br := bufio.NewReader(r)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		line, err := br.ReadString('\n')
		sb.WriteString(line)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", errors.NewInputError("failed to read input", err)
		}
	}
	return sb.String(), nil
}

func headBytes(r io.Reader, n int) (string, error) {
	buf, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return "", errors.NewInputError("failed to read input", err)
	}
	return string(trimPartialRune(buf)), nil
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of buf.
// Bytes before the last rune are left alone, valid or not.
func trimPartialRune(buf []byte) []byte {
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(buf[i]) {
			continue
		}
		if !utf8.FullRune(buf[i:]) {
			return buf[:i]
		}
		break
	}
	return buf
}
