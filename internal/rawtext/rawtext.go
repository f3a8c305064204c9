// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rawtext splits raw UTF-8 corpus files into paragraphs. A
// paragraph is a run of non-blank lines; blank lines separate paragraphs.
package rawtext

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Split reads r and returns its paragraphs in file order. Leading and
// trailing whitespace is trimmed per paragraph; empty paragraphs are
// dropped.
func Split(r io.Reader) ([]string, error) {
	var (
		paragraphs []string
		buf        []string
	)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		p := strings.TrimSpace(strings.Join(buf, "\n"))
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
		buf = buf[:0]
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		buf = append(buf, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning raw text: %w", err)
	}
	flush()

	return paragraphs, nil
}

// SplitFile splits the file at path into paragraphs.
func SplitFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raw file: %w", err)
	}
	defer f.Close()
	return Split(f)
}

// Select returns the paragraphs at the given 1-based indices. Indices out
// of range produce an error naming the valid range.
func Select(paragraphs []string, indices []int) ([]string, error) {
	out := make([]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > len(paragraphs) {
			return nil, fmt.Errorf("index %d out of range (valid 1..%d)", idx, len(paragraphs))
		}
		out = append(out, paragraphs[idx-1])
	}
	return out, nil
}
