// Package fileutil provides small filesystem helpers shared by the
// pipeline and CLI.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// NextAvailablePath returns path unchanged when it does not exist, or the
// first "name (n).ext" variant that is free. Used for output destinations
// so renders never clobber prior results.
func NextAvailablePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

// WriteLines writes one line per entry with a trailing newline.
func WriteLines(path string, lines []string) error {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// SortedMatches globs pattern and returns matches in lexical order. Frame
// sequences use zero-padded names, so lexical order is frame order.
func SortedMatches(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	// filepath.Glob already sorts, but that is documented behavior we
	// depend on for frame ordering; keep the contract explicit here.
	return matches, nil
}
