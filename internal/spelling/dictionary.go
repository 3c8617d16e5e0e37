package spelling

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

//go:embed dictionary.txt
var embeddedDictionary string

// LoadDictionary reads "word count" lines into idx. The count is optional
// and defaults to DefaultFrequency. Blank lines and lines starting with #
// are skipped.
func LoadDictionary(idx *WordIndex, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	loaded := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		freq := DefaultFrequency
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return loaded, fmt.Errorf("invalid frequency on line %d: %w", line, err)
			}
			freq = n
		}
		idx.Add(fields[0], freq)
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, fmt.Errorf("failed to read dictionary: %w", err)
	}
	return loaded, nil
}

// NewIndex builds a WordIndex from path, or from the built-in word list
// when path is empty.
func NewIndex(path string, maxDistance int) (*WordIndex, error) {
	idx := NewWordIndex(maxDistance)

	if path == "" {
		if _, err := LoadDictionary(idx, strings.NewReader(embeddedDictionary)); err != nil {
			return nil, err
		}
		return idx, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary %s: %w", path, err)
	}
	defer f.Close()

	if _, err := LoadDictionary(idx, f); err != nil {
		return nil, fmt.Errorf("failed to load dictionary %s: %w", path, err)
	}
	return idx, nil
}
