package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadCorpus reads a corpus file: one overt form per line, blank lines
// skipped.
func LoadCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}
	defer f.Close()
	corpus, err := ReadCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return corpus, nil
}

// ReadCorpus is LoadCorpus over an open reader.
func ReadCorpus(r io.Reader) ([]string, error) {
	var corpus []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		corpus = append(corpus, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return corpus, nil
}
