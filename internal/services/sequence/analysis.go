package sequence

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Config controls which substrings qualify as sequences
type Config struct {
	MinLength    int
	MaxLength    int
	MinFrequency int
}

// DefaultConfig returns the classic 2-4 letter, 300 occurrence settings
func DefaultConfig() Config {
	return Config{
		MinLength:    2,
		MaxLength:    4,
		MinFrequency: 300,
	}
}

// Frequency is how often a sequence occurs across the dictionary
type Frequency struct {
	Sequence string
	Count    int
}

// Analyze counts every occurrence of every letter-only substring with a length in
// [MinLength, MaxLength] and keeps those seen at least MinFrequency times.
// When nothing meets the threshold it falls back to a threshold of one.
// Results are ordered by count descending, then alphabetically.
func Analyze(words []string, cfg Config) []Frequency {
	counts := make(map[string]int)
	for _, word := range words {
		runes := []rune(word)
		for i := range runes {
			for length := cfg.MinLength; length <= cfg.MaxLength; length++ {
				if i+length > len(runes) {
					break
				}
				sub := runes[i : i+length]
				if !allLetters(sub) {
					continue
				}
				counts[string(sub)]++
			}
		}
	}

	result := filter(counts, cfg.MinFrequency)
	if len(result) == 0 {
		result = filter(counts, 1)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Sequence < result[j].Sequence
	})
	return result
}

// Sequences strips the counts from an analysis
func Sequences(freqs []Frequency) []string {
	seqs := make([]string, len(freqs))
	for i, f := range freqs {
		seqs[i] = f.Sequence
	}
	return seqs
}

// WriteFile writes one "sequence,count" line per entry
func WriteFile(path string, freqs []Frequency) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for _, f := range freqs {
		if _, err := fmt.Fprintf(w, "%s,%d\n", f.Sequence, f.Count); err != nil {
			_ = file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadFile reads a file written by WriteFile. Plain one-sequence-per-line files are accepted too.
func ReadFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var seqs []string
	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		seq, count, found := strings.Cut(text, ",")
		if found {
			if _, err := strconv.Atoi(strings.TrimSpace(count)); err != nil {
				return nil, fmt.Errorf("%s:%d: invalid count %q", path, line, count)
			}
		}
		seqs = append(seqs, strings.TrimSpace(seq))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return seqs, nil
}

func filter(counts map[string]int, min int) []Frequency {
	var result []Frequency
	for seq, n := range counts {
		if n >= min {
			result = append(result, Frequency{Sequence: seq, Count: n})
		}
	}
	return result
}

func allLetters(rs []rune) bool {
	for _, r := range rs {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
