package sequence

import (
	"log/slog"
	"strings"

	"github.com/mcoot/wordbomb/internal/dependencies/random"
	"github.com/mcoot/wordbomb/internal/model"
	"github.com/mcoot/wordbomb/internal/services/dictionary"
)

// Generator picks required sequences for turns. A sequence is only handed out while at least
// one dictionary word containing it has not been used yet.
// Safe for concurrent use once built; it holds no mutable state.
type Generator struct {
	random    random.Random
	logger    *slog.Logger
	sequences []string
	words     map[string][]string // sequence -> dictionary words containing it
}

// NewGenerator indexes candidate sequences against the dictionary words.
// Candidates with no containing word are dropped.
func NewGenerator(words, candidates []string, rnd random.Random, logger *slog.Logger) (*Generator, error) {
	g := &Generator{
		random: rnd,
		logger: logger.With(slog.String("component", "sequence")),
		words:  make(map[string][]string),
	}

	for _, c := range candidates {
		seq := dictionary.Normalize(c)
		if seq == "" {
			continue
		}
		if _, seen := g.words[seq]; seen {
			continue
		}
		var containing []string
		for _, w := range words {
			if strings.Contains(w, seq) {
				containing = append(containing, w)
			}
		}
		if len(containing) == 0 {
			g.logger.Debug("dropping sequence with no words", slog.String("sequence", seq))
			continue
		}
		g.words[seq] = containing
		g.sequences = append(g.sequences, seq)
	}

	if len(g.sequences) == 0 {
		return nil, model.ErrNoSequences
	}
	g.logger.Info("sequence generator ready",
		slog.Int("sequences", len(g.sequences)),
		slog.Int("dropped", len(candidates)-len(g.sequences)),
	)
	return g, nil
}

// Len returns the number of usable sequences
func (g *Generator) Len() int {
	return len(g.sequences)
}

// Next picks a random sequence that still has an unused word
func (g *Generator) Next(used map[string]struct{}) (string, error) {
	n := len(g.sequences)
	start := g.random.Intn(n)
	for k := 0; k < n; k++ {
		seq := g.sequences[(start+k)%n]
		if g.Live(seq, used) {
			return seq, nil
		}
	}
	return "", model.ErrNoSequences
}

// Live reports whether some dictionary word containing seq is not in used
func (g *Generator) Live(seq string, used map[string]struct{}) bool {
	_, ok := g.Witness(seq, used)
	return ok
}

// Witness returns an unused dictionary word containing seq
func (g *Generator) Witness(seq string, used map[string]struct{}) (string, bool) {
	for _, w := range g.words[seq] {
		if _, taken := used[w]; !taken {
			return w, true
		}
	}
	return "", false
}
