package lm

import (
	"math"

	"github.com/samcharles93/ngramlm/internal/vocab"
)

// Score looks word up and scores it after state. In strict mode an unknown
// word returns defaultScore and state unchanged; otherwise it is scored as
// <unk>.
func (m *Model) Score(state State, word string, defaultScore float32) (float32, State) {
	return m.scoreWith(m.policy.Strict, state, word, defaultScore)
}

func (m *Model) scoreWith(strict bool, state State, word string, defaultScore float32) (float32, State) {
	id := m.vocab.Index(word)
	if id == vocab.NotFound && strict {
		return defaultScore, state
	}
	return m.ScoreID(state, id)
}

// ScoreSequence scores words under the model's policy and returns the log10
// probability of the final word. An empty sequence, or in strict mode any
// unknown word, yields defaultScore exactly.
func (m *Model) ScoreSequence(words []string, defaultScore float32) float32 {
	return m.ScoreSequenceWith(m.policy, words, defaultScore)
}

// ScoreSequenceWith is ScoreSequence under an explicit policy.
func (m *Model) ScoreSequenceWith(p Policy, words []string, defaultScore float32) float32 {
	words = window(p, words)
	if len(words) == 0 {
		return defaultScore
	}
	state := m.startState(p, len(words))
	score := defaultScore
	for _, w := range words {
		id := m.vocab.Index(w)
		if id == vocab.NotFound && p.Strict {
			return defaultScore
		}
		score, state = m.ScoreID(state, id)
	}
	return score
}

func window(p Policy, words []string) []string {
	if p.Window > 0 && len(words) > p.Window {
		return words[len(words)-p.Window:]
	}
	return words
}

func (m *Model) startState(p Policy, n int) State {
	switch p.BOS {
	case BOSAlways:
		return m.bos
	case BOSShortSequence:
		if n < m.order {
			return m.bos
		}
	}
	return State{}
}

// WordScore is one word's contribution to a SequenceScore.
type WordScore struct {
	Word        string
	ID          vocab.WordID
	Prob        float32
	NgramLength int
	OOV         bool
}

// SequenceScore is the joint probability of a sequence.
type SequenceScore struct {
	// Total is the summed log10 probability.
	Total float64
	Words []WordScore
	OOV   int
	// Perplexity is 10^(-Total/len(Words)); zero for an empty sequence.
	Perplexity float64
}

// TotalScore sums the log10 probabilities of every word under the model's
// policy. Unknown words are scored as <unk> and counted in OOV regardless of
// strictness.
func (m *Model) TotalScore(words []string) SequenceScore {
	return m.TotalScoreWith(m.policy, words)
}

func (m *Model) TotalScoreWith(p Policy, words []string) SequenceScore {
	words = window(p, words)
	state := m.startState(p, len(words))
	out := SequenceScore{Words: make([]WordScore, 0, len(words)+1)}

	add := func(w string, id vocab.WordID, oov bool) {
		r := m.FullScore(state, id)
		state = r.State
		out.Total += float64(r.Prob)
		out.Words = append(out.Words, WordScore{Word: w, ID: id, Prob: r.Prob, NgramLength: r.NgramLength, OOV: oov})
		if oov {
			out.OOV++
		}
	}
	for _, w := range words {
		id := m.vocab.Index(w)
		add(w, id, id == vocab.NotFound)
	}
	if p.EOS {
		if eos := m.vocab.EndSentence(); eos != vocab.NotFound {
			add(vocab.EndSentence, eos, false)
		}
	}
	if n := len(out.Words); n > 0 {
		out.Perplexity = math.Pow(LogBase, -out.Total/float64(n))
	}
	return out
}
