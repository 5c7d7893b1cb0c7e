package lm

import (
	"github.com/samcharles93/ngramlm/internal/vocab"
	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// Result is a scored word.
type Result struct {
	// Prob is the log10 probability of the word given the context.
	Prob float32
	// NgramLength is the order of the n-gram that matched; 1 means the
	// unigram after backing off.
	NgramLength int
	// State is the context to score the next word from.
	State State
}

// FullScore scores word after state with standard backoff: use the longest
// stored n-gram ending in word, adding the backoff weight of every longer
// context that exists but lacks the word. NotFound is scored as <unk>.
func (m *Model) FullScore(state State, word vocab.WordID) Result {
	if uint64(word) >= uint64(m.vocab.Size()) {
		word = vocab.NotFound
	}
	ctx := state.words[:state.n]
	k := min(len(ctx)+1, m.order)

	var res Result
	var backoff float32
	for ; k > 1; k-- {
		c := ctx[len(ctx)-(k-1):]
		parent, ok := m.trie.Node(c)
		if !ok {
			continue
		}
		if e, ok := m.trie.Find(parent, word); ok {
			res.Prob = backoff + m.quant.Decode(k, mcf.KindProb, e.ProbCode)
			res.NgramLength = k
			break
		}
		backoff += m.quant.Decode(k-1, mcf.KindBackoff, parent.BackoffCode)
	}
	if k == 1 {
		e, _ := m.trie.Unigram(word)
		res.Prob = backoff + m.quant.Decode(1, mcf.KindProb, e.ProbCode)
		res.NgramLength = 1
	}
	res.State = m.nextState(ctx, word)
	return res
}

// ScoreID is FullScore without the match details.
func (m *Model) ScoreID(state State, word vocab.WordID) (float32, State) {
	r := m.FullScore(state, word)
	return r.Prob, r.State
}

// nextState keeps the longest suffix of ctx+word, at most order-1 words, that
// can still influence a later score: it is stored and either has extensions
// or a non-zero backoff.
func (m *Model) nextState(ctx []vocab.WordID, word vocab.WordID) State {
	if m.order == 1 {
		return State{}
	}
	var buf [MaxOrder]vocab.WordID
	full := append(buf[:0], ctx...)
	full = append(full, word)
	if len(full) > m.order-1 {
		full = full[len(full)-(m.order-1):]
	}
	for l := len(full); l > 0; l-- {
		cand := full[len(full)-l:]
		e, ok := m.trie.Node(cand)
		if !ok {
			continue
		}
		if e.HasChildren() || m.quant.Decode(l, mcf.KindBackoff, e.BackoffCode) != 0 {
			return stateOf(cand)
		}
	}
	return State{}
}
