package lm

import (
	"github.com/samcharles93/ngramlm/internal/vocab"
	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// MaxOrder is the highest n-gram order a model may have.
const MaxOrder = mcf.MaxNGramOrder

// State is the scoring context: up to MaxOrder-1 preceding word IDs, oldest
// first. It is a plain value, comparable with ==, and may be used as a map
// key. The zero State is the empty context.
type State struct {
	words [MaxOrder - 1]vocab.WordID
	n     uint8
}

// Len is the number of context words held.
func (s State) Len() int { return int(s.n) }

// Words returns a copy of the context, oldest first.
func (s State) Words() []vocab.WordID {
	out := make([]vocab.WordID, s.n)
	copy(out, s.words[:s.n])
	return out
}

func stateOf(words []vocab.WordID) State {
	var s State
	s.n = uint8(copy(s.words[:], words))
	return s
}
