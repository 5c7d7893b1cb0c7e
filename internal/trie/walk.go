package trie

import (
	"fmt"

	"github.com/samcharles93/ngramlm/internal/vocab"
)

// Walk visits every stored n-gram in order 1 first, then depth first through
// each unigram's extensions. words is reused between calls; copy it to keep
// it. Returning false stops the walk.
func (t *Trie) Walk(fn func(words []vocab.WordID, e Entry) bool) {
	path := make([]vocab.WordID, 0, len(t.levels))
	for w := uint64(0); w < t.levels[0].count; w++ {
		e := t.entry(0, w)
		if !t.walk(append(path[:0], vocab.WordID(w)), e, fn) {
			return
		}
	}
}

func (t *Trie) walk(path []vocab.WordID, e Entry, fn func([]vocab.WordID, Entry) bool) bool {
	if !fn(path, e) {
		return false
	}
	for c := e.ChildBegin; c < e.ChildEnd; c++ {
		child := t.entry(e.Order, c)
		if !t.walk(append(path, child.Word), child, fn) {
			return false
		}
	}
	return true
}

// Verify checks suffix closure: for every stored n-gram w1..wk with k > 1 the
// suffix w2..wk is stored as well. Prefix closure holds structurally once the
// trie has opened.
func (t *Trie) Verify() error {
	var err error
	t.Walk(func(words []vocab.WordID, e Entry) bool {
		if len(words) < 2 {
			return true
		}
		if _, ok := t.Node(words[1:]); !ok {
			err = fmt.Errorf("%w: suffix of order %d n-gram %v is missing", ErrMissingContext, len(words), words)
			return false
		}
		return true
	})
	return err
}
