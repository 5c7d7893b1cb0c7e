// Package trie stores the n-grams of a backoff language model as one
// bit-packed, sorted array per order.
//
// An entry at order k holds its last word, a probability code, a backoff code
// and a pointer into order k+1. The children of entry i are the entries in
// [pointer(i), pointer(i+1)), sorted by word ID, so a context is found by
// walking from its oldest word and binary searching each sibling range. The
// unigram array is indexed directly by word ID. Every order below the highest
// ends with a sentinel entry that holds only the final pointer.
package trie

import (
	"errors"
	"fmt"

	"github.com/samcharles93/ngramlm/internal/vocab"
	"github.com/samcharles93/ngramlm/pkg/mcf"
)

var (
	ErrCorrupt        = errors.New("trie: corrupt trie")
	ErrMissingContext = errors.New("trie: n-gram context missing from lower order")
	ErrUnsorted       = errors.New("trie: n-grams out of order")
)

// Entry is one decoded n-gram.
type Entry struct {
	Order       int
	Index       uint64 // position within the order's array
	Word        vocab.WordID
	ProbCode    uint32
	BackoffCode uint32 // zero at the highest order
	ChildBegin  uint64
	ChildEnd    uint64
}

// HasChildren reports whether any higher-order n-gram extends this entry.
func (e Entry) HasChildren() bool {
	return e.ChildEnd > e.ChildBegin
}

type level struct {
	data   []byte
	layout layout
	count  uint64
	top    bool
}

// Trie is a read-only view over packed arrays. It never writes to them, so the
// arrays may alias a read-only mapping. Safe for concurrent use.
type Trie struct {
	info   mcf.NGramInfo
	levels []level
}

// Open wraps the packed arrays described by info and validates their structure:
// array sizes, pointer monotonicity and coverage, sibling ordering and word IDs.
func Open(info mcf.NGramInfo, arrays [][]byte) (*Trie, error) {
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(arrays) != int(info.Order) {
		return nil, fmt.Errorf("%w: %d arrays for order %d", ErrCorrupt, len(arrays), info.Order)
	}
	t := &Trie{info: info, levels: make([]level, info.Order)}
	for i, o := range info.Orders {
		need, _ := info.ArrayBytes(i)
		if uint64(len(arrays[i])) < need {
			return nil, fmt.Errorf("%w: order %d array is %d bytes, need %d", ErrCorrupt, i+1, len(arrays[i]), need)
		}
		l := layout{word: o.WordBits, prob: o.ProbBits}
		top := info.Top(i)
		if !top {
			l.backoff = o.BackoffBits
			l.pointer = o.PointerBits
			if BitsFor(info.Orders[i+1].Count) > o.PointerBits {
				return nil, fmt.Errorf("%w: order %d pointer width %d cannot address %d entries",
					ErrCorrupt, i+1, o.PointerBits, info.Orders[i+1].Count)
			}
		}
		if i > 0 && BitsFor(uint64(info.VocabSize-1)) > o.WordBits {
			return nil, fmt.Errorf("%w: order %d word width %d cannot hold vocabulary of %d",
				ErrCorrupt, i+1, o.WordBits, info.VocabSize)
		}
		t.levels[i] = level{data: arrays[i], layout: l, count: o.Count, top: top}
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) validate() error {
	for i := range t.levels {
		lv := &t.levels[i]
		if lv.top {
			continue
		}
		child := &t.levels[i+1]
		if p := t.pointer(i, 0); p != 0 {
			return fmt.Errorf("%w: order %d first pointer is %d", ErrCorrupt, i+1, p)
		}
		prev := uint64(0)
		for idx := uint64(0); idx < lv.count; idx++ {
			begin := prev
			end := t.pointer(i, idx+1)
			if end < begin {
				return fmt.Errorf("%w: order %d pointer %d decreases", ErrCorrupt, i+1, idx+1)
			}
			if end > child.count {
				return fmt.Errorf("%w: order %d entry %d child range extends past order %d",
					ErrCorrupt, i+1, idx, i+2)
			}
			for c := begin; c < end; c++ {
				w := t.word(i+1, c)
				if uint64(w) >= uint64(t.info.VocabSize) {
					return fmt.Errorf("%w: order %d entry %d word id %d outside vocabulary", ErrCorrupt, i+2, c, w)
				}
				if c > begin && w <= t.word(i+1, c-1) {
					return fmt.Errorf("%w: order %d entries %d..%d not sorted by word", ErrCorrupt, i+2, c-1, c)
				}
			}
			prev = end
		}
		if prev != child.count {
			return fmt.Errorf("%w: order %d pointers cover %d of %d order %d entries",
				ErrCorrupt, i+1, prev, child.count, i+2)
		}
	}
	return nil
}

func (t *Trie) word(i int, idx uint64) vocab.WordID {
	lv := &t.levels[i]
	if i == 0 {
		return vocab.WordID(idx)
	}
	return vocab.WordID(readBits(lv.data, idx*lv.layout.total(), lv.layout.word))
}

func (t *Trie) pointer(i int, idx uint64) uint64 {
	lv := &t.levels[i]
	return readBits(lv.data, idx*lv.layout.total()+lv.layout.pointerOff(), lv.layout.pointer)
}

func (t *Trie) entry(i int, idx uint64) Entry {
	lv := &t.levels[i]
	base := idx * lv.layout.total()
	e := Entry{
		Order:    i + 1,
		Index:    idx,
		Word:     t.word(i, idx),
		ProbCode: uint32(readBits(lv.data, base+lv.layout.probOff(), lv.layout.prob)),
	}
	if !lv.top {
		e.BackoffCode = uint32(readBits(lv.data, base+lv.layout.backoffOff(), lv.layout.backoff))
		e.ChildBegin = t.pointer(i, idx)
		e.ChildEnd = t.pointer(i, idx+1)
	}
	return e
}

func (t *Trie) Info() mcf.NGramInfo { return t.info }

// Order is the highest n-gram order stored.
func (t *Trie) Order() int { return int(t.info.Order) }

// Count is the number of n-grams stored at a 1-based order.
func (t *Trie) Count(order int) uint64 {
	if order < 1 || order > len(t.levels) {
		return 0
	}
	return t.levels[order-1].count
}

// Unigram returns the unigram entry of word. Every word ID below the
// vocabulary size has one.
func (t *Trie) Unigram(word vocab.WordID) (Entry, bool) {
	if uint64(word) >= t.levels[0].count {
		return Entry{}, false
	}
	return t.entry(0, uint64(word)), true
}

// Find searches the children of parent for word. Sibling ranges are sorted,
// so the search is logarithmic in the number of siblings.
func (t *Trie) Find(parent Entry, word vocab.WordID) (Entry, bool) {
	if parent.Order >= len(t.levels) || !parent.HasChildren() {
		return Entry{}, false
	}
	i := parent.Order
	lo, hi := parent.ChildBegin, parent.ChildEnd
	for lo < hi {
		mid := lo + (hi-lo)/2
		w := t.word(i, mid)
		switch {
		case w == word:
			return t.entry(i, mid), true
		case w < word:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return Entry{}, false
}

// Node finds the n-gram whose words, oldest first, are words.
func (t *Trie) Node(words []vocab.WordID) (Entry, bool) {
	if len(words) == 0 || len(words) > len(t.levels) {
		return Entry{}, false
	}
	e, ok := t.Unigram(words[0])
	for _, w := range words[1:] {
		if !ok {
			return Entry{}, false
		}
		e, ok = t.Find(e, w)
	}
	return e, ok
}

// Lookup finds word following context at the given order.
// len(context) must be order-1; a miss is not an error.
func (t *Trie) Lookup(order int, context []vocab.WordID, word vocab.WordID) (Entry, bool) {
	if order < 1 || order > len(t.levels) || len(context) != order-1 {
		return Entry{}, false
	}
	if order == 1 {
		return t.Unigram(word)
	}
	parent, ok := t.Node(context)
	if !ok {
		return Entry{}, false
	}
	return t.Find(parent, word)
}
