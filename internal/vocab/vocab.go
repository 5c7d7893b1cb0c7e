// Package vocab maps surface words to dense word IDs.
package vocab

import (
	"errors"
	"fmt"
)

// WordID identifies a vocabulary word. IDs are dense from 0.
type WordID uint32

// Reserved words. <unk> always owns ID 0.
const (
	Unknown       = "<unk>"
	BeginSentence = "<s>"
	EndSentence   = "</s>"
)

// NotFound is the ID Index returns for words outside the vocabulary. It is
// the ID of <unk>, which no real word can hold.
const NotFound WordID = 0

var ErrCorrupt = errors.New("vocab: corrupt vocabulary")

// Vocabulary is an immutable word index. It is safe for concurrent use.
type Vocabulary struct {
	words []string
	ids   map[string]WordID
	bos   WordID
	eos   WordID
}

// New builds a vocabulary from words in ID order. Entry 0 must be <unk>;
// words must be non-empty and unique.
func New(words []string) (*Vocabulary, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrCorrupt)
	}
	if uint64(len(words)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("%w: %d entries exceed the word id range", ErrCorrupt, len(words))
	}
	if words[0] != Unknown {
		return nil, fmt.Errorf("%w: entry 0 is %q, want %q", ErrCorrupt, words[0], Unknown)
	}
	v := &Vocabulary{
		words: words,
		ids:   make(map[string]WordID, len(words)),
		bos:   NotFound,
		eos:   NotFound,
	}
	for i, w := range words {
		if w == "" {
			return nil, fmt.Errorf("%w: entry %d is empty", ErrCorrupt, i)
		}
		if prev, dup := v.ids[w]; dup {
			return nil, fmt.Errorf("%w: %q appears as entry %d and %d", ErrCorrupt, w, prev, i)
		}
		v.ids[w] = WordID(i)
	}
	if id, ok := v.ids[BeginSentence]; ok {
		v.bos = id
	}
	if id, ok := v.ids[EndSentence]; ok {
		v.eos = id
	}
	return v, nil
}

// Index returns the ID of word, or NotFound.
func (v *Vocabulary) Index(word string) WordID {
	if id, ok := v.ids[word]; ok {
		return id
	}
	return NotFound
}

// Lookup is Index with an explicit found flag. Looking up "<unk>" itself
// reports true.
func (v *Vocabulary) Lookup(word string) (WordID, bool) {
	id, ok := v.ids[word]
	return id, ok
}

func (v *Vocabulary) NotFound() WordID { return NotFound }

// BeginSentence returns the ID of <s>, or NotFound when the model has none.
func (v *Vocabulary) BeginSentence() WordID { return v.bos }

// EndSentence returns the ID of </s>, or NotFound when the model has none.
func (v *Vocabulary) EndSentence() WordID { return v.eos }

// Size is the number of entries including <unk>.
func (v *Vocabulary) Size() int { return len(v.words) }

func (v *Vocabulary) Word(id WordID) (string, bool) {
	if int(id) >= len(v.words) {
		return "", false
	}
	return v.words[id], true
}

// Words returns a copy of the entries in ID order.
func (v *Vocabulary) Words() []string {
	out := make([]string, len(v.words))
	copy(out, v.words)
	return out
}
