package vocab

import (
	"errors"
	"testing"
)

func newTestVocab(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := New([]string{Unknown, BeginSentence, EndSentence, "the", "quick", "fox"})
	if err != nil {
		t.Fatalf("new vocabulary: %v", err)
	}
	return v
}

func TestIndexIsDeterministicAndTotal(t *testing.T) {
	t.Parallel()

	v := newTestVocab(t)
	for _, w := range []string{"the", "quick", "fox", "xyzzy123", "", "The"} {
		first := v.Index(w)
		if second := v.Index(w); first != second {
			t.Fatalf("Index(%q) not deterministic: %d then %d", w, first, second)
		}
		if int(first) >= v.Size() {
			t.Fatalf("Index(%q) = %d outside vocabulary of %d", w, first, v.Size())
		}
	}
	if got := v.Index("quick"); got != 4 {
		t.Fatalf("Index(quick) = %d, want file-order id 4", got)
	}
}

func TestNotFoundIsDistinctFromRealWords(t *testing.T) {
	t.Parallel()

	v := newTestVocab(t)
	if got := v.Index("xyzzy123"); got != v.NotFound() {
		t.Fatalf("unknown word: got %d want %d", got, v.NotFound())
	}
	for i, w := range v.Words() {
		if w == Unknown {
			continue
		}
		if id := v.Index(w); id == NotFound {
			t.Fatalf("real word %q (entry %d) collides with NotFound", w, i)
		}
	}
	if _, ok := v.Lookup("xyzzy123"); ok {
		t.Fatalf("Lookup reported an unknown word as found")
	}
}

func TestSentenceMarkers(t *testing.T) {
	t.Parallel()

	v := newTestVocab(t)
	if v.BeginSentence() != 1 || v.EndSentence() != 2 {
		t.Fatalf("markers: <s>=%d </s>=%d", v.BeginSentence(), v.EndSentence())
	}
	bare, err := New([]string{Unknown, "a"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if bare.BeginSentence() != NotFound {
		t.Fatalf("missing <s> should map to NotFound")
	}
	if w, ok := bare.Word(1); !ok || w != "a" {
		t.Fatalf("Word(1) = %q, %v", w, ok)
	}
	if _, ok := bare.Word(2); ok {
		t.Fatalf("Word past the end reported ok")
	}
}

func TestNewRejectsMalformedEntries(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"empty":        nil,
		"no unk first": {"the", Unknown},
		"duplicate":    {Unknown, "the", "the"},
		"empty word":   {Unknown, ""},
	}
	for name, words := range cases {
		if _, err := New(words); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: got %v, want ErrCorrupt", name, err)
		}
	}
}
