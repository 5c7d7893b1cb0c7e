package trie

import (
	"bytes"
	"errors"
	"testing"

	"github.com/samcharles93/ngramlm/internal/vocab"
	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// Vocabulary: 0 <unk>, 1 <s>, 2 a, 3 b, 4 c.
func testRecords() [][]Record {
	return [][]Record{
		{
			{Words: []vocab.WordID{0}, ProbCode: 0},
			{Words: []vocab.WordID{1}, ProbCode: 1, BackoffCode: 2},
			{Words: []vocab.WordID{2}, ProbCode: 2, BackoffCode: 3},
			{Words: []vocab.WordID{3}, ProbCode: 3, BackoffCode: 4},
			{Words: []vocab.WordID{4}, ProbCode: 4, BackoffCode: 5},
		},
		{
			{Words: []vocab.WordID{1, 2}, ProbCode: 6, BackoffCode: 7},
			{Words: []vocab.WordID{2, 3}, ProbCode: 8, BackoffCode: 9},
			{Words: []vocab.WordID{2, 4}, ProbCode: 10},
			{Words: []vocab.WordID{3, 4}, ProbCode: 11},
		},
		{
			{Words: []vocab.WordID{1, 2, 3}, ProbCode: 12},
			{Words: []vocab.WordID{2, 3, 4}, ProbCode: 15},
		},
	}
}

func buildTestTrie(t *testing.T, records [][]Record) *Trie {
	t.Helper()

	counts := make([]uint64, len(records))
	for i, r := range records {
		counts[i] = uint64(len(r))
	}
	info, err := Shape(5, counts, []uint8{4, 4, 4}, []uint8{4, 4})
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	arrays, err := Encode(info, records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tr, err := Open(info, arrays)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return tr
}

func TestBitsFor(t *testing.T) {
	t.Parallel()

	cases := map[uint64]uint8{0: 1, 1: 1, 2: 2, 3: 2, 4: 3, 255: 8, 256: 9}
	for v, want := range cases {
		if got := BitsFor(v); got != want {
			t.Fatalf("BitsFor(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestReadWriteBitsUnaligned(t *testing.T) {
	t.Parallel()

	data := make([]byte, 32)
	writeBits(data, 3, 13, 0x1abc)
	writeBits(data, 16, 57, (1<<57)-1)
	writeBits(data, 73, 5, 0x11)
	if got := readBits(data, 3, 13); got != 0x1abc {
		t.Fatalf("field at 3: got %#x", got)
	}
	if got := readBits(data, 16, 57); got != (1<<57)-1 {
		t.Fatalf("field at 16: got %#x", got)
	}
	if got := readBits(data, 73, 5); got != 0x11 {
		t.Fatalf("field at 73: got %#x", got)
	}
}

func TestLookupFollowsContexts(t *testing.T) {
	t.Parallel()

	tr := buildTestTrie(t, testRecords())
	if tr.Order() != 3 || tr.Count(2) != 4 || tr.Count(3) != 2 || tr.Count(4) != 0 {
		t.Fatalf("counts: order %d, %d bigrams, %d trigrams", tr.Order(), tr.Count(2), tr.Count(3))
	}

	e, ok := tr.Lookup(3, []vocab.WordID{2, 3}, 4)
	if !ok || e.ProbCode != 15 || e.Order != 3 {
		t.Fatalf("lookup a b c: %+v, %v", e, ok)
	}
	e, ok = tr.Lookup(2, []vocab.WordID{1}, 2)
	if !ok || e.ProbCode != 6 || e.BackoffCode != 7 || !e.HasChildren() {
		t.Fatalf("lookup <s> a: %+v, %v", e, ok)
	}
	if _, ok := tr.Lookup(2, []vocab.WordID{4}, 2); ok {
		t.Fatalf("c a should not exist")
	}
	if _, ok := tr.Lookup(3, []vocab.WordID{3, 4}, 2); ok {
		t.Fatalf("b c a should not exist")
	}
	if _, ok := tr.Lookup(3, []vocab.WordID{2}, 3); ok {
		t.Fatalf("context length must match order")
	}
	u, ok := tr.Unigram(4)
	if !ok || u.ProbCode != 4 || u.BackoffCode != 5 || u.HasChildren() {
		t.Fatalf("unigram c: %+v", u)
	}
	if _, ok := tr.Unigram(5); ok {
		t.Fatalf("word id past vocabulary must miss")
	}
}

func TestSiblingsFoundByBinarySearch(t *testing.T) {
	t.Parallel()

	tr := buildTestTrie(t, testRecords())
	a, _ := tr.Unigram(2)
	if a.ChildEnd-a.ChildBegin != 2 {
		t.Fatalf("a has %d children, want 2", a.ChildEnd-a.ChildBegin)
	}
	for _, w := range []vocab.WordID{3, 4} {
		if _, ok := tr.Find(a, w); !ok {
			t.Fatalf("child %d of a not found", w)
		}
	}
	for _, w := range []vocab.WordID{0, 1, 2} {
		if _, ok := tr.Find(a, w); ok {
			t.Fatalf("unexpected child %d of a", w)
		}
	}
}

func TestWalkVisitsEveryNGram(t *testing.T) {
	t.Parallel()

	tr := buildTestTrie(t, testRecords())
	var seen [][]vocab.WordID
	tr.Walk(func(words []vocab.WordID, e Entry) bool {
		if e.Order != len(words) {
			t.Fatalf("entry order %d for %v", e.Order, words)
		}
		seen = append(seen, append([]vocab.WordID(nil), words...))
		return true
	})
	if len(seen) != 11 {
		t.Fatalf("walk visited %d n-grams, want 11", len(seen))
	}
	if err := tr.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestEncodeRejectsMissingPrefix(t *testing.T) {
	t.Parallel()

	recs := testRecords()
	// Dropping bigram "a b" orphans trigram "a b c".
	recs[1] = append([]Record{recs[1][0]}, recs[1][2:]...)
	info, err := Shape(5, []uint64{5, 3, 2}, []uint8{4, 4, 4}, []uint8{4, 4})
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if _, err := Encode(info, recs); !errors.Is(err, ErrMissingContext) {
		t.Fatalf("got %v, want ErrMissingContext", err)
	}
}

func TestEncodeRejectsUnsortedRecords(t *testing.T) {
	t.Parallel()

	recs := testRecords()
	recs[1][1], recs[1][2] = recs[1][2], recs[1][1]
	info, err := Shape(5, []uint64{5, 4, 2}, []uint8{4, 4, 4}, []uint8{4, 4})
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if _, err := Encode(info, recs); !errors.Is(err, ErrUnsorted) {
		t.Fatalf("got %v, want ErrUnsorted", err)
	}
}

func TestVerifyReportsMissingSuffix(t *testing.T) {
	t.Parallel()

	recs := testRecords()
	// Dropping bigram "b c" leaves trigram "a b c" without its suffix.
	recs[1] = recs[1][:3]
	tr := buildTestTrie(t, recs)
	if err := tr.Verify(); !errors.Is(err, ErrMissingContext) {
		t.Fatalf("got %v, want ErrMissingContext", err)
	}
}

func TestOpenRejectsCorruptArrays(t *testing.T) {
	t.Parallel()

	recs := testRecords()
	info, err := Shape(5, []uint64{5, 4, 2}, []uint8{4, 4, 4}, []uint8{4, 4})
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	clean, err := Encode(info, recs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	clone := func() [][]byte {
		out := make([][]byte, len(clean))
		for i := range clean {
			out[i] = bytes.Clone(clean[i])
		}
		return out
	}

	uni := layout{prob: 4, backoff: 4, pointer: info.Orders[0].PointerBits}
	bi := layout{word: info.Orders[1].WordBits, prob: 4, backoff: 4, pointer: info.Orders[1].PointerBits}

	cases := map[string]func([][]byte){
		"pointer decreases": func(a [][]byte) {
			writeBits(a[0], 3*uni.total()+uni.pointerOff(), uni.pointer, 0)
		},
		"end pointer short": func(a [][]byte) {
			writeBits(a[1], 4*bi.total()+bi.pointerOff(), bi.pointer, 1)
		},
		"siblings unsorted": func(a [][]byte) {
			writeBits(a[1], 2*bi.total(), bi.word, 3)
		},
		"word outside vocabulary": func(a [][]byte) {
			writeBits(a[1], 0, bi.word, 7)
		},
		"short array": func(a [][]byte) {
			a[2] = a[2][:4]
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			arrays := clone()
			mutate(arrays)
			if _, err := Open(info, arrays); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("got %v, want ErrCorrupt", err)
			}
		})
	}

	bad := info
	bad.Orders = append([]mcf.OrderInfo(nil), info.Orders...)
	bad.Orders[0].PointerBits = 1
	if _, err := Open(bad, clone()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("narrow pointer: got %v, want ErrCorrupt", err)
	}
}
