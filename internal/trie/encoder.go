package trie

import (
	"fmt"
	"slices"

	"github.com/samcharles93/ngramlm/internal/vocab"
	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// Record is one n-gram ready for packing. Words run oldest first; the codes
// index the order's quantization tables.
type Record struct {
	Words       []vocab.WordID
	ProbCode    uint32
	BackoffCode uint32
}

// Shape returns the NGramInfo for a model with the given vocabulary size,
// per-order n-gram counts and code widths. Word and pointer widths are the
// smallest that address the vocabulary and the next order.
func Shape(vocabSize uint32, counts []uint64, probBits, backoffBits []uint8) (mcf.NGramInfo, error) {
	n := len(counts)
	if n == 0 || n > mcf.MaxNGramOrder {
		return mcf.NGramInfo{}, fmt.Errorf("trie: order %d outside 1..%d", n, mcf.MaxNGramOrder)
	}
	if len(probBits) != n || len(backoffBits) < n-1 {
		return mcf.NGramInfo{}, fmt.Errorf("trie: code widths do not cover %d orders", n)
	}
	info := mcf.NGramInfo{
		Order:     uint32(n),
		VocabSize: vocabSize,
		LogBase:   10,
		Flags:     0,
		Orders:    make([]mcf.OrderInfo, n),
	}
	for i := range counts {
		o := mcf.OrderInfo{Count: counts[i], ProbBits: probBits[i]}
		if i > 0 {
			o.WordBits = BitsFor(uint64(vocabSize) - 1)
		}
		if i < n-1 {
			o.BackoffBits = backoffBits[i]
			o.PointerBits = BitsFor(counts[i+1])
		}
		info.Orders[i] = o
	}
	if err := info.Validate(); err != nil {
		return mcf.NGramInfo{}, err
	}
	return info, nil
}

// Encode packs records into one array per order. records[k] holds the order
// k+1 n-grams sorted by their word sequence; unigrams must cover every word ID
// in order. Every n-gram's context must itself be present one order down.
func Encode(info mcf.NGramInfo, records [][]Record) ([][]byte, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if len(records) != int(info.Order) {
		return nil, fmt.Errorf("trie: %d record orders for order %d", len(records), info.Order)
	}
	arrays := make([][]byte, info.Order)
	for i, recs := range records {
		o := info.Orders[i]
		if uint64(len(recs)) != o.Count {
			return nil, fmt.Errorf("trie: order %d has %d records, shape declares %d", i+1, len(recs), o.Count)
		}
		size, ok := info.ArrayBytes(i)
		if !ok {
			return nil, fmt.Errorf("trie: order %d array size overflows", i+1)
		}
		arrays[i] = make([]byte, size)
		if err := checkRecords(i, recs, info); err != nil {
			return nil, err
		}
	}

	for i, recs := range records {
		l := layout{word: info.Orders[i].WordBits, prob: info.Orders[i].ProbBits}
		top := info.Top(i)
		if !top {
			l.backoff = info.Orders[i].BackoffBits
			l.pointer = info.Orders[i].PointerBits
		}
		data := arrays[i]
		stride := l.total()

		var children []Record
		if !top {
			children = records[i+1]
		}
		child := 0
		for idx, r := range recs {
			base := uint64(idx) * stride
			if i > 0 {
				writeBits(data, base, l.word, uint64(r.Words[i]))
			}
			writeBits(data, base+l.probOff(), l.prob, uint64(r.ProbCode))
			if top {
				continue
			}
			writeBits(data, base+l.backoffOff(), l.backoff, uint64(r.BackoffCode))
			writeBits(data, base+l.pointerOff(), l.pointer, uint64(child))
			for child < len(children) && slices.Equal(children[child].Words[:i+1], r.Words) {
				child++
			}
		}
		if top {
			continue
		}
		writeBits(data, uint64(len(recs))*stride+l.pointerOff(), l.pointer, uint64(child))
		if child != len(children) {
			return nil, fmt.Errorf("%w: order %d n-gram %v", ErrMissingContext, i+2, children[child].Words)
		}
	}
	return arrays, nil
}

func checkRecords(i int, recs []Record, info mcf.NGramInfo) error {
	o := info.Orders[i]
	for idx, r := range recs {
		if len(r.Words) != i+1 {
			return fmt.Errorf("trie: order %d record %d has %d words", i+1, idx, len(r.Words))
		}
		for _, w := range r.Words {
			if uint64(w) >= uint64(info.VocabSize) {
				return fmt.Errorf("trie: order %d record %d word id %d outside vocabulary", i+1, idx, w)
			}
		}
		if i == 0 && r.Words[0] != vocab.WordID(idx) {
			return fmt.Errorf("%w: unigram %d holds word id %d", ErrUnsorted, idx, r.Words[0])
		}
		if idx > 0 && slices.Compare(recs[idx-1].Words, r.Words) >= 0 {
			return fmt.Errorf("%w: order %d records %d and %d", ErrUnsorted, i+1, idx-1, idx)
		}
		if uint64(r.ProbCode) > mask(o.ProbBits) {
			return fmt.Errorf("trie: order %d record %d prob code %d exceeds %d bits", i+1, idx, r.ProbCode, o.ProbBits)
		}
		if !info.Top(i) && uint64(r.BackoffCode) > mask(o.BackoffBits) {
			return fmt.Errorf("trie: order %d record %d backoff code %d exceeds %d bits", i+1, idx, r.BackoffCode, o.BackoffBits)
		}
	}
	return nil
}
