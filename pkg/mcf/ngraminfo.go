package mcf

import (
	"encoding/binary"
	"fmt"
)

const (
	// MaxNGramOrder bounds the order a container may declare.
	MaxNGramOrder = 6

	// MaxCodeBits bounds quantization code widths; tables hold 2^bits centers.
	MaxCodeBits = 16

	// maxFieldBits keeps any packed field readable with one unaligned 64-bit load.
	maxFieldBits = 57

	ngramInfoHeaderSize = 16
	ngramOrderInfoSize  = 16
)

// OrderInfo describes the packed array of one n-gram order.
type OrderInfo struct {
	Count       uint64 // n-grams stored at this order, sentinel excluded
	ProbBits    uint8
	BackoffBits uint8 // zero at the highest order
	WordBits    uint8 // zero at the unigram order, which is indexed by word ID
	PointerBits uint8 // zero at the highest order
}

// NGramInfo is the decoded NGramInfo section: the model's shape.
type NGramInfo struct {
	Order     uint32
	VocabSize uint32
	LogBase   uint32
	Flags     uint32
	Orders    []OrderInfo
}

// Top reports whether the zero-based order index i is the highest order.
func (n NGramInfo) Top(i int) bool {
	return i == int(n.Order)-1
}

// EntryBits is the packed width of one entry at zero-based order index i.
func (n NGramInfo) EntryBits(i int) uint64 {
	o := n.Orders[i]
	bits := uint64(o.WordBits) + uint64(o.ProbBits)
	if !n.Top(i) {
		bits += uint64(o.BackoffBits) + uint64(o.PointerBits)
	}
	return bits
}

// Entries is the number of packed entries at order index i. Every order below
// the highest carries one trailing sentinel holding the end child pointer.
func (n NGramInfo) Entries(i int) uint64 {
	if n.Top(i) {
		return n.Orders[i].Count
	}
	return n.Orders[i].Count + 1
}

// ArrayBytes is the on-disk size of the packed array at order index i.
func (n NGramInfo) ArrayBytes(i int) (uint64, bool) {
	return PackedArrayBytes(n.Entries(i), n.EntryBits(i))
}

// PackedArrayBytes returns the padded byte size of a bit-packed array of n
// entries of the given width. Eight slack bytes follow the data so readers may
// always load a full 64-bit word; the total is rounded up to 8 bytes.
func PackedArrayBytes(n, bitsPerEntry uint64) (uint64, bool) {
	total, ok := mulUint64(n, bitsPerEntry)
	if !ok {
		return 0, false
	}
	b := (total + 7) / 8
	b, ok = addUint64(b, 8)
	if !ok {
		return 0, false
	}
	return alignUp(b, mcfAlign), true
}

// Validate checks internal consistency of the declared shape.
func (n NGramInfo) Validate() error {
	if n.Order == 0 || n.Order > MaxNGramOrder {
		return fmt.Errorf("%w: order %d outside 1..%d", ErrCorruptFile, n.Order, MaxNGramOrder)
	}
	if len(n.Orders) != int(n.Order) {
		return fmt.Errorf("%w: %d order records for order %d", ErrCorruptFile, len(n.Orders), n.Order)
	}
	if n.VocabSize == 0 {
		return fmt.Errorf("%w: empty vocabulary", ErrCorruptFile)
	}
	if n.Orders[0].Count != uint64(n.VocabSize) {
		return fmt.Errorf("%w: %d unigrams for %d vocabulary words", ErrCorruptFile, n.Orders[0].Count, n.VocabSize)
	}
	if n.Orders[0].WordBits != 0 {
		return fmt.Errorf("%w: unigram order must not store word ids", ErrCorruptFile)
	}
	for i, o := range n.Orders {
		if o.ProbBits == 0 || o.ProbBits > MaxCodeBits {
			return fmt.Errorf("%w: order %d prob bits %d", ErrCorruptFile, i+1, o.ProbBits)
		}
		if n.Top(i) {
			if o.BackoffBits != 0 || o.PointerBits != 0 {
				return fmt.Errorf("%w: highest order %d has backoff or pointer fields", ErrCorruptFile, i+1)
			}
		} else {
			if o.BackoffBits == 0 || o.BackoffBits > MaxCodeBits {
				return fmt.Errorf("%w: order %d backoff bits %d", ErrCorruptFile, i+1, o.BackoffBits)
			}
			if o.PointerBits == 0 || o.PointerBits > maxFieldBits {
				return fmt.Errorf("%w: order %d pointer bits %d", ErrCorruptFile, i+1, o.PointerBits)
			}
		}
		if i > 0 && (o.WordBits == 0 || o.WordBits > 32) {
			return fmt.Errorf("%w: order %d word bits %d", ErrCorruptFile, i+1, o.WordBits)
		}
		if _, ok := n.ArrayBytes(i); !ok {
			return fmt.Errorf("%w: order %d array size overflows", ErrCorruptFile, i+1)
		}
	}
	return nil
}

// EncodeNGramInfoSection builds an NGramInfo section payload (v1).
func EncodeNGramInfoSection(info NGramInfo) ([]byte, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, ngramInfoHeaderSize+ngramOrderInfoSize*len(info.Orders))
	binary.LittleEndian.PutUint32(out[0:4], info.Order)
	binary.LittleEndian.PutUint32(out[4:8], info.VocabSize)
	binary.LittleEndian.PutUint32(out[8:12], info.LogBase)
	binary.LittleEndian.PutUint32(out[12:16], info.Flags)
	for i, o := range info.Orders {
		rec := out[ngramInfoHeaderSize+i*ngramOrderInfoSize:]
		binary.LittleEndian.PutUint64(rec[0:8], o.Count)
		rec[8] = o.ProbBits
		rec[9] = o.BackoffBits
		rec[10] = o.WordBits
		rec[11] = o.PointerBits
		// rec[12:16] reserved, zero
	}
	return out, nil
}

// ParseNGramInfoSection decodes and validates an NGramInfo section payload.
func ParseNGramInfoSection(sec []byte) (NGramInfo, error) {
	if len(sec) < ngramInfoHeaderSize {
		return NGramInfo{}, fmt.Errorf("%w: ngraminfo section is %d bytes", ErrCorruptFile, len(sec))
	}
	info := NGramInfo{
		Order:     binary.LittleEndian.Uint32(sec[0:4]),
		VocabSize: binary.LittleEndian.Uint32(sec[4:8]),
		LogBase:   binary.LittleEndian.Uint32(sec[8:12]),
		Flags:     binary.LittleEndian.Uint32(sec[12:16]),
	}
	if info.Order == 0 || info.Order > MaxNGramOrder {
		return NGramInfo{}, fmt.Errorf("%w: order %d outside 1..%d", ErrCorruptFile, info.Order, MaxNGramOrder)
	}
	need := ngramInfoHeaderSize + ngramOrderInfoSize*int(info.Order)
	if len(sec) != need {
		return NGramInfo{}, fmt.Errorf("%w: ngraminfo section is %d bytes, order %d needs %d",
			ErrCorruptFile, len(sec), info.Order, need)
	}
	info.Orders = make([]OrderInfo, info.Order)
	for i := range info.Orders {
		rec := sec[ngramInfoHeaderSize+i*ngramOrderInfoSize:]
		if binary.LittleEndian.Uint32(rec[12:16]) != 0 {
			return NGramInfo{}, fmt.Errorf("%w: order %d reserved bytes set", ErrCorruptFile, i+1)
		}
		info.Orders[i] = OrderInfo{
			Count:       binary.LittleEndian.Uint64(rec[0:8]),
			ProbBits:    rec[8],
			BackoffBits: rec[9],
			WordBits:    rec[10],
			PointerBits: rec[11],
		}
	}
	if err := info.Validate(); err != nil {
		return NGramInfo{}, err
	}
	return info, nil
}
