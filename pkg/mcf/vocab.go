package mcf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVocabSection builds a Vocab section payload (v1): a u32 count followed
// by one u32 length-prefixed UTF-8 string per word, in word ID order.
func EncodeVocabSection(words []string) ([]byte, error) {
	if len(words) > math.MaxUint32 {
		return nil, fmt.Errorf("mcf: %d vocabulary words exceed u32", len(words))
	}
	size := 4
	for _, w := range words {
		if len(w) > math.MaxUint32 {
			return nil, fmt.Errorf("mcf: vocabulary word of %d bytes", len(w))
		}
		size += 4 + len(w)
	}
	out := make([]byte, size)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(words)))
	off := 4
	for _, w := range words {
		binary.LittleEndian.PutUint32(out[off:off+4], uint32(len(w)))
		off += 4
		off += copy(out[off:], w)
	}
	return out, nil
}

// ParseVocabSection decodes a Vocab section payload into words in ID order.
// Only framing is checked here; uniqueness is the vocabulary's concern.
func ParseVocabSection(sec []byte) ([]string, error) {
	if len(sec) < 4 {
		return nil, fmt.Errorf("%w: vocab section is %d bytes", ErrCorruptFile, len(sec))
	}
	count := binary.LittleEndian.Uint32(sec[0:4])
	// Each word needs at least its length prefix.
	if uint64(count)*4 > uint64(len(sec)-4) {
		return nil, fmt.Errorf("%w: vocab count %d cannot fit in %d bytes", ErrCorruptFile, count, len(sec))
	}
	words := make([]string, 0, count)
	off := uint64(4)
	end := uint64(len(sec))
	for i := uint32(0); i < count; i++ {
		if off+4 > end {
			return nil, fmt.Errorf("%w: vocab entry %d length prefix past section end", ErrCorruptFile, i)
		}
		n := uint64(binary.LittleEndian.Uint32(sec[off : off+4]))
		off += 4
		if n > end-off {
			return nil, fmt.Errorf("%w: vocab entry %d length %d past section end", ErrCorruptFile, i, n)
		}
		words = append(words, string(sec[off:off+n]))
		off += n
	}
	if off != end {
		return nil, fmt.Errorf("%w: %d trailing bytes after vocab entries", ErrCorruptFile, end-off)
	}
	return words, nil
}
