package trie

import (
	"encoding/binary"
	"math/bits"
)

// BitsFor returns the field width needed to store every value in 0..maxValue.
// The result is at least 1.
func BitsFor(maxValue uint64) uint8 {
	if maxValue == 0 {
		return 1
	}
	return uint8(bits.Len64(maxValue))
}

func mask(width uint8) uint64 {
	if width == 0 {
		return 0
	}
	return (uint64(1) << width) - 1
}

// readBits loads width bits starting at bit offset bit. Arrays carry 8 bytes
// of slack past their last entry, so the 64-bit load never runs off the end.
func readBits(data []byte, bit uint64, width uint8) uint64 {
	if width == 0 {
		return 0
	}
	off := bit >> 3
	v := binary.LittleEndian.Uint64(data[off : off+8])
	return (v >> (bit & 7)) & mask(width)
}

func writeBits(data []byte, bit uint64, width uint8, value uint64) {
	if width == 0 {
		return
	}
	off := bit >> 3
	shift := bit & 7
	m := mask(width) << shift
	v := binary.LittleEndian.Uint64(data[off : off+8])
	v = v&^m | (value<<shift)&m
	binary.LittleEndian.PutUint64(data[off:off+8], v)
}

// layout is the packed field order of one entry: word, prob, backoff, pointer.
type layout struct {
	word    uint8
	prob    uint8
	backoff uint8
	pointer uint8
}

func (l layout) total() uint64 {
	return uint64(l.word) + uint64(l.prob) + uint64(l.backoff) + uint64(l.pointer)
}

func (l layout) probOff() uint64    { return uint64(l.word) }
func (l layout) backoffOff() uint64 { return uint64(l.word) + uint64(l.prob) }
func (l layout) pointerOff() uint64 { return uint64(l.word) + uint64(l.prob) + uint64(l.backoff) }
