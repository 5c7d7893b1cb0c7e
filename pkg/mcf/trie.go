package mcf

import "fmt"

// ParseTrieSection splits a Trie section payload into one zero-copy packed
// array per order. The section length must equal exactly what the NGramInfo
// shape implies; the returned slices alias the file data.
func ParseTrieSection(sec []byte, info NGramInfo) ([][]byte, error) {
	sizes := make([]uint64, info.Order)
	var need uint64
	for i := range sizes {
		n, ok := info.ArrayBytes(i)
		if !ok {
			return nil, fmt.Errorf("%w: order %d array size overflows", ErrCorruptFile, i+1)
		}
		sizes[i] = n
		need, ok = addUint64(need, n)
		if !ok {
			return nil, fmt.Errorf("%w: trie size overflows", ErrCorruptFile)
		}
	}
	if uint64(len(sec)) != need {
		return nil, fmt.Errorf("%w: trie section is %d bytes, header counts imply %d",
			ErrCorruptFile, len(sec), need)
	}
	arrays := make([][]byte, info.Order)
	var off uint64
	for i, n := range sizes {
		arrays[i] = sec[off : off+n : off+n]
		off += n
	}
	return arrays, nil
}
