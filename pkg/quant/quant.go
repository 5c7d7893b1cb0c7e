// Package quant stores n-gram probabilities and backoff weights as small
// codebook indices. A Table maps a code of Bits() bits to a reconstructed
// log-probability; a Set holds the tables of every order of a model.
package quant

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/samcharles93/ngramlm/pkg/mcf"
)

var ErrInvalidTable = errors.New("quant: invalid table")

// Table is an immutable, sorted codebook of 2^bits centers.
type Table struct {
	centers []float32
	bits    int
}

// NewTable wraps centers as a codebook. The length must be a power of two and
// the centers must be sorted ascending so Encode can search them.
func NewTable(centers []float32) (*Table, error) {
	n := len(centers)
	if n < 2 || n&(n-1) != 0 || n > 1<<mcf.MaxCodeBits {
		return nil, fmt.Errorf("%w: %d centers is not a power of two in 2..%d", ErrInvalidTable, n, 1<<mcf.MaxCodeBits)
	}
	for i, c := range centers {
		if math.IsNaN(float64(c)) {
			return nil, fmt.Errorf("%w: center %d is NaN", ErrInvalidTable, i)
		}
		if i > 0 && c < centers[i-1] {
			return nil, fmt.Errorf("%w: center %d out of order", ErrInvalidTable, i)
		}
	}
	own := make([]float32, n)
	copy(own, centers)
	return &Table{centers: own, bits: bits.TrailingZeros(uint(n))}, nil
}

func (t *Table) Bits() int { return t.bits }

func (t *Table) Len() int { return len(t.centers) }

// Centers returns a copy of the codebook.
func (t *Table) Centers() []float32 {
	out := make([]float32, len(t.centers))
	copy(out, t.centers)
	return out
}

// Decode reconstructs the value of code. Codes are validated against the
// table size when a trie is opened, so the lookup is unchecked beyond Go's
// own bounds check.
func (t *Table) Decode(code uint32) float32 {
	return t.centers[code]
}

// Encode returns the code of the center nearest to v. Ties go to the lower code.
func (t *Table) Encode(v float32) uint32 {
	c := t.centers
	i := sort.Search(len(c), func(i int) bool { return c[i] >= v })
	switch {
	case i == 0:
		return 0
	case i == len(c):
		return uint32(len(c) - 1)
	}
	if v-c[i-1] <= c[i]-v {
		return uint32(i - 1)
	}
	return uint32(i)
}

// Granularity bounds the reconstruction error of any value between the first
// and last center: |Decode(Encode(v)) - v| <= Granularity().
func (t *Table) Granularity() float32 {
	var gap float32
	for i := 1; i < len(t.centers); i++ {
		gap = max(gap, t.centers[i]-t.centers[i-1])
	}
	return gap / 2
}

// Train builds a table of 2^bits centers for values. Sorted values are split
// into equal-count bins and each center is its bin's mean, except that the
// first and last centers are pinned to the minimum and maximum so every
// training value lies inside the table's range. With no more distinct values
// than centers, the distinct values themselves are used and Encode is exact.
func Train(values []float32, nbits int) (*Table, error) {
	if nbits < 1 || nbits > mcf.MaxCodeBits {
		return nil, fmt.Errorf("%w: %d bits outside 1..%d", ErrInvalidTable, nbits, mcf.MaxCodeBits)
	}
	n := 1 << nbits
	if len(values) == 0 {
		return NewTable(make([]float32, n))
	}
	sorted := make([]float32, len(values))
	copy(sorted, values)
	for i, v := range sorted {
		if math.IsNaN(float64(v)) {
			return nil, fmt.Errorf("%w: training value %d is NaN", ErrInvalidTable, i)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	distinct := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}

	centers := make([]float32, n)
	if len(distinct) <= n {
		copy(centers, distinct)
		for i := len(distinct); i < n; i++ {
			centers[i] = distinct[len(distinct)-1]
		}
		return NewTable(centers)
	}

	for b := range n {
		lo := b * len(sorted) / n
		hi := (b + 1) * len(sorted) / n
		var sum float64
		for _, v := range sorted[lo:hi] {
			sum += float64(v)
		}
		centers[b] = float32(sum / float64(hi-lo))
	}
	centers[0] = sorted[0]
	centers[n-1] = sorted[len(sorted)-1]
	return NewTable(centers)
}
