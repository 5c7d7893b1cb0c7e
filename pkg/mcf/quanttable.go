package mcf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// QuantKind selects which value a codebook reconstructs.
type QuantKind uint8

const (
	KindProb    QuantKind = 0
	KindBackoff QuantKind = 1
)

func (k QuantKind) String() string {
	if k == KindBackoff {
		return "backoff"
	}
	return "prob"
}

// QuantTable is one decoded codebook from the Quant section.
type QuantTable struct {
	Order   int // 1-based n-gram order
	Kind    QuantKind
	Centers []float32
}

// quantLayout lists the tables the Quant section holds for info, in file order:
// prob(1), backoff(1), prob(2), backoff(2), ..., prob(N).
func quantLayout(info NGramInfo) []QuantTable {
	var out []QuantTable
	for i, o := range info.Orders {
		out = append(out, QuantTable{Order: i + 1, Kind: KindProb, Centers: make([]float32, 1<<o.ProbBits)})
		if !info.Top(i) {
			out = append(out, QuantTable{Order: i + 1, Kind: KindBackoff, Centers: make([]float32, 1<<o.BackoffBits)})
		}
	}
	return out
}

// EncodeQuantSection builds a Quant section payload (v1). Tables must match
// the layout implied by info exactly.
func EncodeQuantSection(info NGramInfo, tables []QuantTable) ([]byte, error) {
	layout := quantLayout(info)
	if len(tables) != len(layout) {
		return nil, fmt.Errorf("mcf: %d quant tables, shape needs %d", len(tables), len(layout))
	}
	size := 0
	for i, want := range layout {
		got := tables[i]
		if got.Order != want.Order || got.Kind != want.Kind || len(got.Centers) != len(want.Centers) {
			return nil, fmt.Errorf("mcf: quant table %d is order %d %s with %d centers, want order %d %s with %d",
				i, got.Order, got.Kind, len(got.Centers), want.Order, want.Kind, len(want.Centers))
		}
		size += 4 * len(got.Centers)
	}
	out := make([]byte, size)
	off := 0
	for _, t := range tables {
		for _, c := range t.Centers {
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(c))
			off += 4
		}
	}
	return out, nil
}

// ParseQuantSection decodes the codebooks of a Quant section payload.
func ParseQuantSection(sec []byte, info NGramInfo) ([]QuantTable, error) {
	layout := quantLayout(info)
	need := 0
	for _, t := range layout {
		need += 4 * len(t.Centers)
	}
	if len(sec) != need {
		return nil, fmt.Errorf("%w: quant section is %d bytes, shape needs %d", ErrCorruptFile, len(sec), need)
	}
	off := 0
	for ti := range layout {
		centers := layout[ti].Centers
		for i := range centers {
			v := math.Float32frombits(binary.LittleEndian.Uint32(sec[off:]))
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 1) {
				return nil, fmt.Errorf("%w: order %d %s center %d is %v",
					ErrCorruptFile, layout[ti].Order, layout[ti].Kind, i, v)
			}
			centers[i] = v
			off += 4
		}
	}
	return layout, nil
}
