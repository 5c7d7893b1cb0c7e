package quant

import (
	"fmt"

	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// Set holds the probability and backoff codebooks of every order.
// Orders are 1-based; the highest order has no backoff table.
type Set struct {
	prob    []*Table
	backoff []*Table
}

// NewSet assembles a set from per-order tables. backoff must have one table
// fewer than prob.
func NewSet(prob, backoff []*Table) (*Set, error) {
	if len(prob) == 0 || len(backoff) != len(prob)-1 {
		return nil, fmt.Errorf("%w: %d prob and %d backoff tables", ErrInvalidTable, len(prob), len(backoff))
	}
	return &Set{prob: prob, backoff: backoff}, nil
}

// FromSection builds a set from the decoded Quant section tables.
func FromSection(tables []mcf.QuantTable) (*Set, error) {
	var prob, backoff []*Table
	for _, qt := range tables {
		t, err := NewTable(qt.Centers)
		if err != nil {
			return nil, fmt.Errorf("order %d %s table: %w", qt.Order, qt.Kind, err)
		}
		switch qt.Kind {
		case mcf.KindProb:
			prob = append(prob, t)
		case mcf.KindBackoff:
			backoff = append(backoff, t)
		}
	}
	return NewSet(prob, backoff)
}

func (s *Set) Orders() int { return len(s.prob) }

func (s *Set) Prob(order int) *Table { return s.prob[order-1] }

// Backoff returns nil at the highest order.
func (s *Set) Backoff(order int) *Table {
	if order > len(s.backoff) {
		return nil
	}
	return s.backoff[order-1]
}

// Decode reconstructs a code of the given order and kind.
func (s *Set) Decode(order int, kind mcf.QuantKind, code uint32) float32 {
	if kind == mcf.KindBackoff {
		return s.Backoff(order).Decode(code)
	}
	return s.Prob(order).Decode(code)
}

// Section lays the set out in Quant section order.
func (s *Set) Section() []mcf.QuantTable {
	var out []mcf.QuantTable
	for i, p := range s.prob {
		out = append(out, mcf.QuantTable{Order: i + 1, Kind: mcf.KindProb, Centers: p.Centers()})
		if i < len(s.backoff) {
			out = append(out, mcf.QuantTable{Order: i + 1, Kind: mcf.KindBackoff, Centers: s.backoff[i].Centers()})
		}
	}
	return out
}
