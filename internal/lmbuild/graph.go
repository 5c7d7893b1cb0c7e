package lmbuild

import (
	"fmt"
	"math"
	"slices"

	"github.com/samcharles93/ngramlm/internal/arpa"
	"github.com/samcharles93/ngramlm/internal/vocab"
	"github.com/samcharles93/ngramlm/pkg/mcf"
)

type key [mcf.MaxNGramOrder]vocab.WordID

func keyOf(ids []vocab.WordID) key {
	var k key
	copy(k[:], ids)
	return k
}

type gram struct {
	ids     []vocab.WordID
	prob    float32
	backoff float32
}

// graph is the mutable n-gram set between parsing and packing.
type graph struct {
	words  []string
	ids    map[string]vocab.WordID
	orders []map[key]*gram
}

func newGraph(m *arpa.Model, unkProb float32) (*graph, error) {
	g := &graph{
		words:  []string{vocab.Unknown},
		ids:    map[string]vocab.WordID{vocab.Unknown: vocab.NotFound},
		orders: make([]map[key]*gram, m.Order()),
	}
	for i := range g.orders {
		g.orders[i] = make(map[key]*gram, len(m.NGrams[i]))
	}
	g.orders[0][keyOf([]vocab.WordID{vocab.NotFound})] = &gram{ids: []vocab.WordID{vocab.NotFound}, prob: unkProb}

	for _, e := range m.NGrams[0] {
		w := e.Words[0]
		if w == vocab.Unknown {
			continue
		}
		if _, dup := g.ids[w]; dup {
			return nil, fmt.Errorf("lmbuild: duplicate unigram %q", w)
		}
		g.ids[w] = vocab.WordID(len(g.words))
		g.words = append(g.words, w)
	}
	if uint64(len(g.words)) > math.MaxUint32 {
		return nil, fmt.Errorf("lmbuild: vocabulary of %d words exceeds the word id range", len(g.words))
	}

	for i, entries := range m.NGrams {
		for _, e := range entries {
			ids := make([]vocab.WordID, len(e.Words))
			for j, w := range e.Words {
				id, ok := g.ids[w]
				if !ok {
					return nil, fmt.Errorf("lmbuild: %d-gram %q uses %q, which has no unigram", i+1, e.Words, w)
				}
				ids[j] = id
			}
			prob := e.Prob
			if math.IsInf(float64(prob), -1) {
				prob = floorProb
			}
			if !finite(prob) || !finite(e.Backoff) {
				return nil, fmt.Errorf("lmbuild: %d-gram %q has a non-finite weight", i+1, e.Words)
			}
			g.orders[i][keyOf(ids)] = &gram{ids: ids, prob: prob, backoff: e.Backoff}
		}
	}
	return g, nil
}

func (g *graph) find(ids []vocab.WordID) (*gram, bool) {
	gr, ok := g.orders[len(ids)-1][keyOf(ids)]
	return gr, ok
}

// score is the backoff log10 probability of the last word of ids given the
// rest, computed over the current n-gram set.
func (g *graph) score(ids []vocab.WordID) float32 {
	var bo float32
	for start := 0; start < len(ids); start++ {
		if gr, ok := g.find(ids[start:]); ok {
			return bo + gr.prob
		}
		if ctx, ok := g.find(ids[start : len(ids)-1]); ok {
			bo += ctx.backoff
		}
	}
	// Unreachable: every word has a unigram.
	return bo
}

// closeContexts adds the missing prefix and suffix of every n-gram, highest
// order first. An added n-gram carries its backoff probability and a zero
// backoff weight, which leaves every score unchanged.
func (g *graph) closeContexts() []int {
	added := make([]int, len(g.orders))
	for k := len(g.orders); k >= 2; k-- {
		grams := make([]*gram, 0, len(g.orders[k-1]))
		for _, gr := range g.orders[k-1] {
			grams = append(grams, gr)
		}
		for _, gr := range grams {
			for _, sub := range [][]vocab.WordID{gr.ids[:k-1], gr.ids[1:]} {
				if _, ok := g.find(sub); ok {
					continue
				}
				ids := slices.Clone(sub)
				g.orders[k-2][keyOf(ids)] = &gram{ids: ids, prob: g.score(ids)}
				added[k-2]++
			}
		}
	}
	return added
}

// sorted returns each order's n-grams in trie order.
func (g *graph) sorted() [][]*gram {
	out := make([][]*gram, len(g.orders))
	for i, m := range g.orders {
		grams := make([]*gram, 0, len(m))
		for _, gr := range m {
			grams = append(grams, gr)
		}
		slices.SortFunc(grams, func(a, b *gram) int { return slices.Compare(a.ids, b.ids) })
		out[i] = grams
	}
	return out
}
