// Package lmbuild compiles an ARPA backoff model into the quantized trie
// container that package lm loads.
package lmbuild

import (
	"context"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/samcharles93/ngramlm/internal/arpa"
	"github.com/samcharles93/ngramlm/internal/logger"
	"github.com/samcharles93/ngramlm/internal/mcfstore"
	"github.com/samcharles93/ngramlm/internal/trie"
	"github.com/samcharles93/ngramlm/pkg/mcf"
	"github.com/samcharles93/ngramlm/pkg/quant"
)

const (
	DefaultProbBits    = 8
	DefaultBackoffBits = 8

	// DefaultUnknownProb is the <unk> unigram probability used when the
	// ARPA model has none.
	DefaultUnknownProb float32 = -100

	// floorProb replaces -inf probabilities, conventionally written for <s>.
	floorProb float32 = -99
)

// Options configure Build. Every field is taken as given; start from
// DefaultOptions to get the stock settings.
type Options struct {
	ProbBits    int
	BackoffBits int
	UnknownProb float32
	Logger      logger.Logger
}

// DefaultOptions returns 8-bit probability and backoff codes and the default
// <unk> probability.
func DefaultOptions() Options {
	return Options{
		ProbBits:    DefaultProbBits,
		BackoffBits: DefaultBackoffBits,
		UnknownProb: DefaultUnknownProb,
	}
}

// Stats describes a built model.
type Stats struct {
	Order     int
	VocabSize int
	Counts    []uint64
	// Synthesized counts, per order, the context n-grams added so that every
	// stored n-gram's prefix and suffix are stored too.
	Synthesized        []int
	ProbGranularity    []float32
	BackoffGranularity []float32
	Bytes              int64
}

// BuildFile reads the ARPA model at arpaPath and writes the container to out.
func BuildFile(ctx context.Context, arpaPath, out string, opts Options) (Stats, error) {
	f, err := os.Open(arpaPath)
	if err != nil {
		return Stats{}, fmt.Errorf("lmbuild: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := arpa.Read(f)
	if err != nil {
		return Stats{}, fmt.Errorf("lmbuild: read %s: %w", arpaPath, err)
	}
	return Build(ctx, m, out, opts)
}

// Build compiles m and writes it to out. The output appears atomically.
func Build(ctx context.Context, m *arpa.Model, out string, opts Options) (Stats, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	log := opts.Logger.With("out", out)
	start := time.Now()

	if m.Order() == 0 || m.Order() > mcf.MaxNGramOrder {
		return Stats{}, fmt.Errorf("lmbuild: order %d outside 1..%d", m.Order(), mcf.MaxNGramOrder)
	}
	for _, bits := range []int{opts.ProbBits, opts.BackoffBits} {
		if bits < 1 || bits > mcf.MaxCodeBits {
			return Stats{}, fmt.Errorf("lmbuild: %d quantization bits outside 1..%d", bits, mcf.MaxCodeBits)
		}
	}

	g, err := newGraph(m, opts.UnknownProb)
	if err != nil {
		return Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	synth := g.closeContexts()
	log.Debug("contexts completed", "synthesized", synth)
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	orders := g.sorted()
	st := Stats{Order: len(orders), VocabSize: len(g.words), Synthesized: synth}

	probTables := make([]*quant.Table, len(orders))
	backoffTables := make([]*quant.Table, 0, len(orders)-1)
	for i, grams := range orders {
		probs := make([]float32, len(grams))
		for j, gr := range grams {
			probs[j] = gr.prob
		}
		if probTables[i], err = quant.Train(probs, opts.ProbBits); err != nil {
			return Stats{}, fmt.Errorf("lmbuild: order %d probabilities: %w", i+1, err)
		}
		st.ProbGranularity = append(st.ProbGranularity, probTables[i].Granularity())
		if i == len(orders)-1 {
			continue
		}
		bos := make([]float32, len(grams))
		for j, gr := range grams {
			bos[j] = gr.backoff
		}
		t, err := trainBackoff(bos, opts.BackoffBits)
		if err != nil {
			return Stats{}, fmt.Errorf("lmbuild: order %d backoffs: %w", i+1, err)
		}
		backoffTables = append(backoffTables, t)
		st.BackoffGranularity = append(st.BackoffGranularity, t.Granularity())
	}
	set, err := quant.NewSet(probTables, backoffTables)
	if err != nil {
		return Stats{}, fmt.Errorf("lmbuild: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	records := make([][]trie.Record, len(orders))
	counts := make([]uint64, len(orders))
	probBits := make([]uint8, len(orders))
	backoffBits := make([]uint8, len(orders))
	for i, grams := range orders {
		counts[i] = uint64(len(grams))
		probBits[i] = uint8(opts.ProbBits)
		backoffBits[i] = uint8(opts.BackoffBits)
		recs := make([]trie.Record, len(grams))
		for j, gr := range grams {
			recs[j] = trie.Record{Words: gr.ids, ProbCode: probTables[i].Encode(gr.prob)}
			if i < len(orders)-1 {
				recs[j].BackoffCode = backoffTables[i].Encode(gr.backoff)
			}
		}
		records[i] = recs
	}
	st.Counts = counts

	info, err := trie.Shape(uint32(len(g.words)), counts, probBits, backoffBits[:len(orders)-1])
	if err != nil {
		return Stats{}, fmt.Errorf("lmbuild: %w", err)
	}
	arrays, err := trie.Encode(info, records)
	if err != nil {
		return Stats{}, fmt.Errorf("lmbuild: pack trie: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	if err := mcfstore.Write(out, mcfstore.Contents{
		Info:   info,
		Words:  g.words,
		Quant:  set.Section(),
		Arrays: arrays,
	}); err != nil {
		return Stats{}, fmt.Errorf("lmbuild: write %s: %w", out, err)
	}
	if fi, err := os.Stat(out); err == nil {
		st.Bytes = fi.Size()
	}
	log.Info("model built",
		"order", st.Order,
		"vocab", st.VocabSize,
		"ngrams", st.Counts,
		"bytes", st.Bytes,
		"took", time.Since(start),
	)
	return st, nil
}

// trainBackoff trains a backoff codebook whose center nearest zero is exactly
// zero, so contexts without a backoff keep a zero weight after quantization.
func trainBackoff(values []float32, bits int) (*quant.Table, error) {
	t, err := quant.Train(values, bits)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(values, 0) {
		return t, nil
	}
	centers := t.Centers()
	centers[t.Encode(0)] = 0
	return quant.NewTable(centers)
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
