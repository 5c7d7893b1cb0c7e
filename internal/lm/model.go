// Package lm is the n-gram language model: it loads a quantized trie model
// file and scores words and sequences against it with backoff.
//
// A Model is immutable once loaded and safe for concurrent use. Scoring never
// fails; every error is reported by Load.
package lm

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/samcharles93/ngramlm/internal/logger"
	"github.com/samcharles93/ngramlm/internal/mcfstore"
	"github.com/samcharles93/ngramlm/internal/trie"
	"github.com/samcharles93/ngramlm/internal/vocab"
	"github.com/samcharles93/ngramlm/pkg/mcf"
	"github.com/samcharles93/ngramlm/pkg/quant"
)

// LogBase is the base of every probability a Model returns.
const LogBase = 10

// ToNatural converts a log10 probability to a natural logarithm.
func ToNatural(log10 float32) float64 {
	return float64(log10) * math.Ln10
}

type Model struct {
	path   string
	file   *mcfstore.File
	vocab  *vocab.Vocabulary
	quant  *quant.Set
	trie   *trie.Trie
	order  int
	policy Policy
	bos    State
	log    logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// Load opens the model at path. Cancelling ctx between load phases releases
// everything opened so far; no partially loaded model is ever returned.
func Load(ctx context.Context, path string, opts ...Option) (*Model, error) {
	o := buildOptions(opts)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lm: load %s: %w", path, err)
	}
	start := time.Now()

	method := mcfstore.MethodMap
	if o.method == LoadRead {
		method = mcfstore.MethodRead
	}
	f, err := mcfstore.Open(path, method)
	if err != nil {
		return nil, loadError(path, "open", err)
	}
	return finishLoad(ctx, path, f, o, start)
}

// LoadReaderAt reads a model of the given size from r. The data is copied,
// so r is not retained.
func LoadReaderAt(ctx context.Context, r io.ReaderAt, size int64, opts ...Option) (*Model, error) {
	o := buildOptions(opts)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("lm: load: %w", err)
	}
	start := time.Now()
	f, err := mcfstore.OpenReaderAt(r, size)
	if err != nil {
		return nil, loadError("", "open", err)
	}
	return finishLoad(ctx, "", f, o, start)
}

func finishLoad(ctx context.Context, path string, f *mcfstore.File, o options, start time.Time) (_ *Model, err error) {
	defer func() {
		if err != nil {
			_ = f.Close()
		}
	}()
	log := o.log.With("path", path)
	log.Debug("model container opened", "mapped", f.Mapped(), "order", f.Info.Order, "vocab", f.Info.VocabSize)

	cancelled := func() error {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("lm: load %s: %w", path, cerr)
		}
		return nil
	}

	if f.Info.LogBase != LogBase {
		return nil, &LoadError{Path: path, Op: "header", Kind: ErrUnsupportedVersion,
			Err: fmt.Errorf("log base %d", f.Info.LogBase)}
	}
	if err := cancelled(); err != nil {
		return nil, err
	}

	v, err := vocab.New(f.Words)
	if err != nil {
		return nil, loadError(path, "vocabulary", err)
	}
	log.Debug("vocabulary indexed", "words", v.Size())
	if err := cancelled(); err != nil {
		return nil, err
	}

	qs, err := quant.FromSection(f.Quant)
	if err != nil {
		return nil, loadError(path, "quantization", err)
	}
	if err := cancelled(); err != nil {
		return nil, err
	}

	t, err := trie.Open(f.Info, f.Arrays)
	if err != nil {
		return nil, loadError(path, "trie", err)
	}
	if o.verify {
		if err := cancelled(); err != nil {
			return nil, err
		}
		if err := t.Verify(); err != nil {
			return nil, loadError(path, "verify", err)
		}
	}
	if err := cancelled(); err != nil {
		return nil, err
	}

	m := &Model{
		path:   path,
		file:   f,
		vocab:  v,
		quant:  qs,
		trie:   t,
		order:  t.Order(),
		policy: o.policy,
		log:    log,
	}
	if id := v.BeginSentence(); id != vocab.NotFound {
		m.bos = m.nextState(nil, id)
	}
	log.Debug("model loaded",
		"order", m.order,
		"ngrams", m.Counts(),
		"method", o.method.String(),
		"took", time.Since(start),
	)
	return m, nil
}

// Close releases the model file. The model must not be used afterwards.
func (m *Model) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.file.Close()
	})
	return m.closeErr
}

func (m *Model) Path() string { return m.path }

// Order is the highest n-gram order of the model.
func (m *Model) Order() int { return m.order }

func (m *Model) VocabSize() int { return m.vocab.Size() }

func (m *Model) Vocabulary() *vocab.Vocabulary { return m.vocab }

// Policy is the sequence scoring policy the model was loaded with.
func (m *Model) Policy() Policy { return m.policy }

// Counts returns the number of stored n-grams per order, unigrams first.
func (m *Model) Counts() []uint64 {
	out := make([]uint64, m.order)
	for i := range out {
		out[i] = m.trie.Count(i + 1)
	}
	return out
}

// NullContext is the empty state.
func (m *Model) NullContext() State { return State{} }

// BeginSentence is the state after <s>, or the empty state when the model
// has no <s>.
func (m *Model) BeginSentence() State { return m.bos }

// Verify checks that every stored n-gram's suffix is stored too.
func (m *Model) Verify() error {
	if err := m.trie.Verify(); err != nil {
		return &LoadError{Path: m.path, Op: "verify", Kind: ErrCorruptTrie, Err: err}
	}
	return nil
}

// Info summarizes a loaded model.
type Info struct {
	Path        string
	Order       int
	VocabSize   int
	Counts      []uint64
	ProbBits    []int
	BackoffBits []int
	// Granularity is the worst-case quantization error of each order's
	// probability table.
	Granularity []float32
	Mapped      bool
	Header      mcf.MCFHeader
	Sections    []mcf.MCFSection
}

func (m *Model) Info() Info {
	info := Info{
		Path:      m.path,
		Order:     m.order,
		VocabSize: m.vocab.Size(),
		Counts:    m.Counts(),
		Mapped:    m.file.Mapped(),
		Header:    m.file.Header(),
		Sections:  m.file.Sections(),
	}
	for k := 1; k <= m.order; k++ {
		p := m.quant.Prob(k)
		info.ProbBits = append(info.ProbBits, p.Bits())
		info.Granularity = append(info.Granularity, p.Granularity())
		if b := m.quant.Backoff(k); b != nil {
			info.BackoffBits = append(info.BackoffBits, b.Bits())
		}
	}
	return info
}

// NGram is one stored n-gram with its decoded weights.
type NGram struct {
	Words   []string
	Prob    float32
	Backoff float32 // zero at the highest order
}

// Walk visits every stored n-gram, lower orders first within each branch.
// Returning false stops the walk. n.Words is reused between calls.
func (m *Model) Walk(fn func(n NGram) bool) {
	words := make([]string, 0, m.order)
	m.trie.Walk(func(ids []vocab.WordID, e trie.Entry) bool {
		words = words[:0]
		for _, id := range ids {
			w, _ := m.vocab.Word(id)
			words = append(words, w)
		}
		n := NGram{Words: words, Prob: m.quant.Decode(e.Order, mcf.KindProb, e.ProbCode)}
		if e.Order < m.order {
			n.Backoff = m.quant.Decode(e.Order, mcf.KindBackoff, e.BackoffCode)
		}
		return fn(n)
	})
}
