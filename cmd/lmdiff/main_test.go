package main

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/samcharles93/ngramlm/internal/lm"
)

func seq(probs []float32, lengths []int) lm.SequenceScore {
	s := lm.SequenceScore{}
	for i, p := range probs {
		s.Words = append(s.Words, lm.WordScore{Prob: p, NgramLength: lengths[i]})
		s.Total += float64(p)
	}
	return s
}

func TestDiffSequence(t *testing.T) {
	t.Parallel()

	a := seq([]float32{-1, -0.5, -2}, []int{1, 2, 3})
	b := seq([]float32{-1, -0.75, -1.5}, []int{1, 2, 2})
	s := diffSequence(a, b)

	if s.Words != 3 || s.LengthMatch != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if math.Abs(s.MaxAbs-0.5) > 1e-9 || math.Abs(s.MeanAbs-0.25) > 1e-9 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if want := math.Sqrt((0.0625 + 0.25) / 3); math.Abs(s.RMSE-want) > 1e-9 {
		t.Fatalf("rmse: got %v, want %v", s.RMSE, want)
	}
	if math.Abs(s.TotalDelta-0.25) > 1e-9 {
		t.Fatalf("total delta: got %v", s.TotalDelta)
	}
}

func TestDiffAccumulatorWeightsByWords(t *testing.T) {
	t.Parallel()

	var acc diffAccumulator
	acc.add(diffStats{Words: 1, MaxAbs: 1, MeanAbs: 1, RMSE: 1, LengthMatch: 1})
	acc.add(diffStats{Words: 3, MaxAbs: 0.1, MeanAbs: 0, RMSE: 0, LengthMatch: 3})

	if acc.count != 2 || acc.words != 4 || acc.maxAbs != 1 {
		t.Fatalf("unexpected accumulator: %+v", acc)
	}
	if mean := acc.sumAbs / float64(acc.words); math.Abs(mean-0.25) > 1e-9 {
		t.Fatalf("mean: got %v, want 0.25", mean)
	}
	if acc.lengthMatch != 4 {
		t.Fatalf("length match: got %d", acc.lengthMatch)
	}
}

func TestDiffSequenceEmpty(t *testing.T) {
	t.Parallel()

	if s := diffSequence(lm.SequenceScore{}, lm.SequenceScore{}); s.Words != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestClipKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	short := "the quick fox"
	if got := clip(short, 60); got != short {
		t.Fatalf("short text changed: %q", got)
	}
	long := strings.Repeat("é", 59) + "ab"
	got := clip(long, 60)
	if !utf8.ValidString(got) {
		t.Fatalf("clip produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("é", 57) + "..."; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := clip(strings.Repeat("語", 60), 60); utf8.RuneCountInString(got) != 60 {
		t.Fatalf("60 runes should fit: %q", got)
	}
}
