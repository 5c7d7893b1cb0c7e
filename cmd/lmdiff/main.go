// Command lmdiff compares the word scores two models assign to the same
// corpus, typically one model built at two quantization widths.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/samcharles93/ngramlm/internal/lm"
)

type diffStats struct {
	Words       int
	MaxAbs      float64
	MeanAbs     float64
	RMSE        float64
	TotalDelta  float64
	LengthMatch int
}

func main() {
	var (
		aPath      string
		bPath      string
		corpusPath string
		bos        string
		normalize  bool
		showSeqs   bool
		limit      int
	)

	flag.StringVar(&aPath, "a", "", "path to the reference .mcf")
	flag.StringVar(&bPath, "b", "", "path to the .mcf to compare")
	flag.StringVar(&corpusPath, "corpus", "", "text file with one sequence per line (default stdin)")
	flag.StringVar(&bos, "bos", "never", "begin-of-sentence policy (never, short, always)")
	flag.BoolVar(&normalize, "normalize", false, "apply NFKC normalization before splitting")
	flag.BoolVar(&showSeqs, "show-sequences", false, "print per-sequence stats")
	flag.IntVar(&limit, "limit", 0, "stop after N sequences (0 = all)")
	flag.Parse()

	if aPath == "" || bPath == "" {
		fmt.Fprintln(os.Stderr, "-a and -b are required")
		os.Exit(2)
	}
	policy, err := lm.ParseBOSPolicy(bos)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := context.Background()
	a, err := lm.Load(ctx, aPath, lm.WithStrict(false), lm.WithBOS(policy))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load a:", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()
	b, err := lm.Load(ctx, bPath, lm.WithStrict(false), lm.WithBOS(policy))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load b:", err)
		os.Exit(1)
	}
	defer func() { _ = b.Close() }()

	var in io.Reader = os.Stdin
	if corpusPath != "" {
		f, err := os.Open(corpusPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open corpus:", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	fmt.Printf("A=%s (%d-gram, %d words)\n", aPath, a.Order(), a.VocabSize())
	fmt.Printf("B=%s (%d-gram, %d words)\n", bPath, b.Order(), b.VocabSize())

	acc := diffAccumulator{}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		words := lm.SplitWords(sc.Text(), normalize)
		if len(words) == 0 {
			continue
		}
		stats := diffSequence(a.TotalScore(words), b.TotalScore(words))
		acc.add(stats)
		if showSeqs {
			printSequence(acc.count-1, words, stats)
		}
		if limit > 0 && acc.count >= limit {
			break
		}
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "read corpus:", err)
		os.Exit(1)
	}

	if acc.count > 0 {
		fmt.Println()
		fmt.Printf("Summary sequences=%d words=%d max_abs=%.6g mean_abs=%.6g rmse=%.6g total_delta=%.6g length_match=%.2f%%\n",
			acc.count,
			acc.words,
			acc.maxAbs,
			acc.sumAbs/float64(acc.words),
			math.Sqrt(acc.sumSq/float64(acc.words)),
			acc.totalDelta,
			100.0*float64(acc.lengthMatch)/float64(acc.words),
		)
	}
}

type diffAccumulator struct {
	count       int
	words       int
	maxAbs      float64
	sumAbs      float64
	sumSq       float64
	totalDelta  float64
	lengthMatch int
}

func (acc *diffAccumulator) add(s diffStats) {
	acc.count++
	acc.words += s.Words
	if s.MaxAbs > acc.maxAbs {
		acc.maxAbs = s.MaxAbs
	}
	acc.sumAbs += s.MeanAbs * float64(s.Words)
	acc.sumSq += s.RMSE * s.RMSE * float64(s.Words)
	acc.totalDelta += s.TotalDelta
	acc.lengthMatch += s.LengthMatch
}

// diffSequence compares two scorings of the same words position by position.
func diffSequence(a, b lm.SequenceScore) diffStats {
	n := min(len(a.Words), len(b.Words))
	if n == 0 {
		return diffStats{}
	}
	var sumAbs, sumSq, maxAbs float64
	match := 0
	for i := range n {
		diff := math.Abs(float64(a.Words[i].Prob) - float64(b.Words[i].Prob))
		sumAbs += diff
		sumSq += diff * diff
		if diff > maxAbs {
			maxAbs = diff
		}
		if a.Words[i].NgramLength == b.Words[i].NgramLength {
			match++
		}
	}
	return diffStats{
		Words:       n,
		MaxAbs:      maxAbs,
		MeanAbs:     sumAbs / float64(n),
		RMSE:        math.Sqrt(sumSq / float64(n)),
		TotalDelta:  b.Total - a.Total,
		LengthMatch: match,
	}
}

func printSequence(i int, words []string, s diffStats) {
	text := clip(strings.Join(words, " "), 60)
	fmt.Printf("seq[%d] words=%d max_abs=%.6g mean_abs=%.6g rmse=%.6g total_delta=%.6g length_match=%d/%d text=%q\n",
		i, s.Words, s.MaxAbs, s.MeanAbs, s.RMSE, s.TotalDelta, s.LengthMatch, s.Words, text)
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := 0
	for i := range s {
		if runes == n-3 {
			return s[:i] + "..."
		}
		runes++
	}
	return s
}
