package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/lm"
	"github.com/samcharles93/ngramlm/internal/logger"
)

type benchResult struct {
	Duration  time.Duration
	Sequences int
	Words     int
	Total     float64
}

func (r benchResult) wordsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Words) / r.Duration.Seconds()
}

func benchmarkCmd() *cli.Command {
	var (
		corpusPath string
		warmupRuns int64
		benchRuns  int64
		workers    int64
		policy     policyFlags
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, policy.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "corpus",
			Usage:       "text file with one sequence per line",
			Required:    true,
			Destination: &corpusPath,
		},
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       1,
			Destination: &warmupRuns,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of benchmark runs",
			Value:       3,
			Destination: &benchRuns,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "goroutines scoring in parallel",
			Value:       int64(runtime.GOMAXPROCS(0)),
			Destination: &workers,
		},
	)

	return &cli.Command{
		Name:  "benchmark",
		Usage: "Measure scoring throughput over a corpus",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, conf)
			applyPolicyConfig(cmd, conf, &policy)

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve model: %v", err), 1)
			}
			opts, err := policy.options()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			corpus, err := readCorpus(corpusPath, policy.normalize)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: read corpus: %v", err), 1)
			}
			if len(corpus) == 0 {
				return cli.Exit("error: corpus is empty", 1)
			}

			log.Info("loading model for benchmark", "path", path)
			loadStart := time.Now()
			m, err := lm.Load(ctx, path, append(opts, lm.WithLogger(log))...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = m.Close() }()
			loadDuration := time.Since(loadStart)

			fmt.Println("=== ngramlm Benchmark ===")
			fmt.Printf("Model:    %s (%d-gram, %d words)\n", path, m.Order(), m.VocabSize())
			fmt.Printf("Corpus:   %s (%d sequences)\n", corpusPath, len(corpus))
			fmt.Printf("CPUs:     %d\n", runtime.NumCPU())
			fmt.Printf("Workers:  %d\n", workers)
			fmt.Printf("Load:     %s\n", loadDuration.Round(time.Microsecond))
			fmt.Println()

			for i := range int(warmupRuns) {
				log.Info("warmup run", "run", i+1)
				if _, err := runBenchmark(ctx, m, corpus, int(workers)); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			results := make([]benchResult, 0, benchRuns)
			for i := range int(benchRuns) {
				log.Info("benchmark run", "run", i+1)
				r, err := runBenchmark(ctx, m, corpus, int(workers))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: benchmark run %d: %v", i+1, err), 1)
				}
				results = append(results, r)
			}

			fmt.Println("=== Results ===")
			fmt.Printf("%-6s %12s %12s %10s\n", "Run", "words/s", "Duration", "Words")
			var sum float64
			for i, r := range results {
				fmt.Printf("%-6d %12.0f %12s %10d\n", i+1, r.wordsPerSecond(), r.Duration.Round(time.Microsecond), r.Words)
				sum += r.wordsPerSecond()
			}
			if len(results) > 0 {
				fmt.Printf("\n%-6s %12.0f\n", "Avg", sum/float64(len(results)))
				fmt.Printf("Log10 total: %.4f\n", results[0].Total)
			}

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			fmt.Printf("\nMemory: %.1f MB alloc, %.1f MB sys\n",
				float64(mem.Alloc)/(1024*1024),
				float64(mem.Sys)/(1024*1024))
			return nil
		},
	}
}

func readCorpus(path string, normalize bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var out [][]string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if words := lm.SplitWords(sc.Text(), normalize); len(words) > 0 {
			out = append(out, words)
		}
	}
	return out, sc.Err()
}

// runBenchmark scores the corpus once, split across workers goroutines. The
// model is shared; each worker keeps its own state.
func runBenchmark(ctx context.Context, m *lm.Model, corpus [][]string, workers int) (benchResult, error) {
	workers = max(1, min(workers, len(corpus)))
	partial := make([]benchResult, workers)

	start := time.Now()
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := &partial[w]
			for i := w; i < len(corpus); i += workers {
				if ctx.Err() != nil {
					return
				}
				s := m.TotalScore(corpus[i])
				r.Sequences++
				r.Words += len(s.Words)
				r.Total += s.Total
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return benchResult{}, err
	}

	out := benchResult{Duration: time.Since(start)}
	for _, r := range partial {
		out.Sequences += r.Sequences
		out.Words += r.Words
		out.Total += r.Total
	}
	return out, nil
}
