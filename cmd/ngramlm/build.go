package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/lmbuild"
	"github.com/samcharles93/ngramlm/internal/logger"
)

func buildCmd() *cli.Command {
	var (
		arpaPath    string
		outPath     string
		probBits    int64
		backoffBits int64
		unkProb     float64
	)

	return &cli.Command{
		Name:  "build",
		Usage: "Quantize an ARPA model into an .mcf container",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "arpa",
				Aliases:     []string{"in", "i"},
				Usage:       "path to ARPA text model",
				Required:    true,
				Destination: &arpaPath,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .mcf path (default: $NGRAMLM_BUILD_OUT_DIR or ./out)",
				Destination: &outPath,
			},
			&cli.Int64Flag{
				Name:        "prob-bits",
				Usage:       "quantization bits for probabilities",
				Value:       lmbuild.DefaultProbBits,
				Destination: &probBits,
			},
			&cli.Int64Flag{
				Name:        "backoff-bits",
				Usage:       "quantization bits for backoff weights",
				Value:       lmbuild.DefaultBackoffBits,
				Destination: &backoffBits,
			},
			&cli.FloatFlag{
				Name:        "unk-prob",
				Usage:       "log10 probability given to <unk> when the model has none",
				Value:       float64(lmbuild.DefaultUnknownProb),
				Destination: &unkProb,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyBuildConfig(cmd, conf, &probBits, &backoffBits)

			out, defaulted, err := resolveBuildOut(arpaPath, outPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve output: %v", err), 1)
			}
			if defaulted {
				log.Info("writing to default output", "path", out)
			}

			start := time.Now()
			stats, err := lmbuild.BuildFile(ctx, arpaPath, out, lmbuild.Options{
				ProbBits:    int(probBits),
				BackoffBits: int(backoffBits),
				UnknownProb: float32(unkProb),
				Logger:      log,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build: %v", err), 1)
			}

			fmt.Printf("Wrote %s (%s) in %s\n", out, formatBytes(uint64(stats.Bytes)), time.Since(start).Round(time.Millisecond))
			fmt.Printf("  order:      %d\n", stats.Order)
			fmt.Printf("  vocabulary: %d\n", stats.VocabSize)
			for i, n := range stats.Counts {
				line := fmt.Sprintf("  %d-grams:    %d", i+1, n)
				if i < len(stats.Synthesized) && stats.Synthesized[i] > 0 {
					line += fmt.Sprintf(" (%d synthesized)", stats.Synthesized[i])
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}
