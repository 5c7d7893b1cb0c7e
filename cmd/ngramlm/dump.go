package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/arpa"
	"github.com/samcharles93/ngramlm/internal/lm"
	"github.com/samcharles93/ngramlm/internal/logger"
)

func dumpCmd() *cli.Command {
	var outPath string

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, &cli.StringFlag{
		Name:        "out",
		Aliases:     []string{"o"},
		Usage:       "write the ARPA text here instead of stdout",
		Destination: &outPath,
	})

	return &cli.Command{
		Name:  "dump",
		Usage: "Write a model's quantized n-grams back out as ARPA text",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, conf)

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve model: %v", err), 1)
			}
			method, err := lm.ParseLoadMethod(loadMethod)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			m, err := lm.Load(ctx, path, lm.WithLoadMethod(method), lm.WithLogger(log))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = m.Close() }()

			var w io.Writer = os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			bw := bufio.NewWriter(w)
			if err := arpa.Write(bw, toARPA(m)); err != nil {
				return cli.Exit(fmt.Sprintf("error: write arpa: %v", err), 1)
			}
			if err := bw.Flush(); err != nil {
				return cli.Exit(fmt.Sprintf("error: write arpa: %v", err), 1)
			}
			log.Debug("dumped model", "path", path, "counts", m.Counts())
			return nil
		},
	}
}

// toARPA collects every stored n-gram, grouped by order in trie order.
func toARPA(m *lm.Model) *arpa.Model {
	out := &arpa.Model{NGrams: make([][]arpa.Entry, m.Order())}
	for k, n := range m.Counts() {
		out.NGrams[k] = make([]arpa.Entry, 0, n)
	}
	m.Walk(func(n lm.NGram) bool {
		k := len(n.Words) - 1
		out.NGrams[k] = append(out.NGrams[k], arpa.Entry{
			Words:      slices.Clone(n.Words),
			Prob:       n.Prob,
			Backoff:    n.Backoff,
			HasBackoff: k < m.Order()-1,
		})
		return true
	})
	return out
}
