package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/lm"
	"github.com/samcharles93/ngramlm/internal/logger"
)

type modelRow struct {
	Name  string
	Size  int64
	Order int
	Vocab int
	NGram uint64
	Err   error
}

func listModelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "list-models",
		Aliases: []string{"ls", "models"},
		Usage:   "List n-gram models in a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "models-path",
				Aliases:     []string{"path"},
				Usage:       "directory containing .mcf models",
				Destination: &modelsPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, conf)

			dir := modelsDirFor(modelsPath)
			if dir == "" {
				return cli.Exit("error: --models-path is required unless "+envModelsDir+" is set", 1)
			}
			paths, err := discoverMCFModels(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(paths) == 0 {
				log.Info("no models found", "path", dir)
				return nil
			}

			rows := make([]modelRow, 0, len(paths))
			for _, p := range paths {
				row := describeModel(ctx, p)
				if row.Err != nil {
					log.Warn("unreadable model", "path", p, "error", row.Err)
				}
				rows = append(rows, row)
			}
			fmt.Printf("Models in %s:\n\n", dir)
			printModelRows(os.Stdout, rows)
			fmt.Printf("\n%d model(s) found\n", len(rows))
			return nil
		},
	}
}

// describeModel opens a model with plain reads to report its shape.
func describeModel(ctx context.Context, path string) modelRow {
	row := modelRow{Name: filepath.Base(path)}
	if st, err := os.Stat(path); err == nil {
		row.Size = st.Size()
	}
	m, err := lm.Load(ctx, path, lm.WithLoadMethod(lm.LoadRead))
	if err != nil {
		row.Err = err
		return row
	}
	defer func() { _ = m.Close() }()

	row.Order = m.Order()
	row.Vocab = m.VocabSize()
	for _, c := range m.Counts() {
		row.NGram += c
	}
	return row
}

func printModelRows(w io.Writer, rows []modelRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "  NAME\tSIZE\tORDER\tVOCAB\tN-GRAMS")
	for _, r := range rows {
		if r.Err != nil {
			_, _ = fmt.Fprintf(tw, "  %s\t%s\t-\t-\tunreadable\n", r.Name, formatBytes(uint64(r.Size)))
			continue
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\t%d\n", r.Name, formatBytes(uint64(r.Size)), r.Order, r.Vocab, r.NGram)
	}
	_ = tw.Flush()
}
