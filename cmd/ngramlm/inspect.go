package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/lm"
	"github.com/samcharles93/ngramlm/internal/logger"
	"github.com/samcharles93/ngramlm/pkg/mcf"
)

// inspectReport is the --json output of inspect.
type inspectReport struct {
	Path        string          `json:"path"`
	FileSize    uint64          `json:"file_size"`
	Version     string          `json:"version"`
	Flags       []string        `json:"flags"`
	Mapped      bool            `json:"mapped"`
	Order       int             `json:"order"`
	VocabSize   int             `json:"vocab_size"`
	Orders      []orderReport   `json:"orders"`
	Sections    []sectionReport `json:"sections"`
	Verified    *bool           `json:"verified,omitempty"`
	VerifyError string          `json:"verify_error,omitempty"`
	Vocabulary  []string        `json:"vocabulary,omitempty"`
}

type orderReport struct {
	Order       int     `json:"order"`
	Count       uint64  `json:"count"`
	ProbBits    int     `json:"prob_bits"`
	BackoffBits int     `json:"backoff_bits,omitempty"`
	Granularity float32 `json:"granularity"`
}

type sectionReport struct {
	Type    string `json:"type"`
	Version uint32 `json:"version"`
	Offset  uint64 `json:"offset"`
	Size    uint64 `json:"size"`
}

func inspectCmd() *cli.Command {
	var (
		verify       bool
		asJSON       bool
		showSections bool
		vocabLimit   int64
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags,
		&cli.BoolFlag{Name: "verify", Usage: "walk the trie and check every n-gram's context is stored", Destination: &verify},
		&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
		&cli.BoolFlag{Name: "sections", Usage: "show the section directory", Destination: &showSections},
		&cli.Int64Flag{Name: "vocab", Usage: "list the first N vocabulary words (-1 = all)", Destination: &vocabLimit},
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of an .mcf model container",
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

			report := buildReport(m, int(vocabLimit))
			if verify {
				ok := true
				if err := m.Verify(); err != nil {
					ok = false
					report.VerifyError = err.Error()
				}
				report.Verified = &ok
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			} else {
				printReport(os.Stdout, report, showSections)
			}
			if report.Verified != nil && !*report.Verified {
				return cli.Exit("error: verification failed", 2)
			}
			return nil
		},
	}
}

func buildReport(m *lm.Model, vocabLimit int) inspectReport {
	info := m.Info()
	r := inspectReport{
		Path:      info.Path,
		FileSize:  info.Header.FileSize,
		Version:   fmt.Sprintf("%d.%d", info.Header.Major, info.Header.Minor),
		Flags:     headerFlags(info.Header),
		Mapped:    info.Mapped,
		Order:     info.Order,
		VocabSize: info.VocabSize,
	}
	for i, n := range info.Counts {
		o := orderReport{Order: i + 1, Count: n, ProbBits: info.ProbBits[i], Granularity: info.Granularity[i]}
		if i < len(info.BackoffBits) {
			o.BackoffBits = info.BackoffBits[i]
		}
		r.Orders = append(r.Orders, o)
	}
	for _, s := range info.Sections {
		r.Sections = append(r.Sections, sectionReport{
			Type:    mcf.SectionType(s.Type).String(),
			Version: s.Version,
			Offset:  s.Offset,
			Size:    s.Size,
		})
	}
	if vocabLimit != 0 {
		words := m.Vocabulary().Words()
		if vocabLimit > 0 && vocabLimit < len(words) {
			words = words[:vocabLimit]
		}
		r.Vocabulary = words
	}
	return r
}

func headerFlags(h mcf.MCFHeader) []string {
	flags := []string{}
	if h.Flags&mcf.FlagQuantized != 0 {
		flags = append(flags, "quantized")
	}
	return flags
}

func printReport(w io.Writer, r inspectReport, showSections bool) {
	flagStr := "none"
	if len(r.Flags) > 0 {
		flagStr = strings.Join(r.Flags, ", ")
	}
	_, _ = fmt.Fprintf(w, "MCF Inspect: %s\n", r.Path)
	_, _ = fmt.Fprintf(w, "File: %s (%s)\n", filepath.Base(r.Path), formatBytes(r.FileSize))
	_, _ = fmt.Fprintf(w, "MCF Header: v%s sections=%d flags=%s mapped=%t\n", r.Version, len(r.Sections), flagStr, r.Mapped)

	section(w, "Model")
	rowInt(w, "Order", r.Order)
	rowInt(w, "Vocabulary", r.VocabSize)

	section(w, "N-grams")
	_, _ = fmt.Fprintf(w, "%-6s %12s %6s %8s %12s\n", "order", "count", "prob", "backoff", "granularity")
	for _, o := range r.Orders {
		backoff := "-"
		if o.BackoffBits > 0 {
			backoff = fmt.Sprintf("%d", o.BackoffBits)
		}
		_, _ = fmt.Fprintf(w, "%-6d %12d %6d %8s %12.6f\n", o.Order, o.Count, o.ProbBits, backoff, o.Granularity)
	}

	if showSections {
		section(w, "Sections")
		for _, s := range r.Sections {
			_, _ = fmt.Fprintf(w, "%-12s v%-2d off=%-10d size=%s\n", s.Type, s.Version, s.Offset, formatBytes(s.Size))
		}
	}

	if r.Verified != nil {
		section(w, "Verify")
		if *r.Verified {
			_, _ = fmt.Fprintln(w, "ok")
		} else {
			_, _ = fmt.Fprintln(w, r.VerifyError)
		}
	}

	if len(r.Vocabulary) > 0 {
		section(w, "Vocabulary")
		for id, word := range r.Vocabulary {
			_, _ = fmt.Fprintf(w, "%8d  %q\n", id, word)
		}
		if len(r.Vocabulary) < r.VocabSize {
			_, _ = fmt.Fprintf(w, "... (%d shown of %d)\n", len(r.Vocabulary), r.VocabSize)
		}
	}
}

func section(w io.Writer, title string) {
	line := strings.Repeat("-", len(title)+8)
	_, _ = fmt.Fprintf(w, "\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	_, _ = fmt.Fprintf(w, "%-24s %s\n", label+":", value)
}

func rowInt(w io.Writer, label string, v int) {
	if v == 0 {
		return
	}
	row(w, label, fmt.Sprintf("%d", v))
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TiB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
