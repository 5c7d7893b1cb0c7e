package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/lm"
	"github.com/samcharles93/ngramlm/internal/logger"
)

type scoreFormat struct {
	json   bool
	detail bool
}

// scoreLine is the --json form of one scored sequence.
type scoreLine struct {
	Text       string         `json:"text"`
	Score      float32        `json:"score"`
	Total      float64        `json:"total"`
	OOV        int            `json:"oov"`
	Perplexity float64        `json:"perplexity,omitempty"`
	Words      []lm.WordScore `json:"words,omitempty"`
}

func scoreCmd() *cli.Command {
	var (
		policy policyFlags
		format scoreFormat
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, policy.flags()...)
	flags = append(flags,
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print one JSON object per sequence",
			Destination: &format.json,
		},
		&cli.BoolFlag{
			Name:        "detail",
			Usage:       "print per-word scores",
			Destination: &format.detail,
		},
	)

	return &cli.Command{
		Name:      "score",
		Usage:     "Score word sequences (arguments, or one sequence per stdin line)",
		ArgsUsage: "[text...]",
		Flags:     flags,
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
			m, err := lm.Load(ctx, path, append(opts, lm.WithLogger(log))...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func() { _ = m.Close() }()

			var in io.Reader = os.Stdin
			if cmd.Args().Len() > 0 {
				in = strings.NewReader(strings.Join(cmd.Args().Slice(), " "))
			}
			n, err := scoreLines(ctx, m, in, os.Stdout, policy, format)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Debug("scored sequences", "count", n)
			return nil
		},
	}
}

// scoreLines scores each non-blank line of r and writes one result per line.
func scoreLines(ctx context.Context, m *lm.Model, r io.Reader, w io.Writer, p policyFlags, format scoreFormat) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	out := bufio.NewWriter(w)
	enc := json.NewEncoder(out)

	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		words := lm.SplitWords(sc.Text(), p.normalize)
		if len(words) == 0 {
			continue
		}
		n++
		score := m.ScoreSequence(words, float32(p.defaultScore))
		total := m.TotalScore(words)

		if format.json {
			line := scoreLine{
				Text:       strings.Join(words, " "),
				Score:      score,
				Total:      total.Total,
				OOV:        total.OOV,
				Perplexity: total.Perplexity,
			}
			if format.detail {
				line.Words = total.Words
			}
			if err := enc.Encode(line); err != nil {
				return n, err
			}
			continue
		}

		_, _ = fmt.Fprintf(out, "%.6f\t%.6f\t%d\t%s\n", score, total.Total, total.OOV, strings.Join(words, " "))
		if format.detail {
			for _, ws := range total.Words {
				mark := ""
				if ws.OOV {
					mark = "\toov"
				}
				_, _ = fmt.Fprintf(out, "  %s=%d %d %.6f%s\n", ws.Word, ws.ID, ws.NgramLength, ws.Prob, mark)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return n, err
	}
	return n, out.Flush()
}
