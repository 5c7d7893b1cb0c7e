package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/lm"
)

var (
	modelPath  string
	modelsPath string
	loadMethod string
	configFile string
	logLevel   string
	logFormat  string
	debug      bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to .mcf file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "path to directory containing .mcf models",
			Destination: &modelsPath,
		},
		&cli.StringFlag{
			Name:        "load-method",
			Usage:       "how to bring the model into memory (mmap, read)",
			Value:       lm.LoadMMap.String(),
			Destination: &loadMethod,
		},
	}
}

// policyFlags are shared by every command that scores sequences.
type policyFlags struct {
	strict       bool
	bos          string
	window       int64
	eos          bool
	defaultScore float64
	normalize    bool
}

func (p *policyFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "strict",
			Usage:       "return the default score for sequences containing unknown words",
			Value:       true,
			Destination: &p.strict,
		},
		&cli.StringFlag{
			Name:        "bos",
			Usage:       "begin-of-sentence policy (never, short, always)",
			Value:       lm.BOSNever.String(),
			Destination: &p.bos,
		},
		&cli.Int64Flag{
			Name:        "window",
			Usage:       "score only the last N words of each sequence (0 = all)",
			Destination: &p.window,
		},
		&cli.BoolFlag{
			Name:        "eos",
			Usage:       "append </s> when computing sequence totals",
			Destination: &p.eos,
		},
		&cli.FloatFlag{
			Name:        "default",
			Usage:       "score returned for sequences the model refuses",
			Value:       -100,
			Destination: &p.defaultScore,
		},
		&cli.BoolFlag{
			Name:        "normalize",
			Usage:       "apply NFKC normalization before splitting text",
			Destination: &p.normalize,
		},
	}
}

func (p *policyFlags) options() ([]lm.Option, error) {
	bos, err := lm.ParseBOSPolicy(p.bos)
	if err != nil {
		return nil, err
	}
	method, err := lm.ParseLoadMethod(loadMethod)
	if err != nil {
		return nil, err
	}
	return []lm.Option{
		lm.WithStrict(p.strict),
		lm.WithBOS(bos),
		lm.WithWindow(int(p.window)),
		lm.WithEOS(p.eos),
		lm.WithLoadMethod(method),
	}, nil
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config file",
			Value:       configPath(),
			Destination: &configFile,
		},
	}
}
