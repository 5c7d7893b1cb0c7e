package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/logger"
	"github.com/samcharles93/ngramlm/internal/version"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "ngramlm",
		Usage:   "Build, inspect and query quantized n-gram language models",
		Version: version.String(),
		Flags:   loggingFlags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: load config: %v", err), 1)
			}
			conf = cfg
			applyLoggingConfig(cmd, conf)

			level := logLevel
			if debug {
				level = "debug"
			}
			log, err := logger.Build(os.Stderr, logFormat, level)
			if err != nil {
				return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			buildCmd(),
			scoreCmd(),
			inspectCmd(),
			dumpCmd(),
			listModelsCmd(),
			benchmarkCmd(),
			serveCmd(),
			versionCmd(),
		},
	}
}

// exitCode reports the process status a cli.Exit error carries.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return 1
}
