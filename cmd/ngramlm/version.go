package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/version"
)

func versionCmd() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:  "version",
		Usage: "Print build information",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print as JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Printf("ngramlm %s\n", version.String())
			for _, kv := range [][2]string{
				{"commit", info.Commit},
				{"built", info.BuildTime},
				{"go", info.GoVersion},
			} {
				if kv[1] != "" {
					fmt.Printf("  %-7s %s\n", kv[0]+":", kv[1])
				}
			}
			return nil
		},
	}
}
