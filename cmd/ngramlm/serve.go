package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ngramlm/internal/api"
	"github.com/samcharles93/ngramlm/internal/lm"
	"github.com/samcharles93/ngramlm/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		rps         float64
		burst       int64
		policy      policyFlags
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, policy.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.FloatFlag{
			Name:        "rate",
			Usage:       "requests per second admitted to /v1 (0 = unlimited)",
			Destination: &rps,
		},
		&cli.Int64Flag{
			Name:        "burst",
			Usage:       "token bucket size for --rate",
			Destination: &burst,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the scoring REST API",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, conf)
			applyPolicyConfig(cmd, conf, &policy)
			applyServeConfig(cmd, conf, &addr, &rps, &burst)

			opts, err := policy.options()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			provider := api.NewCachedModelProvider(api.ProviderConfig{
				DefaultModelPath: modelPath,
				ModelsPath:       modelsPath,
				LoadOptions:      opts,
				Logger:           log,
			})
			defer func() { _ = provider.Close() }()

			if modelPath != "" {
				// Fail fast on a broken default model.
				if err := provider.WithModel(ctx, "", func(*lm.Model) error { return nil }); err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
			}

			defaultScore := float32(policy.defaultScore)
			server := api.NewServer(api.NewScoringService(provider, api.ScoringConfig{
				DefaultScore: &defaultScore,
				Normalize:    policy.normalize,
			}), api.ServerConfig{
				RequestsPerSecond: rps,
				Burst:             int(burst),
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "rate", rps)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
