// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/mediasearch"
	"github.com/poiesic/mediasearch/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mediasearch",
		Usage: "Semantic search over media records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an env-style config file (default: ./.env if present)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the search HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides HTTP_ADDR)",
					},
					&cli.BoolFlag{
						Name:  "with-worker",
						Usage: "Also consume record-created events in this process",
					},
				},
			},
			{
				Name:   "worker",
				Usage:  "Consume record-created events and index the records",
				Action: workerCommand,
			},
			{
				Name:      "search",
				Usage:     "Run a single query and print the JSON response",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "min-duration",
						Usage: "Minimum duration in seconds",
					},
					&cli.Float64Flag{
						Name:  "max-duration",
						Usage: "Maximum duration in seconds",
					},
					&cli.StringFlag{
						Name:  "start-date",
						Usage: "Earliest creation date (YYYY-MM-DD or RFC 3339)",
					},
					&cli.StringFlag{
						Name:  "end-date",
						Usage: "Latest creation date (YYYY-MM-DD or RFC 3339)",
					},
				},
			},
			{
				Name:      "seed",
				Usage:     "Load records from a JSON file into the record store",
				ArgsUsage: "<file.json>",
				Action:    seedCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild index entries for every stored record",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// openService is replaced in tests to inject an embedder.
var openService = func(ctx context.Context, cfg *config.Config) (*mediasearch.Service, error) {
	return mediasearch.Open(ctx, cfg)
}

// loadService reads the configuration named by --config and opens a service.
func loadService(c *cli.Context) (*mediasearch.Service, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	svc, err := openService(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open service: %w", err)
	}
	return svc, nil
}
