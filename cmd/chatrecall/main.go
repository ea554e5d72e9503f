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
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/chatrecall/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "chatrecall",
		Usage: "Semantic search over exported chat conversations",
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
				Usage:   "Path to a YAML, TOML or JSON configuration file",
				EnvVars: []string{"CHATRECALL_CONFIG"},
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import an exported conversation archive",
				ArgsUsage: "<archive.json>",
				Action:    importCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of chunks embedded at once",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of conversations per embedding request",
					},
					&cli.IntFlag{
						Name:  "max-chars",
						Usage: "Maximum characters of a conversation body before truncation",
					},
					metricsFileFlag(),
				),
			},
			{
				Name:      "search",
				Usage:     "Find conversations similar to a query",
				ArgsUsage: "<query...>",
				Action:    searchCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results",
					},
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Print full conversation bodies instead of previews",
					},
					metricsFileFlag(),
				),
			},
			{
				Name:      "show",
				Usage:     "Print the full text of one stored conversation",
				ArgsUsage: "<id>",
				Action:    showCommand,
				Flags:     storeFlags(),
			},
			{
				Name:   "reset",
				Usage:  "Delete every stored conversation",
				Action: resetCommand,
				Flags: append(storeFlags(),
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deletion",
					},
				),
			},
			{
				Name:   "stats",
				Usage:  "Show what the index holds",
				Action: statsCommand,
				Flags:  storeFlags(),
			},
			{
				Name:      "inspect",
				Usage:     "Summarize an archive without importing it",
				ArgsUsage: "<archive.json>",
				Action:    inspectCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top",
						Usage: "Number of largest conversations to list",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-chars",
						Usage: "Maximum characters of a conversation body before truncation",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored conversations with the configured model",
				Action: reembedCommand,
				Flags: append(storeFlags(),
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
						Value: defaultRetryDelay,
					},
				),
			},
		},
	}
}

// setup loads the configuration for the subcommands and installs the
// logger. An explicit --log-level wins over the configured level.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	c.App.Metadata[configKey] = cfg

	level := cfg.Log.Level
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	return setupLogger(c.App.ErrWriter, level)
}

func setupLogger(w io.Writer, levelStr string) error {
	// Normalize to lowercase
	levelStr = strings.ToLower(levelStr)

	// Map string to slog.Level
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
