package main

import (
	"fmt"
	"time"

	"github.com/poiesic/chatrecall"
	"github.com/poiesic/chatrecall/config"
	"github.com/urfave/cli/v2"
)

const (
	configKey         = "config"
	defaultRetryDelay = time.Second
)

// databaseOptions are passed to every database the commands open.
var databaseOptions []chatrecall.DatabaseOption

// storeFlags are shared by every command that opens the index. Unset flags
// leave the file and environment configuration alone.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Index store backend (badger, qdrant)",
		},
		&cli.StringFlag{
			Name:  "qdrant-host",
			Usage: "Qdrant host",
		},
		&cli.IntFlag{
			Name:  "qdrant-port",
			Usage: "Qdrant gRPC port",
		},
		&cli.StringFlag{
			Name:  "collection",
			Usage: "Qdrant collection name",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
		},
		&cli.StringFlag{
			Name:  "api-key",
			Usage: "Embedding service API key",
		},
		&cli.StringFlag{
			Name:  "redis-addr",
			Usage: "Redis address for the embedding cache",
		},
	}
}

func metricsFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "metrics-file",
		Usage: "Write Prometheus metrics to this file when done",
	}
}

// commandConfig returns the loaded configuration with explicitly set flags
// applied on top.
func commandConfig(c *cli.Context) (*config.Config, error) {
	loaded, ok := c.App.Metadata[configKey].(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not loaded")
	}
	cfg := *loaded

	stringFlags := map[string]*string{
		"db":              &cfg.Store.Path,
		"store":           &cfg.Store.Backend,
		"qdrant-host":     &cfg.Store.Qdrant.Host,
		"collection":      &cfg.Store.Qdrant.Collection,
		"embedding-host":  &cfg.Embedding.Host,
		"embedding-model": &cfg.Embedding.Model,
		"api-key":         &cfg.Embedding.APIKey,
		"redis-addr":      &cfg.Redis.Addr,
		"metrics-file":    &cfg.Import.MetricsFile,
	}
	for name, target := range stringFlags {
		if c.IsSet(name) {
			*target = c.String(name)
		}
	}

	intFlags := map[string]*int{
		"qdrant-port": &cfg.Store.Qdrant.Port,
		"concurrency": &cfg.Import.Concurrency,
		"max-chars":   &cfg.Import.MaxChars,
		"top-k":       &cfg.Search.TopK,
	}
	if c.Command.Name == "import" {
		intFlags["batch-size"] = &cfg.Import.BatchSize
	}
	for name, target := range intFlags {
		if c.IsSet(name) {
			*target = c.Int(name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func openDatabase(c *cli.Context, opts ...chatrecall.DatabaseOption) (*chatrecall.Database, *config.Config, error) {
	cfg, err := commandConfig(c)
	if err != nil {
		return nil, nil, err
	}
	db, err := chatrecall.NewDatabase(cfg, append(opts, databaseOptions...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}
