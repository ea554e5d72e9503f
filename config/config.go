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

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/chatrecall/ai"
	"github.com/poiesic/chatrecall/archive"
	"github.com/poiesic/chatrecall/search"
	"github.com/poiesic/chatrecall/storage/qdrant"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CHATRECALL"

// Store backends.
const (
	BackendBadger = "badger"
	BackendQdrant = "qdrant"
)

const (
	DefaultStorePath = "./chatrecall_db"
	DefaultCacheTTL  = 30 * 24 * time.Hour
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Import    ImportConfig    `mapstructure:"import"`
	Search    SearchConfig    `mapstructure:"search"`
	Log       LogConfig       `mapstructure:"log"`
}

type StoreConfig struct {
	// Backend is "badger" or "qdrant".
	Backend string       `mapstructure:"backend"`
	Path    string       `mapstructure:"path"`
	Qdrant  QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

type EmbeddingConfig struct {
	Host              string        `mapstructure:"host"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	Dimensions        int           `mapstructure:"dimensions"`
	BatchSize         int           `mapstructure:"batch_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
}

// RedisConfig enables the embedding cache when Addr is set.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type ImportConfig struct {
	MaxChars    int    `mapstructure:"max_chars"`
	Concurrency int    `mapstructure:"concurrency"`
	BatchSize   int    `mapstructure:"batch_size"`
	MetricsFile string `mapstructure:"metrics_file"`
}

type SearchConfig struct {
	TopK int `mapstructure:"top_k"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendBadger,
			Path:    DefaultStorePath,
			Qdrant: QdrantConfig{
				Host:       qdrant.DefaultHost,
				Port:       qdrant.DefaultPort,
				Collection: qdrant.DefaultCollection,
			},
		},
		Embedding: EmbeddingConfig{
			Host:        ai.DefaultEmbeddingHost,
			Model:       ai.DefaultEmbeddingModel,
			BatchSize:   ai.DefaultBatchSize,
			Burst:       1,
			MaxAttempts: 1,
			RetryDelay:  ai.DefaultRetryDelay,
		},
		Redis: RedisConfig{
			TTL: DefaultCacheTTL,
		},
		Import: ImportConfig{
			MaxChars:    archive.DefaultMaxChars,
			Concurrency: 1,
			BatchSize:   1,
		},
		Search: SearchConfig{
			TopK: search.DefaultTopK,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional file at path and from the
// environment. Environment variables use the CHATRECALL_ prefix with dots
// replaced by underscores, e.g. CHATRECALL_STORE_BACKEND. OPENAI_API_KEY is
// used when no embedding API key is configured.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("embedding.api_key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.qdrant.host", d.Store.Qdrant.Host)
	v.SetDefault("store.qdrant.port", d.Store.Qdrant.Port)
	v.SetDefault("store.qdrant.api_key", d.Store.Qdrant.APIKey)
	v.SetDefault("store.qdrant.use_tls", d.Store.Qdrant.UseTLS)
	v.SetDefault("store.qdrant.collection", d.Store.Qdrant.Collection)

	v.SetDefault("embedding.host", d.Embedding.Host)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.requests_per_second", d.Embedding.RequestsPerSecond)
	v.SetDefault("embedding.burst", d.Embedding.Burst)
	v.SetDefault("embedding.max_attempts", d.Embedding.MaxAttempts)
	v.SetDefault("embedding.retry_delay", d.Embedding.RetryDelay)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)
	v.SetDefault("redis.key_prefix", d.Redis.KeyPrefix)

	v.SetDefault("import.max_chars", d.Import.MaxChars)
	v.SetDefault("import.concurrency", d.Import.Concurrency)
	v.SetDefault("import.batch_size", d.Import.BatchSize)
	v.SetDefault("import.metrics_file", d.Import.MetricsFile)

	v.SetDefault("search.top_k", d.Search.TopK)

	v.SetDefault("log.level", d.Log.Level)
}

// Validate checks the values that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendBadger:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the badger backend", ErrInvalidConfig)
		}
	case BackendQdrant:
		if c.Store.Qdrant.Port < 0 || c.Store.Qdrant.Port > 65535 {
			return fmt.Errorf("%w: store.qdrant.port %d is out of range", ErrInvalidConfig, c.Store.Qdrant.Port)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Import.MaxChars <= 0 {
		return fmt.Errorf("%w: import.max_chars must be positive", ErrInvalidConfig)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("%w: redis.ttl must not be negative", ErrInvalidConfig)
	}
	return nil
}

// AIConfig converts the embedding section into an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	e := c.Embedding
	return ai.NewConfig(
		ai.WithEmbeddingHost(e.Host),
		ai.WithEmbeddingModel(e.Model),
		ai.WithAPIKey(e.APIKey),
		ai.WithDimensions(e.Dimensions),
		ai.WithBatchSize(e.BatchSize),
		ai.WithRateLimit(e.RequestsPerSecond, e.Burst),
		ai.WithRetry(e.MaxAttempts, e.RetryDelay),
	)
}

// Qdrant converts the qdrant section into a qdrant.Config.
func (c *Config) Qdrant() qdrant.Config {
	q := c.Store.Qdrant
	return qdrant.Config{
		Host:       q.Host,
		Port:       q.Port,
		APIKey:     q.APIKey,
		UseTLS:     q.UseTLS,
		Collection: q.Collection,
		Dimensions: c.Embedding.Dimensions,
	}
}
