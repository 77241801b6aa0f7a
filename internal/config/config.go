// Package config loads settings from config.yaml, a .env file and
// LANDRECORDS_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// File layout.
const (
	FileName  = "config.yaml"
	EnvPrefix = "LANDRECORDS"
)

// Keys.
const (
	KeyDataDir           = "data_dir"
	KeySQLDSN            = "sql.dsn"
	KeyDocumentAddr      = "document.addr"
	KeyDocumentPassword  = "document.password"
	KeyDocumentDB        = "document.db"
	KeyDocumentPrefix    = "document.prefix"
	KeyGatewayBaseURL    = "gateway.base_url"
	KeyGatewayTimeout    = "gateway.timeout"
	KeyGatewayCacheSize  = "gateway.cache_size"
	KeyGatewayCacheTTL   = "gateway.cache_ttl"
	KeyBatchChunkSize    = "batch.chunk_size"
	KeyBatchConcurrency  = "batch.concurrency"
	KeyWatchPollInterval = "watch.poll_interval"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyServeAddr         = "serve.addr"
)

// Config is the resolved configuration. A tier whose connection setting is
// empty is not configured.
type Config struct {
	DataDir  string
	SQL      SQLConfig
	Document DocumentConfig
	Gateway  GatewayConfig
	Batch    BatchConfig
	Watch    WatchConfig
	Log      LogConfig
	Serve    ServeConfig
}

type SQLConfig struct {
	DSN string
}

type DocumentConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type GatewayConfig struct {
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

type BatchConfig struct {
	ChunkSize   int
	Concurrency int
}

type WatchConfig struct {
	PollInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type ServeConfig struct {
	Addr string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeySQLDSN, "")
	v.SetDefault(KeyDocumentAddr, "")
	v.SetDefault(KeyDocumentPassword, "")
	v.SetDefault(KeyDocumentDB, 0)
	v.SetDefault(KeyDocumentPrefix, "landrecords")
	v.SetDefault(KeyGatewayBaseURL, "")
	v.SetDefault(KeyGatewayTimeout, 10*time.Second)
	v.SetDefault(KeyGatewayCacheSize, 256)
	v.SetDefault(KeyGatewayCacheTTL, 30*time.Second)
	v.SetDefault(KeyBatchChunkSize, 200)
	v.SetDefault(KeyBatchConcurrency, 4)
	v.SetDefault(KeyWatchPollInterval, 5*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyServeAddr, ":8080")
}

// Load reads configDir/config.yaml if present. A .env file in the working
// directory is loaded first; it never overrides variables already set.
// Environment variables win over the file: sql.dsn is LANDRECORDS_SQL_DSN.
func Load(configDir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(configDir, FileName))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", FileName, err)
		}
	}

	cfg := &Config{
		DataDir: v.GetString(KeyDataDir),
		SQL:     SQLConfig{DSN: v.GetString(KeySQLDSN)},
		Document: DocumentConfig{
			Addr:     v.GetString(KeyDocumentAddr),
			Password: v.GetString(KeyDocumentPassword),
			DB:       v.GetInt(KeyDocumentDB),
			Prefix:   v.GetString(KeyDocumentPrefix),
		},
		Gateway: GatewayConfig{
			BaseURL:   v.GetString(KeyGatewayBaseURL),
			Timeout:   v.GetDuration(KeyGatewayTimeout),
			CacheSize: v.GetInt(KeyGatewayCacheSize),
			CacheTTL:  v.GetDuration(KeyGatewayCacheTTL),
		},
		Batch: BatchConfig{
			ChunkSize:   v.GetInt(KeyBatchChunkSize),
			Concurrency: v.GetInt(KeyBatchConcurrency),
		},
		Watch: WatchConfig{PollInterval: v.GetDuration(KeyWatchPollInterval)},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		Serve: ServeConfig{Addr: v.GetString(KeyServeAddr)},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Batch.ChunkSize <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyBatchChunkSize, c.Batch.ChunkSize)
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyBatchConcurrency, c.Batch.Concurrency)
	}
	if c.Watch.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyWatchPollInterval, c.Watch.PollInterval)
	}
	return nil
}

// fileLayout is what WriteDefault puts in a fresh config.yaml.
type fileLayout struct {
	DataDir  string         `yaml:"data_dir,omitempty"`
	SQL      sqlLayout      `yaml:"sql"`
	Document documentLayout `yaml:"document"`
	Gateway  gatewayLayout  `yaml:"gateway"`
	Batch    batchLayout    `yaml:"batch"`
	Log      logLayout      `yaml:"log"`
}

type sqlLayout struct {
	DSN string `yaml:"dsn"`
}

type documentLayout struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

type gatewayLayout struct {
	BaseURL string `yaml:"base_url"`
}

type batchLayout struct {
	ChunkSize   int `yaml:"chunk_size"`
	Concurrency int `yaml:"concurrency"`
}

type logLayout struct {
	Level string `yaml:"level"`
}

// WriteDefault creates configDir/config.yaml with every remote tier left
// unconfigured. An existing file is kept; the return value reports whether
// a file was written.
func WriteDefault(configDir, dataDir string) (bool, error) {
	path := filepath.Join(configDir, FileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("creating config dir: %w", err)
	}

	f := fileLayout{
		DataDir:  dataDir,
		Document: documentLayout{Prefix: "landrecords"},
		Batch:    batchLayout{ChunkSize: 200, Concurrency: 4},
		Log:      logLayout{Level: "info"},
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return false, fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
