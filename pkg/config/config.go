// Package config loads peergraph settings.
//
// Settings are layered, later sources winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file (peergraph.toml in the working directory, or an explicit path)
//  3. a .env file in the working directory
//  4. PEERGRAPH_* environment variables
//
// A minimal file:
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//
//	[server]
//	addr = ":8080"
//
//	[build]
//	fail_on_missing_peers = false
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/matzehuels/peergraph/pkg/cache"
)

const (
	appName = "peergraph"

	// FileName is the config file looked up in the working directory.
	FileName = appName + ".toml"

	// DotenvFile is the .env file looked up in the working directory.
	DotenvFile = ".env"

	envPrefix = "PEERGRAPH_"
)

// Config holds all settings.
type Config struct {
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
	Build  BuildConfig  `toml:"build"`
	Log    LogConfig    `toml:"log"`

	// Source is the config file that was read, empty if none.
	Source string `toml:"-"`
}

// CacheConfig selects the result cache.
type CacheConfig struct {
	Backend  string   `toml:"backend"` // none, file, memory or redis
	Dir      string   `toml:"dir"`
	RedisURL string   `toml:"redis_url"`
	Size     int      `toml:"size"`
	TTL      Duration `toml:"ttl"`
}

// ServerConfig configures `peergraph serve`.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	MaxBodySize int64  `toml:"max_body_size"`
}

// BuildConfig holds build defaults.
type BuildConfig struct {
	FailOnMissingPeers bool `toml:"fail_on_missing_peers"`
	Concurrency        int  `toml:"concurrency"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a Go duration string ("12h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in settings.
func Default() *Config {
	dir, err := DefaultCacheDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), appName)
	}
	return &Config{
		Cache: CacheConfig{
			Backend: cache.BackendFile,
			Dir:     dir,
			Size:    1024,
			TTL:     Duration{cache.TTLGraph},
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxBodySize: 10 << 20,
		},
		Build: BuildConfig{
			FailOnMissingPeers: true,
			Concurrency:        4,
		},
		Log: LogConfig{Level: "info"},
	}
}

// DefaultCacheDir returns the cache directory following the XDG convention
// (~/.cache/peergraph).
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Load builds a Config from all sources. An empty path looks for FileName in
// the working directory and skips the file layer if it does not exist; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(FileName); err == nil {
			path = FileName
		}
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := loadDotenv(DotenvFile); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotenv exports the variables in path that are not already set. A
// missing file is not an error.
func loadDotenv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (c *Config) readFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("read config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	c.Source = path
	return nil
}

// applyEnv overlays PEERGRAPH_* variables read through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("CACHE_BACKEND"); ok {
		c.Cache.Backend = v
	}
	if v, ok := get("CACHE_DIR"); ok {
		c.Cache.Dir = v
	}
	if v, ok := get("REDIS_URL"); ok {
		c.Cache.RedisURL = v
	}
	if v, ok := get("CACHE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCACHE_SIZE: %w", envPrefix, err)
		}
		c.Cache.Size = n
	}
	if v, ok := get("CACHE_TTL"); ok {
		if err := c.Cache.TTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%sCACHE_TTL: %w", envPrefix, err)
		}
	}
	if v, ok := get("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := get("FAIL_ON_MISSING_PEERS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sFAIL_ON_MISSING_PEERS: %w", envPrefix, err)
		}
		c.Build.FailOnMissingPeers = b
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// Validate checks values that cannot be caught by decoding.
func (c *Config) Validate() error {
	var errs []error
	switch c.Cache.Backend {
	case cache.BackendNone, cache.BackendFile, cache.BackendMemory, cache.BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	if c.Cache.Backend == cache.BackendRedis && c.Cache.RedisURL == "" {
		errs = append(errs, errors.New("cache.redis_url: required for the redis backend"))
	}
	if c.Cache.TTL.Duration < 0 {
		errs = append(errs, errors.New("cache.ttl: must not be negative"))
	}
	if c.Build.Concurrency < 0 {
		errs = append(errs, errors.New("build.concurrency: must not be negative"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (log.Level, error) {
	return log.ParseLevel(c.Log.Level)
}

// CacheOptions converts the cache section for [cache.Open].
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:  c.Cache.Backend,
		Dir:      c.Cache.Dir,
		Size:     c.Cache.Size,
		RedisURL: c.Cache.RedisURL,
	}
}
