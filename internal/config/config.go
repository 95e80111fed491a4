package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds configuration settings for the engine and the reference
	// persistence service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Persistence
		Redis            RedisConfig
		ArchiveBucketURL string

		// Engine (client side)
		RemoteBaseURL  string
		RequestTimeout time.Duration
		ArenaSize      int

		ShutdownTimeout time.Duration
	}

	// RedisConfig holds connection settings for the snapshot repository
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisDB       = 0
	DefaultRedisPrefix   = "stride"

	DefaultRemoteBaseURL  = "http://localhost:8080"
	DefaultRequestTimeout = 15 * time.Second
	DefaultArenaSize      = 1024
	MaxArenaSize          = 1_000_000

	DefaultShutdownTimeout = 10 * time.Second
)

var (
	ErrInvalidAPIPort        = errors.New("invalid API port")
	ErrInvalidArenaSize      = errors.New("arena size must be positive")
	ErrInvalidRequestTimeout = errors.New("request timeout must be positive")
	ErrMissingRemoteBaseURL  = errors.New("remote base URL is required")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// server, repository, and engine settings
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:  DefaultAPIHost,
		APIPort:  DefaultAPIPort,
		LogLevel: "info",
		Redis: RedisConfig{
			Addr:   DefaultRedisEndpoint,
			DB:     DefaultRedisDB,
			Prefix: DefaultRedisPrefix,
		},
		RemoteBaseURL:   DefaultRemoteBaseURL,
		RequestTimeout:  DefaultRequestTimeout,
		ArenaSize:       DefaultArenaSize,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any value cannot be parsed
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if baseURL := os.Getenv("REMOTE_BASE_URL"); baseURL != "" {
		c.RemoteBaseURL = baseURL
	}
	if bucketURL := os.Getenv("ARCHIVE_BUCKET_URL"); bucketURL != "" {
		c.ArchiveBucketURL = bucketURL
	}

	loadRedisFromEnv(&c.Redis)

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"ARENA_SIZE", &c.ArenaSize, 0, MaxArenaSize,
	); err != nil {
		return err
	}

	if err := loadEnvDuration(
		"REQUEST_TIMEOUT", &c.RequestTimeout,
	); err != nil {
		return err
	}
	return loadEnvDuration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.ArenaSize <= 0 {
		return ErrInvalidArenaSize
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	if c.RemoteBaseURL == "" {
		return ErrMissingRemoteBaseURL
	}
	return nil
}

func loadRedisFromEnv(r *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		r.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		r.Password = password
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		r.Prefix = prefix
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s: must be positive", key)
	}
	*dst = d
	return nil
}
