// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// Database。空の場合はインメモリストアで動作する
	DatabaseURL string `env:"DATABASE_URL"`

	// Session
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"0s"`

	// Upload
	UploadMaxBytes int64 `env:"UPLOAD_MAX_BYTES" envDefault:"20971520"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Logging
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load はプロセスの環境変数からConfigを読み込む。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom は与えられた環境変数マップからConfigを読み込む。
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UsesDatabase はPostgreSQLバックエンドを使うかどうかを返す。
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) validate() error {
	var errs []error
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL))
	}
	if c.SessionSweepInterval < 0 {
		errs = append(errs, fmt.Errorf("SESSION_SWEEP_INTERVAL must not be negative, got %s", c.SessionSweepInterval))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes))
	}
	if len(c.CORSAllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must not be empty"))
	}
	return errors.Join(errs...)
}
