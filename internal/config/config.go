package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,notEmpty"`

	// Upstream
	BackendURL  string        `env:"BACKEND_URL" envDefault:"http://localhost:3100"`
	CatalogURL  string        `env:"CATALOG_URL" envDefault:"https://pokeapi.co/api/v2"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	// Database（空の場合はメモリ上のセッションストアを使用する）
	DatabaseURL string `env:"DATABASE_URL"`

	// Session（0は有効期限なし）
	SessionMaxAge int `env:"SESSION_MAX_AGE" envDefault:"0"`

	// Catalog
	CatalogMaxConcurrent int     `env:"CATALOG_MAX_CONCURRENT" envDefault:"20"`
	CatalogRateLimit     float64 `env:"CATALOG_RATE_LIMIT" envDefault:"20"`
	CatalogAllowPrivate  bool    `env:"CATALOG_ALLOW_PRIVATE" envDefault:"false"`
	SampleSize           int     `env:"SAMPLE_SIZE" envDefault:"5"`
	SearchLimit          int     `env:"SEARCH_LIMIT" envDefault:"20"`

	// View
	SearchDebounce time.Duration `env:"SEARCH_DEBOUNCE" envDefault:"500ms"`
	ViewIdleTTL    time.Duration `env:"VIEW_IDLE_TTL" envDefault:"30m"`

	// Rate Limit（req/min）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitCatalog int `env:"RATE_LIMIT_CATALOG" envDefault:"30"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Cookie
	CookieSecure bool   `env:"-"`
	CookieDomain string `env:"COOKIE_DOMAIN"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.CatalogURL = strings.TrimRight(cfg.CatalogURL, "/")

	return cfg, nil
}

// validate は値の範囲を検証する。
func (c *Config) validate() error {
	var invalid []string
	if c.SessionMaxAge < 0 {
		invalid = append(invalid, "SESSION_MAX_AGE")
	}
	if c.CatalogMaxConcurrent < 1 {
		invalid = append(invalid, "CATALOG_MAX_CONCURRENT")
	}
	if c.CatalogRateLimit <= 0 {
		invalid = append(invalid, "CATALOG_RATE_LIMIT")
	}
	if c.SampleSize < 1 {
		invalid = append(invalid, "SAMPLE_SIZE")
	}
	if c.SearchLimit < 1 {
		invalid = append(invalid, "SEARCH_LIMIT")
	}
	if c.SearchDebounce < 0 {
		invalid = append(invalid, "SEARCH_DEBOUNCE")
	}
	if c.RateLimitGeneral < 1 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL")
	}
	if c.RateLimitCatalog < 1 {
		invalid = append(invalid, "RATE_LIMIT_CATALOG")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
}

// UsesDatabase はPostgreSQLのセッションストアを使用するかどうかを返す。
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}
