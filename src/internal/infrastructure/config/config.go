// Package config 載入 loyaltyd 的設定：YAML 檔案 + LOYALTY_* 環境變數覆寫
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvDevelopment 開發環境：允許未設定 Webhook 簽章密鑰
const EnvDevelopment = "development"

// Config loyaltyd 的完整設定
type Config struct {
	Env      string         `yaml:"env"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Auth     AuthConfig     `yaml:"auth"`
	Salla    SallaConfig    `yaml:"salla"`
	Engine   EngineConfig   `yaml:"engine"`
	Expiry   ExpiryConfig   `yaml:"expiry"`
	Coupons  CouponConfig   `yaml:"coupons"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // sqlite / postgres
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	LogSQL          bool          `yaml:"log_sql"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig API 的 JWT 驗證（HS256）
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	ClockSkew time.Duration `yaml:"clock_skew"`
}

type SallaConfig struct {
	BaseURL           string        `yaml:"base_url"`
	WebhookSecret     string        `yaml:"webhook_secret"`
	RequestsPerMinute float64       `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// EngineConfig 帳本引擎的樂觀鎖重試
type EngineConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

type ExpiryConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxEntries int           `yaml:"max_entries"`
}

// CouponConfig 外部優惠碼建立與背景重試
type CouponConfig struct {
	ExternalTimeout time.Duration `yaml:"external_timeout"`
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Backoff         time.Duration `yaml:"backoff"`
	RescanInterval  time.Duration `yaml:"rescan_interval"`
}

// Default 未提供設定檔時的預設值
func Default() *Config {
	return &Config{
		Env: "production",
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "loyalty.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Auth: AuthConfig{
			ClockSkew: time.Minute,
		},
		Salla: SallaConfig{
			BaseURL:           "https://api.salla.dev/admin/v2",
			RequestsPerMinute: 120,
			Burst:             10,
			Timeout:           10 * time.Second,
		},
		Engine: EngineConfig{
			MaxRetries:   3,
			RetryBackoff: 10 * time.Millisecond,
		},
		Expiry: ExpiryConfig{
			Enabled:   true,
			Interval:  time.Hour,
			BatchSize: 100,
		},
		Coupons: CouponConfig{
			ExternalTimeout: 5 * time.Second,
			Workers:         2,
			QueueSize:       256,
			MaxAttempts:     5,
			Backoff:         30 * time.Second,
			RescanInterval:  5 * time.Minute,
		},
	}
}

// Load 讀取設定檔（path 為空時只用預設值）並套用環境變數
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv 同 Load，環境變數來源可替換（測試用）
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 以 LOYALTY_* 覆寫；只處理部署時常變的欄位
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("LOYALTY_ENV", &cfg.Env)
	str("LOYALTY_HTTP_ADDR", &cfg.Server.Addr)
	str("LOYALTY_DB_DRIVER", &cfg.Database.Driver)
	str("LOYALTY_DB_DSN", &cfg.Database.DSN)
	str("LOYALTY_LOG_LEVEL", &cfg.Log.Level)
	str("LOYALTY_LOG_FILE", &cfg.Log.File)
	str("LOYALTY_JWT_SECRET", &cfg.Auth.JWTSecret)
	str("LOYALTY_SALLA_BASE_URL", &cfg.Salla.BaseURL)
	str("LOYALTY_SALLA_WEBHOOK_SECRET", &cfg.Salla.WebhookSecret)
	boolean("LOYALTY_EXPIRY_ENABLED", &cfg.Expiry.Enabled)
	dur("LOYALTY_EXPIRY_INTERVAL", &cfg.Expiry.Interval)

	if v, ok := lookup("LOYALTY_CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitList(v)
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsDevelopment 是否為開發環境
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// Validate 檢查設定是否足以啟動服務
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Addr != "", "server.addr is required")
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	check(c.Database.DSN != "", "database.dsn is required")
	check(len(c.Auth.JWTSecret) >= 16, "auth.jwt_secret must be at least 16 characters")
	check(c.Salla.WebhookSecret != "" || c.IsDevelopment(), "salla.webhook_secret is required outside development")
	check(c.Engine.MaxRetries >= 0, "engine.max_retries must not be negative")
	check(!c.Expiry.Enabled || c.Expiry.Interval > 0, "expiry.interval must be positive")
	check(c.Expiry.BatchSize > 0, "expiry.batch_size must be positive")
	check(c.Coupons.Workers > 0, "coupons.workers must be positive")
	check(c.Coupons.MaxAttempts > 0, "coupons.max_attempts must be positive")
	check(c.Coupons.ExternalTimeout > 0, "coupons.external_timeout must be positive")

	return errors.Join(errs...)
}
