package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTTTLHours int    `mapstructure:"JWT_TTL_HOURS"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
	ForceHTTPS  bool     `mapstructure:"FORCE_HTTPS"`

	RateLimitGlobalPerMin int `mapstructure:"RATE_LIMIT_GLOBAL_PER_MIN"`
	RateLimitAuthPerMin   int `mapstructure:"RATE_LIMIT_AUTH_PER_MIN"`
	RateLimitAIPerMin     int `mapstructure:"RATE_LIMIT_AI_PER_MIN"`

	LLMAPIKey  string `mapstructure:"LLM_API_KEY"`
	LLMBaseURL string `mapstructure:"LLM_BASE_URL"`
	LLMModel   string `mapstructure:"LLM_MODEL"`

	AIWorkerConcurrency int `mapstructure:"AI_WORKER_CONCURRENCY"`

	QuotaFree       int `mapstructure:"QUOTA_FREE"`
	QuotaPro        int `mapstructure:"QUOTA_PRO"`
	QuotaEnterprise int `mapstructure:"QUOTA_ENTERPRISE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("JWT_TTL_HOURS", 24)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_GLOBAL_PER_MIN", 120)
	v.SetDefault("RATE_LIMIT_AUTH_PER_MIN", 10)
	v.SetDefault("RATE_LIMIT_AI_PER_MIN", 5)
	v.SetDefault("AI_WORKER_CONCURRENCY", 2)
	v.SetDefault("QUOTA_FREE", 50)
	v.SetDefault("QUOTA_PRO", 500)
	v.SetDefault("QUOTA_ENTERPRISE", 5000)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("JWT_TTL_HOURS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("FORCE_HTTPS")
	v.BindEnv("RATE_LIMIT_GLOBAL_PER_MIN")
	v.BindEnv("RATE_LIMIT_AUTH_PER_MIN")
	v.BindEnv("RATE_LIMIT_AI_PER_MIN")
	v.BindEnv("LLM_API_KEY")
	v.BindEnv("LLM_BASE_URL")
	v.BindEnv("LLM_MODEL")
	v.BindEnv("AI_WORKER_CONCURRENCY")
	v.BindEnv("QUOTA_FREE")
	v.BindEnv("QUOTA_PRO")
	v.BindEnv("QUOTA_ENTERPRISE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDev() bool { return c.Env == "development" }

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// JWTTTL returns the configured token lifetime.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// Validate checks that the configuration is safe to run. The signing key
// must always be present and long enough; production additionally requires
// HTTPS enforcement and a non-loopback origin allowlist.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes, got %d", len(c.JWTSecret))
	}

	if c.IsProduction() {
		if !c.ForceHTTPS {
			return fmt.Errorf("FORCE_HTTPS must be enabled in production")
		}
		for _, origin := range c.CORSOrigins {
			u, err := url.Parse(strings.TrimSpace(origin))
			if err != nil {
				return fmt.Errorf("CORS_ORIGINS contains invalid origin %q: %w", origin, err)
			}
			host := u.Hostname()
			if host == "localhost" || host == "127.0.0.1" || host == "::1" {
				return fmt.Errorf("CORS_ORIGINS must not contain loopback origin %q in production", origin)
			}
		}
	}

	return nil
}
