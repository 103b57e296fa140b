package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

type (
	Config struct {
		HTTP
		Global
		Database
		UI
		Auth
		Throttle
		Audit
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver   DatabaseDriver
		Path     string // sqlite file
		DSN      string // postgres connection string
		LogLevel string // silent, error, warn or info
	}
	UI struct {
		TemplatesPath string
		StaticPath    string
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS

		MaxLoginAttempts int
		RateLimitWindow  time.Duration
		LockoutDuration  time.Duration
	}
	// Throttle limits requests per client IP across the whole router.
	Throttle struct {
		Enabled bool
		RPS     float64
		Burst   int
	}
	Audit struct {
		RetentionDays int
	}
)

// NewConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func NewConfig() *Config {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_driver", string(DriverSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")
	v.SetDefault("database_log_level", "info")
	v.SetDefault("templates_path", "./templates")
	v.SetDefault("static_path", "./static")
	v.SetDefault("audit_retention_days", 30)

	// Auth defaults
	v.SetDefault("auth_session_secret", "")       // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")  // 24 hours
	v.SetDefault("auth_bcrypt_cost", 12)          // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("auth_max_login_attempts", 5)    // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m") // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")  // Lockout duration

	v.SetDefault("throttle_enabled", true)
	v.SetDefault("throttle_rps", 20)
	v.SetDefault("throttle_burst", 40)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver:   DatabaseDriver(v.GetString("DATABASE_DRIVER")),
			Path:     v.GetString("DATABASE_PATH"),
			DSN:      v.GetString("DATABASE_DSN"),
			LogLevel: v.GetString("DATABASE_LOG_LEVEL"),
		},
		UI: UI{
			TemplatesPath: v.GetString("TEMPLATES_PATH"),
			StaticPath:    v.GetString("STATIC_PATH"),
		},
		Auth: Auth{
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Throttle: Throttle{
			Enabled: v.GetBool("THROTTLE_ENABLED"),
			RPS:     v.GetFloat64("THROTTLE_RPS"),
			Burst:   v.GetInt("THROTTLE_BURST"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
	}
}
