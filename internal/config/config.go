// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers for DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Authentication modes for POST /users/login.
const (
	AuthModeManual    = "manual"
	AuthModeDelegated = "delegated"
)

// Config holds every setting the server reads at startup.
type Config struct {
	AppPort string
	AppEnv  string

	DBDriver    string
	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SessionPrefix string
	SessionTTL    time.Duration
	CookieSecure  bool

	JWTSecret string
	TokenTTL  time.Duration

	RabbitMQURL string

	StoreTimeout time.Duration
	BcryptCost   int
	AuthMode     string

	LogLevel string
	LogFile  string
}

// Development reports whether the server runs with APP_ENV=development.
func (c Config) Development() bool {
	return c.AppEnv == "development"
}

// Load reads configuration from v, falling back to defaults.
// A nil v uses a fresh viper instance bound to the environment.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		AppPort:       v.GetString("APP_PORT"),
		AppEnv:        v.GetString("APP_ENV"),
		DBDriver:      v.GetString("DB_DRIVER"),
		DatabaseDSN:   v.GetString("DATABASE_DSN"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		SessionPrefix: v.GetString("SESSION_PREFIX"),
		SessionTTL:    v.GetDuration("SESSION_TTL"),
		CookieSecure:  v.GetBool("COOKIE_SECURE"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		TokenTTL:      v.GetDuration("TOKEN_TTL"),
		RabbitMQURL:   v.GetString("RABBITMQ_URL"),
		StoreTimeout:  v.GetDuration("STORE_TIMEOUT"),
		BcryptCost:    v.GetInt("BCRYPT_COST"),
		AuthMode:      v.GetString("AUTH_MODE"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFile:       v.GetString("LOG_FILE"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_DSN", "file:cuisine.db?cache=shared")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_PREFIX", "cuisine")
	v.SetDefault("SESSION_TTL", 4000*time.Second)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("JWT_SECRET", "recipeT0k3n")
	v.SetDefault("TOKEN_TTL", 24*time.Hour)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("STORE_TIMEOUT", 5*time.Second)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("AUTH_MODE", AuthModeManual)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", ".logs/cuisine.log")
}

func (c Config) validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.AuthMode {
	case AuthModeManual, AuthModeDelegated:
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", c.AuthMode)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	return nil
}
