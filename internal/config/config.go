package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime settings of the service.
type Config struct {
	AppPort        string
	DatabaseDriver string
	DatabaseDSN    string
	JWTSecret      string
	TokenTTL       time.Duration
	LogLevel       string
	RabbitMQURL    string
	RedisAddr      string
	RedisPassword  string
	BlockReturned  bool
	LoginRateLimit int
	// AllowAdminRegistration lets anonymous sign-ups pick the admin role.
	AllowAdminRegistration bool
	Admin                  AdminConfig
}

// AdminConfig describes the administrator created at startup when missing.
type AdminConfig struct {
	Name     string
	Password string
	CPF      string
}

// Enabled reports whether a bootstrap administrator is configured.
func (a AdminConfig) Enabled() bool {
	return a.Name != "" && a.Password != "" && a.CPF != ""
}

// Load reads the configuration from the environment and, when present, from
// config.yaml in the working directory. Environment variables win.
func Load() (Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, dir string) (Config, error) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "biblioteca.db")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOANS_BLOCK_RETURNED", false)
	v.SetDefault("REGISTRATION_ALLOW_ADMIN", false)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	for _, key := range []string{"JWT_SECRET", "RABBITMQ_URL", "REDIS_ADDR", "REDIS_PASSWORD", "ADMIN_NAME", "ADMIN_PASSWORD", "ADMIN_CPF"} {
		v.SetDefault(key, "")
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		AppPort:                v.GetString("APP_PORT"),
		DatabaseDriver:         strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:            v.GetString("DATABASE_DSN"),
		JWTSecret:              v.GetString("JWT_SECRET"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		RabbitMQURL:            v.GetString("RABBITMQ_URL"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		BlockReturned:          v.GetBool("LOANS_BLOCK_RETURNED"),
		LoginRateLimit:         v.GetInt("LOGIN_RATE_LIMIT"),
		AllowAdminRegistration: v.GetBool("REGISTRATION_ALLOW_ADMIN"),
		Admin: AdminConfig{
			Name:     v.GetString("ADMIN_NAME"),
			Password: v.GetString("ADMIN_PASSWORD"),
			CPF:      v.GetString("ADMIN_CPF"),
		},
	}

	ttl, err := time.ParseDuration(v.GetString("TOKEN_TTL"))
	if err != nil || ttl <= 0 {
		return Config{}, fmt.Errorf("invalid TOKEN_TTL %q", v.GetString("TOKEN_TTL"))
	}
	cfg.TokenTTL = ttl

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.LoginRateLimit <= 0 {
		return Config{}, fmt.Errorf("invalid LOGIN_RATE_LIMIT %d", cfg.LoginRateLimit)
	}
	return cfg, nil
}
