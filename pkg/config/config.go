// Package config loads application settings from the environment using
// Viper. An optional .env file in the working directory is honored, but
// real environment variables always win.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every tunable the application reads at startup.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogFormat   string `mapstructure:"LOG_FORMAT"`
	ExportDir   string `mapstructure:"EXPORT_DIR"`
	MaxUploadMB int64  `mapstructure:"MAX_UPLOAD_MB"`
	PaymentDay  int    `mapstructure:"PAYMENT_DAY"`
}

// Load reads configuration from environment variables, falling back to
// an optional .env file at the given path and then to built-in defaults.
func Load(path string) (Config, error) {
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("EXPORT_DIR", "exports")
	v.SetDefault("MAX_UPLOAD_MB", 16)
	v.SetDefault("PAYMENT_DAY", 15)

	// Bind each variable explicitly so it survives Unmarshal even when
	// only the environment supplies it.
	_ = v.BindEnv("SERVER_PORT")
	_ = v.BindEnv("LOG_LEVEL")
	_ = v.BindEnv("LOG_FORMAT")
	_ = v.BindEnv("EXPORT_DIR")
	_ = v.BindEnv("MAX_UPLOAD_MB")
	_ = v.BindEnv("PAYMENT_DAY")

	// A missing .env file is fine; any other read error is not.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ServerPort = strings.TrimSpace(cfg.ServerPort)
	cfg.ExportDir = strings.TrimSpace(cfg.ExportDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values that would misbehave at runtime rather than
// letting them surface as confusing errors later.
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.ServerPort)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port %q: must be a number between 1 and 65535", c.ServerPort)
	}
	if c.PaymentDay < 1 || c.PaymentDay > 28 {
		return fmt.Errorf("invalid payment day %d: must be between 1 and 28", c.PaymentDay)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("invalid max upload size %d MB: must be at least 1", c.MaxUploadMB)
	}
	if c.ExportDir == "" {
		return fmt.Errorf("export directory must not be empty")
	}
	return nil
}
