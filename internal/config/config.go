// Package config loads runtime settings from BOOKSMS_* environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix  = "BOOKSMS"
	envFileKey = "BOOKSMS_CONFIG_FILE"

	maxPageSize = 5
)

type Config struct {
	BooksTable            string        `mapstructure:"books_table"`
	ParamPrefix           string        `mapstructure:"param_prefix"`
	OpenAIModel           string        `mapstructure:"openai_model"`
	OpenAIBaseURL         string        `mapstructure:"openai_base_url"`
	AIEnabled             bool          `mapstructure:"ai_enabled"`
	AIConfidenceThreshold float64       `mapstructure:"ai_confidence_threshold"`
	ContextTTL            time.Duration `mapstructure:"context_ttl"`
	ResultsPageSize       int           `mapstructure:"results_page_size"`
	MaxMessageLength      int           `mapstructure:"max_message_length"`
	LogLevel              string        `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("books_table", "")
	v.SetDefault("param_prefix", "")
	v.SetDefault("openai_model", "gpt-4o-mini")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("ai_enabled", true)
	v.SetDefault("ai_confidence_threshold", 0.7)
	v.SetDefault("context_ttl", 30*time.Minute)
	v.SetDefault("results_page_size", maxPageSize)
	v.SetDefault("max_message_length", 1600)
	v.SetDefault("log_level", "info")
}

// Load reads defaults, then the file named by BOOKSMS_CONFIG_FILE if set,
// then BOOKSMS_* environment variables, and validates the result.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(envFileKey)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.BooksTable) == "" {
		errs = append(errs, errors.New("books_table is required"))
	}
	if strings.TrimSpace(c.ParamPrefix) == "" {
		errs = append(errs, errors.New("param_prefix is required"))
	}
	if c.AIConfidenceThreshold < 0 || c.AIConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("ai_confidence_threshold must be within [0,1], got %v", c.AIConfidenceThreshold))
	}
	if c.ContextTTL <= 0 {
		errs = append(errs, fmt.Errorf("context_ttl must be positive, got %s", c.ContextTTL))
	}
	if c.ResultsPageSize < 1 || c.ResultsPageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("results_page_size must be between 1 and %d, got %d", maxPageSize, c.ResultsPageSize))
	}
	if c.MaxMessageLength < 10 {
		errs = append(errs, fmt.Errorf("max_message_length must be at least 10, got %d", c.MaxMessageLength))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q is not a valid level", s)
	}
	return l, nil
}
