package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string          `yaml:"discord_token"`
	StorePath     string          `yaml:"store_path"`
	LogLevel      string          `yaml:"log_level"`
	CommandPrefix string          `yaml:"command_prefix"`
	Health        HealthConfig    `yaml:"health"`
	Sampling      SamplingConfig  `yaml:"sampling"`
	Scheduler     SchedulerConfig `yaml:"scheduler"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// SamplingConfig carries the tunables of the sampling and retry machinery.
// The defaults are the values the bot has always shipped with; none of them
// is a hard contract.
type SamplingConfig struct {
	FetchLimit         int `yaml:"fetch_limit"`
	MaxAttempts        int `yaml:"max_attempts"`
	PollBuildRetries   int `yaml:"poll_build_retries"`
	RetryBackoffMillis int `yaml:"retry_backoff_millis"`
	ToleranceDays      int `yaml:"tolerance_days"`
}

type SchedulerConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
}

func DefaultConfig() Config {
	return Config{
		StorePath:     "server_configs.json",
		LogLevel:      "info",
		CommandPrefix: "$",
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Sampling: SamplingConfig{
			FetchLimit:         100,
			MaxAttempts:        6,
			PollBuildRetries:   3,
			RetryBackoffMillis: 500,
			ToleranceDays:      10,
		},
		Scheduler: SchedulerConfig{Enabled: false, IntervalMinutes: 1440},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "$"
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.StorePath = envString("STORE_PATH", cfg.StorePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.CommandPrefix = envString("COMMAND_PREFIX", cfg.CommandPrefix)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Sampling.FetchLimit = envInt("SAMPLING_FETCH_LIMIT", cfg.Sampling.FetchLimit)
	cfg.Sampling.MaxAttempts = envInt("SAMPLING_MAX_ATTEMPTS", cfg.Sampling.MaxAttempts)
	cfg.Sampling.PollBuildRetries = envInt("POLL_BUILD_RETRIES", cfg.Sampling.PollBuildRetries)
	cfg.Sampling.RetryBackoffMillis = envInt("SAMPLING_RETRY_BACKOFF_MILLIS", cfg.Sampling.RetryBackoffMillis)
	cfg.Sampling.ToleranceDays = envInt("SAMPLING_TOLERANCE_DAYS", cfg.Sampling.ToleranceDays)
	cfg.Scheduler.Enabled = envBool("SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	cfg.Scheduler.IntervalMinutes = envInt("SCHEDULER_INTERVAL_MINUTES", cfg.Scheduler.IntervalMinutes)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
