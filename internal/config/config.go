package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token        string  `yaml:"token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type OpsConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AIConfig struct {
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIModel     string `yaml:"openai_model"`
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	GeminiModel     string `yaml:"gemini_model"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent interpreter calls
}

type QueueConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	RetryLimit      int           `yaml:"retry_limit"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	ExpireIn        time.Duration `yaml:"expire_in"`
	StaleAfterMin   int           `yaml:"stale_after_minutes"`
	InterpreterTry  int           `yaml:"interpreter_attempts"`
	InterpreterBase time.Duration `yaml:"interpreter_base_delay"`
}

type CreditsConfig struct {
	OnboardingBonus int `yaml:"onboarding_bonus"`
}

type AlertsConfig struct {
	Window time.Duration `yaml:"window"`
	Limit  int           `yaml:"limit"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Log      LogConfig      `yaml:"log"`
	Ops      OpsConfig      `yaml:"ops"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Queue    QueueConfig    `yaml:"queue"`
	Credits  CreditsConfig  `yaml:"credits"`
	Alerts   AlertsConfig   `yaml:"alerts"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Ops.Port == 0 {
		cfg.Ops.Port = 8081
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 8
	}
	if cfg.AI.OpenAIModel == "" {
		cfg.AI.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.AI.GeminiModel == "" {
		cfg.AI.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.Queue.PollInterval <= 0 {
		cfg.Queue.PollInterval = 2 * time.Second
	}
	if cfg.Queue.RetryLimit <= 0 {
		cfg.Queue.RetryLimit = 2
	}
	if cfg.Queue.RetryDelay <= 0 {
		cfg.Queue.RetryDelay = 30 * time.Second
	}
	if cfg.Queue.ExpireIn <= 0 {
		cfg.Queue.ExpireIn = 15 * time.Minute
	}
	if cfg.Queue.StaleAfterMin <= 0 {
		cfg.Queue.StaleAfterMin = 10
	}
	if cfg.Queue.InterpreterTry <= 0 {
		cfg.Queue.InterpreterTry = 3
	}
	if cfg.Queue.InterpreterBase <= 0 {
		cfg.Queue.InterpreterBase = 2 * time.Second
	}
	if cfg.Credits.OnboardingBonus <= 0 {
		cfg.Credits.OnboardingBonus = 1
	}
	if cfg.Alerts.Window <= 0 {
		cfg.Alerts.Window = time.Minute
	}
	if cfg.Alerts.Limit <= 0 {
		cfg.Alerts.Limit = 1
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
