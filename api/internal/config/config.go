package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	LLMEngine       string `yaml:"llm_engine"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	OpenAIModel     string `yaml:"openai_model"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	GeminiModel     string `yaml:"gemini_model"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
	TTSModel        string `yaml:"tts_model"`
	TTSVoice        string `yaml:"tts_voice"`

	RequestTimeout        time.Duration `yaml:"request_timeout"`
	MaxBodyBytes          int64         `yaml:"max_body_bytes"`
	MaxTotalImageBytes    int           `yaml:"max_total_image_bytes"`
	RateLimitMax          int           `yaml:"rate_limit_max"`
	RateLimitWindow       time.Duration `yaml:"rate_limit_window"`
	LedgerCapacity        int           `yaml:"ledger_capacity"`
	TranscribeConcurrency int           `yaml:"transcribe_concurrency"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	PromptDir   string `yaml:"prompt_dir"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	WebhookURL       string `yaml:"webhook_url"`
}

func Defaults() Config {
	return Config{
		Port:                  "3000",
		Env:                   "production",
		LLMEngine:             "gpt",
		OpenAIModel:           "gpt-4o",
		GeminiModel:           "gemini-2.5-flash",
		AnthropicModel:        "claude-sonnet-4-5",
		TTSModel:              "tts-1",
		TTSVoice:              "alloy",
		RequestTimeout:        120 * time.Second,
		MaxBodyBytes:          50 << 20,
		MaxTotalImageBytes:    8_000_000,
		RateLimitMax:          100,
		RateLimitWindow:       15 * time.Minute,
		LedgerCapacity:        10000,
		TranscribeConcurrency: 4,
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getDuration понимает и "90s", и голое число секунд.
func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

// Load: .env (если есть) -> дефолты -> YAML из LEXIE_CONFIG -> переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("LEXIE_CONFIG")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("APP_ENV", getEnv("NODE_ENV", cfg.Env))
	cfg.LLMEngine = getEnv("LLM_ENGINE", cfg.LLMEngine)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = getEnv("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.TTSModel = getEnv("TTS_MODEL", cfg.TTSModel)
	cfg.TTSVoice = getEnv("TTS_VOICE", cfg.TTSVoice)

	cfg.RequestTimeout = getDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.MaxBodyBytes = int64(getInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.MaxTotalImageBytes = getInt("MAX_TOTAL_IMAGE_BYTES", cfg.MaxTotalImageBytes)
	cfg.RateLimitMax = getInt("RATE_LIMIT_MAX", cfg.RateLimitMax)
	cfg.RateLimitWindow = getDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	cfg.LedgerCapacity = getInt("LEDGER_CAPACITY", cfg.LedgerCapacity)
	cfg.TranscribeConcurrency = getInt("TRANSCRIBE_CONCURRENCY", cfg.TranscribeConcurrency)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.PromptDir = getEnv("PROMPT_DIR", cfg.PromptDir)
	cfg.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	cfg.WebhookURL = getEnv("WEBHOOK_URL", cfg.WebhookURL)

	return &cfg, nil
}

func (c *Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

// Validate требует ключ выбранного движка и разумные лимиты.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LLMEngine) {
	case "gpt", "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("missing required env OPENAI_API_KEY"))
		}
	case "gemini", "google":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("missing required env GEMINI_API_KEY"))
		}
	case "claude", "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("missing required env ANTHROPIC_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_ENGINE %q; use gpt | gemini | claude", c.LLMEngine))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.MaxTotalImageBytes <= 0 || c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("body and image limits must be positive"))
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive"))
	}
	if c.LedgerCapacity < 0 {
		errs = append(errs, errors.New("LEDGER_CAPACITY must be >= 0"))
	}
	return errors.Join(errs...)
}
