package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server      ServerConfig
	Model       ModelConfig
	Gemini      GeminiConfig
	OpenAI      OpenAIConfig
	Analysis    AnalysisConfig
	RedisConfig RedisConfig
	Log         LogConfig
	CacheEnable bool `env:"CACHE_ENABLE" envDefault:"false"`
}

type ServerConfig struct {
	Port                   string        `env:"SERVER_PORT" envDefault:"8080"`
	Timeout                time.Duration `env:"SERVER_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout        time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ThrottleLimit          int           `env:"SERVER_THROTTLE_LIMIT" envDefault:"50"`
	ThrottleBacklogTimeout time.Duration `env:"SERVER_THROTTLE_BACKLOG_TIMEOUT" envDefault:"30s"`
	MaxBodyBytes           int64         `env:"SERVER_MAX_BODY_BYTES" envDefault:"52428800"`
	AllowedOrigin          string        `env:"SERVER_ALLOWED_ORIGIN" envDefault:"*"`
	Compress               bool          `env:"SERVER_COMPRESS" envDefault:"true"`
}

type ModelConfig struct {
	Provider string        `env:"MODEL_PROVIDER" envDefault:"gemini"`
	Timeout  time.Duration `env:"MODEL_TIMEOUT" envDefault:"60s"`
}

type GeminiConfig struct {
	APIKey       string `env:"GEMINI_API_KEY"`
	LegacyAPIKey string `env:"API_KEY"`
	Model        string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
}

// Key returns GEMINI_API_KEY, or API_KEY when the former is unset.
func (c GeminiConfig) Key() string {
	if strings.TrimSpace(c.APIKey) != "" {
		return c.APIKey
	}
	return c.LegacyAPIKey
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"http://localhost:8000/v1"`
	Model   string `env:"OPENAI_MODEL" envDefault:"default"`
}

type AnalysisConfig struct {
	DefaultPrompt string  `env:"ANALYSIS_DEFAULT_PROMPT" envDefault:"Analyse this casino game screenshot and return the result as JSON."`
	PDFDPI        float64 `env:"ANALYSIS_PDF_DPI" envDefault:"150"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"redis:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"10m"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the optional env files (.env when none are given) and then the
// process environment. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Model.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown MODEL_PROVIDER %q", c.Model.Provider)
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be positive, got %s", c.Model.Timeout)
	}
	if strings.TrimSpace(c.Analysis.DefaultPrompt) == "" {
		return errors.New("ANALYSIS_DEFAULT_PROMPT must not be empty")
	}
	if c.Analysis.PDFDPI <= 0 {
		return fmt.Errorf("ANALYSIS_PDF_DPI must be positive, got %v", c.Analysis.PDFDPI)
	}
	return nil
}
