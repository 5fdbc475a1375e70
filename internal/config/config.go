// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables
//  2. Config file (~/.scrivo/config.yaml or ./config.yaml)
//  3. Defaults
//
// Sensitive fields (API keys, database password) are masked in MarshalJSON;
// never log a Config except through its String method.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the selected provider has no credential.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates an unsupported provider name.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingEndpoint indicates the custom provider has no endpoint URL.
	ErrMissingEndpoint = errors.New("missing endpoint")

	// ErrInvalidDegree indicates a thinking degree outside 0..100.
	ErrInvalidDegree = errors.New("invalid thinking degree")

	// ErrInvalidListenAddr indicates an unusable listen address.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrMissingDatabaseURL indicates no database connection is configured.
	ErrMissingDatabaseURL = errors.New("missing database URL")
)

// Provider identifiers used in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderCustom = "custom"
)

// ProviderConfig holds one backend's credential and model selection.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Model    string `mapstructure:"model" json:"model"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
}

// Config stores application configuration.
type Config struct {
	// Default provider for conversations.
	Provider string `mapstructure:"provider" json:"provider"`

	OpenAI ProviderConfig `mapstructure:"openai" json:"openai"`
	Gemini ProviderConfig `mapstructure:"gemini" json:"gemini"`
	Custom ProviderConfig `mapstructure:"custom" json:"custom"`

	// ThinkingDegree is the default creativity dial, 0..100.
	ThinkingDegree int `mapstructure:"thinking_degree" json:"thinking_degree"`

	// SystemPrompt opens every conversation context.
	SystemPrompt string `mapstructure:"system_prompt" json:"system_prompt"`

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `mapstructure:"database_url" json:"database_url"` // SENSITIVE: masked in MarshalJSON

	// Server configuration.
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateLimit   float64  `mapstructure:"rate_limit" json:"rate_limit"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Image service credentials.
	UnsplashKey string `mapstructure:"unsplash_key" json:"unsplash_key"` // SENSITIVE: masked in MarshalJSON
	PexelsKey   string `mapstructure:"pexels_key" json:"pexels_key"`     // SENSITIVE: masked in MarshalJSON

	// Crawler limits.
	CrawlMaxPages int           `mapstructure:"crawl_max_pages" json:"crawl_max_pages"`
	CrawlTimeout  time.Duration `mapstructure:"crawl_timeout" json:"crawl_timeout"`
}

// Load loads configuration. Priority: environment > file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".scrivo"))
	}
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL wins over any file setting.
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("thinking_degree", 50)
	v.SetDefault("system_prompt", "You are a writing assistant for a content site. Use the available functions to create and edit posts when asked.")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit", 5.0)
	v.SetDefault("rate_burst", 10)

	v.SetDefault("crawl_max_pages", 10)
	v.SetDefault("crawl_timeout", 30*time.Second)
}

func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "SCRIVO_PROVIDER")
	mustBind("openai.api_key", "OPENAI_API_KEY")
	mustBind("openai.model", "SCRIVO_OPENAI_MODEL")
	mustBind("gemini.api_key", "GEMINI_API_KEY")
	mustBind("gemini.model", "SCRIVO_GEMINI_MODEL")
	mustBind("custom.api_key", "SCRIVO_CUSTOM_API_KEY")
	mustBind("custom.model", "SCRIVO_CUSTOM_MODEL")
	mustBind("custom.endpoint", "SCRIVO_CUSTOM_ENDPOINT")

	mustBind("database_url", "SCRIVO_DATABASE_URL")
	mustBind("listen_addr", "SCRIVO_LISTEN_ADDR")
	mustBind("cors_origins", "SCRIVO_CORS_ORIGINS")

	mustBind("unsplash_key", "UNSPLASH_ACCESS_KEY")
	mustBind("pexels_key", "PEXELS_API_KEY")
}

// Validate performs fail-fast checks on the loaded configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
		}
	case ProviderCustom:
		if c.Custom.Endpoint == "" {
			return fmt.Errorf("%w: set SCRIVO_CUSTOM_ENDPOINT", ErrMissingEndpoint)
		}
		if _, err := url.ParseRequestURI(c.Custom.Endpoint); err != nil {
			return fmt.Errorf("%w: %v", ErrMissingEndpoint, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Provider)
	}

	if c.ThinkingDegree < 0 || c.ThinkingDegree > 100 {
		return fmt.Errorf("%w: %d (want 0..100)", ErrInvalidDegree, c.ThinkingDegree)
	}
	if c.ListenAddr == "" {
		return ErrInvalidListenAddr
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: set DATABASE_URL", ErrMissingDatabaseURL)
	}
	return nil
}

const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. When adding a credential field,
// mask it here.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.OpenAI.APIKey = maskSecret(a.OpenAI.APIKey)
	a.Gemini.APIKey = maskSecret(a.Gemini.APIKey)
	a.Custom.APIKey = maskSecret(a.Custom.APIKey)
	a.UnsplashKey = maskSecret(a.UnsplashKey)
	a.PexelsKey = maskSecret(a.PexelsKey)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
