// Package config loads application configuration from file, environment
// and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"condense/internal/core"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Provider Provider `mapstructure:"provider"`
	Summary  Summary  `mapstructure:"summary"`
	Cache    Cache    `mapstructure:"cache"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// Provider holds the active provider selection and per-provider settings
type Provider struct {
	Active    string                         `mapstructure:"active"`
	Providers map[string]core.ProviderConfig `mapstructure:"providers"`
}

// Summary holds default summarization options
type Summary struct {
	Detail           string `mapstructure:"detail"`
	Language         string `mapstructure:"language"`
	LanguageExcept   string `mapstructure:"language_except"`
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryDelay       string `mapstructure:"retry_delay"`
	UserInstructions string `mapstructure:"user_instructions"`
	ImageAnalysis    bool   `mapstructure:"image_analysis"`
}

// Cache holds summary cache configuration
type Cache struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	TTL       string `mapstructure:"ttl"`
}

// Logging holds logging configuration
type Logging struct {
	Level string `mapstructure:"level"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	// Configure viper
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".condense")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".condense-cache")

	// Provider defaults
	viper.SetDefault("provider.active", "openai")

	// Summary defaults
	viper.SetDefault("summary.detail", "standard")
	viper.SetDefault("summary.language", "auto")
	viper.SetDefault("summary.max_retries", 2)
	viper.SetDefault("summary.retry_delay", "1s")
	viper.SetDefault("summary.image_analysis", false)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.directory", ".condense-cache")
	viper.SetDefault("cache.ttl", "168h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("provider.providers.openai.api_key", []string{
		"OPENAI_API_KEY",
	})

	bindEnvKeys("provider.providers.anthropic.api_key", []string{
		"ANTHROPIC_API_KEY",
		"CLAUDE_API_KEY",
	})

	bindEnvKeys("provider.providers.google.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("provider.providers.deepseek.api_key", []string{
		"DEEPSEEK_API_KEY",
	})

	bindEnvKeys("provider.providers.xai.api_key", []string{
		"XAI_API_KEY",
		"GROK_API_KEY",
	})

	bindEnvKeys("provider.providers.self-hosted.endpoint", []string{
		"OLLAMA_HOST",
		"SELF_HOSTED_ENDPOINT",
	})

	bindEnvKeys("provider.active", []string{
		"CONDENSE_PROVIDER",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"CONDENSE_DEBUG",
	})

	bindEnvKeys("logging.level", []string{
		"CONDENSE_LOG_LEVEL",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.Cache.Directory != "" {
		config.Cache.Directory = expandPath(config.Cache.Directory)
	}
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}

	// Each provider entry learns its own id from the map key.
	for id, pc := range config.Provider.Providers {
		if pc.ProviderID == "" {
			pc.ProviderID = id
			config.Provider.Providers[id] = pc
		}
	}

	durations := map[string]string{
		"summary.retry_delay": config.Summary.RetryDelay,
		"cache.ttl":           config.Cache.TTL,
	}
	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures required configuration is present
func validateConfig(config *Config) error {
	var errors []string

	switch config.Summary.Detail {
	case "", "brief", "standard", "detailed":
	default:
		errors = append(errors, fmt.Sprintf("Unknown detail level: %s. Supported: brief, standard, detailed", config.Summary.Detail))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ActiveProvider returns the configuration for the selected provider.
// Credentials are validated later when the provider is constructed.
func (c *Config) ActiveProvider() (core.ProviderConfig, error) {
	id := c.Provider.Active
	if id == "" {
		return core.ProviderConfig{}, fmt.Errorf("no active provider configured. Set provider.active or CONDENSE_PROVIDER")
	}

	pc, ok := c.Provider.Providers[id]
	if !ok {
		pc = core.ProviderConfig{ProviderID: id}
	}
	if pc.ProviderID == "" {
		pc.ProviderID = id
	}
	return pc, nil
}

// Convenience getters for commonly used configuration values
func GetApp() App               { return Get().App }
func GetSummary() Summary       { return Get().Summary }
func GetCache() Cache           { return Get().Cache }
func GetLogging() Logging       { return Get().Logging }
func GetCacheDirectory() string { return Get().Cache.Directory }
func IsDebugMode() bool         { return Get().App.Debug }

// RetryDelayDuration parses the configured retry delay, falling back to 1s.
func (s Summary) RetryDelayDuration() time.Duration {
	d, err := time.ParseDuration(s.RetryDelay)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// TTLDuration parses the configured cache TTL, falling back to a week.
func (c Cache) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
