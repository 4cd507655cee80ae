package config

import (
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the geocoding tools.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Provider: Which geocoding backend to use and how to reach it.
// - Request: Defaults applied to every outgoing geocoding request.
// - MetricsFile: Optional node_exporter textfile to flush metrics into.
type Config struct {
	Env         string         `yaml:"env"`          // Env is the current environment: local, development, production.
	Provider    ProviderConfig `yaml:"provider"`     // Provider holds the geocoding backend configuration.
	Request     RequestConfig  `yaml:"request"`      // Request holds per-request defaults.
	MetricsFile string         `yaml:"metrics.file"` // Textfile collector path, empty to skip.
}

// ProviderConfig describes the geocoding backend.
type ProviderConfig struct {
	Type      string `yaml:"type"`       // Type is google or nominatim.
	APIKey    string `yaml:"key"`        // The API key for accessing external services.
	RateLimit int    `yaml:"rate_limit"` // Requests per second sent to the provider.
	BaseURL   string `yaml:"base_url"`   // Optional API base URL override.
}

// RequestConfig holds defaults copied into requests built by the command line.
type RequestConfig struct {
	Language string `yaml:"language"` // Language of the returned results.
	Region   string `yaml:"region"`   // Region bias as a ccTLD code.
}

// MustLoad reads the configuration from the environment (after loading a .env
// file when present) and from the YAML file named by CARTOGRAPH_CONFIG_FILE.
// Environment variables win over the file. It panics on invalid values.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CARTOGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("provider.type", "google") // Default to Google for backward compatibility
	v.SetDefault("provider.rate_limit", "50")

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file")
		}
	}

	rateLimit, err := strconv.Atoi(v.GetString("provider.rate_limit"))
	if err != nil {
		panic("failed to parse provider rate limit from configuration, must be an integer")
	}

	return &Config{
		Env: v.GetString("env"),
		Provider: ProviderConfig{
			Type:      v.GetString("provider.type"),
			APIKey:    v.GetString("provider.key"),
			RateLimit: rateLimit,
			BaseURL:   v.GetString("provider.base_url"),
		},
		Request: RequestConfig{
			Language: v.GetString("request.language"),
			Region:   v.GetString("request.region"),
		},
		MetricsFile: v.GetString("metrics.file"),
	}
}
