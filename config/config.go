package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment   string        `mapstructure:"environment"`
	ServerAddress string        `mapstructure:"server.address"`
	ServerTimeout time.Duration `mapstructure:"server.timeout"`
	LogLevel      string        `mapstructure:"logging.level"`
	LogFormat     string        `mapstructure:"logging.format"`
	Store         StoreConfig
	Backend       BackendConfig
	Sync          SyncConfig
}

// StoreConfig holds local store configuration
type StoreConfig struct {
	Path     string `mapstructure:"store.path"`
	InMemory bool   `mapstructure:"store.in_memory"`
}

// BackendConfig holds store-backend API configuration
type BackendConfig struct {
	BaseURL     string        `mapstructure:"backend.base_url"`
	Timeout     time.Duration `mapstructure:"backend.timeout"`
	APIKey      string        `mapstructure:"backend.api_key"`
	HealthPath  string        `mapstructure:"backend.health_path"`
	ProbeExpiry time.Duration `mapstructure:"backend.probe_expiry"`
}

// SyncConfig holds background synchronization configuration
type SyncConfig struct {
	Interval time.Duration `mapstructure:"sync.interval"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Setup configuration paths
	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Try to read the YAML config first
	if err := v.ReadInConfig(); err != nil {
		// If YAML not found, try ENV file
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			v.SetConfigName("app")
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				// Continue even if no config file is found - we'll use ENV vars and defaults
				fmt.Printf("Warning: No configuration file found: %v\n", err)
			}
		} else {
			// Return if there's an error reading the found config file
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Enable environment variables to override config
	v.SetEnvPrefix("TERMINAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("environment", "development")
	v.SetDefault("server.address", "127.0.0.1:7070")
	v.SetDefault("server.timeout", "30s")

	// Local store settings
	v.SetDefault("store.path", "./data/terminal")
	v.SetDefault("store.in_memory", false)

	// Backend settings
	v.SetDefault("backend.base_url", "http://localhost:8080/api")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.health_path", "/health")
	v.SetDefault("backend.probe_expiry", "10s")

	// Sync settings
	v.SetDefault("sync.interval", "1m")

	// Logging settings
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
