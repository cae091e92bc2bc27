// Package cfg loads service configuration from a YAML file (CONFIG_FILE)
// or from environment variables, with env values overriding the file.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	DataPath          string
	ModelsDir         string
	ESPNBaseURL       string
	MetricsPort       int
	RESTTimeout       time.Duration
	TuneTimeout       time.Duration
	MinTrainingGames  int
	MinCompletedGames int
	QuickTune         bool
}

type ConfigFile struct {
	Source struct {
		BaseURL     string `yaml:"baseURL"`
		RESTTimeout string `yaml:"restTimeout"`
	} `yaml:"source"`

	ML struct {
		ModelsDir         string `yaml:"modelsDir"`
		TuneTimeout       string `yaml:"tuneTimeout"`
		MinTrainingGames  int    `yaml:"minTrainingGames"`
		MinCompletedGames int    `yaml:"minCompletedGames"`
		QuickTune         bool   `yaml:"quickTune"`
	} `yaml:"ml"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout, err := time.ParseDuration(config.Source.RESTTimeout)
	if err != nil {
		restTimeout = 10 * time.Second
	}
	tuneTimeout, err := time.ParseDuration(config.ML.TuneTimeout)
	if err != nil {
		tuneTimeout = 10 * time.Minute
	}

	settings := Settings{
		DataPath:          getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ModelsDir:         getEnvOrDefault("MODELS_DIR", config.ML.ModelsDir),
		ESPNBaseURL:       getEnvOrDefault("ESPN_BASE_URL", config.Source.BaseURL),
		MetricsPort:       getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort),
		RESTTimeout:       getDurationOrDefault("REST_TIMEOUT", restTimeout),
		TuneTimeout:       getDurationOrDefault("TUNE_TIMEOUT", tuneTimeout),
		MinTrainingGames:  getIntFromEnvOrConfig("MIN_TRAINING_GAMES", config.ML.MinTrainingGames),
		MinCompletedGames: getIntFromEnvOrConfig("MIN_COMPLETED_GAMES", config.ML.MinCompletedGames),
		QuickTune:         getBoolFromEnvOrConfig("QUICK_TUNE", config.ML.QuickTune),
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:          getEnvOrDefault("DATA_PATH", "data"),
		ModelsDir:         getEnvOrDefault("MODELS_DIR", "models"),
		ESPNBaseURL:       os.Getenv("ESPN_BASE_URL"), // empty = built-in default
		MetricsPort:       getIntOrDefault("METRICS_PORT", 8080),
		RESTTimeout:       getDurationOrDefault("REST_TIMEOUT", 10*time.Second),
		TuneTimeout:       getDurationOrDefault("TUNE_TIMEOUT", 10*time.Minute),
		MinTrainingGames:  getIntOrDefault("MIN_TRAINING_GAMES", 100),
		MinCompletedGames: getIntOrDefault("MIN_COMPLETED_GAMES", 50),
		QuickTune:         getBoolOrDefault("QUICK_TUNE", false),
	}
	applyDefaults(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func applyDefaults(s *Settings) {
	if s.DataPath == "" {
		s.DataPath = "data"
	}
	if s.ModelsDir == "" {
		s.ModelsDir = "models"
	}
	if s.MetricsPort == 0 {
		s.MetricsPort = 8080
	}
	if s.MinTrainingGames == 0 {
		s.MinTrainingGames = 100
	}
	if s.MinCompletedGames == 0 {
		s.MinCompletedGames = 50
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	return configValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.ModelsDir == "" {
		return fmt.Errorf("models directory cannot be empty")
	}

	if settings.MetricsPort < 1024 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}

	if settings.RESTTimeout < time.Second || settings.RESTTimeout > time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 1m, got %v", settings.RESTTimeout)
	}
	if settings.TuneTimeout < time.Minute || settings.TuneTimeout > 4*time.Hour {
		return fmt.Errorf("tune timeout must be between 1m and 4h, got %v", settings.TuneTimeout)
	}

	if settings.MinTrainingGames < 10 || settings.MinTrainingGames > 100000 {
		return fmt.Errorf("minimum training games must be between 10 and 100000, got %d", settings.MinTrainingGames)
	}
	if settings.MinCompletedGames < 10 || settings.MinCompletedGames > settings.MinTrainingGames {
		return fmt.Errorf("minimum completed games must be between 10 and %d, got %d",
			settings.MinTrainingGames, settings.MinCompletedGames)
	}
	return nil
}
