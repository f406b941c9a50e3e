// Package config loads the bridge configuration from a YAML file with
// sensible defaults for every field, so running without any configuration
// file works out of the box.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"claudebridge/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/claudebridge"
	configFileName = "config.yaml"
)

// StoreKind selects which credential store backend to use.
type StoreKind string

const (
	// StoreAuto picks the platform default: keychain on darwin, file
	// elsewhere.
	StoreAuto StoreKind = "auto"
	// StoreFile forces the plaintext credential file.
	StoreFile StoreKind = "file"
	// StoreKeychain forces the macOS keychain.
	StoreKeychain StoreKind = "keychain"
)

// Config is the top-level bridge configuration.
type Config struct {
	Model       Model       `yaml:"model,omitempty"`
	Credentials Credentials `yaml:"credentials,omitempty"`
	LogLevel    string      `yaml:"logLevel,omitempty"`
}

// Model holds the chat defaults applied when a request does not set them.
type Model struct {
	Name        string   `yaml:"name,omitempty"`
	MaxTokens   int      `yaml:"maxTokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// Credentials selects where the OAuth credential is read from and written
// back to.
type Credentials struct {
	// Store is one of auto, file or keychain.
	Store StoreKind `yaml:"store,omitempty"`

	// Path overrides the credential file location when the file store is
	// in use. Empty means ~/.claude/.credentials.json.
	Path string `yaml:"path,omitempty"`
}

// GetDefaultConfigPathOrPanic returns the user configuration directory.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// GetDefaultConfig returns the configuration used when no file is present.
func GetDefaultConfig() Config {
	return Config{
		Model: Model{
			MaxTokens: 4096,
		},
		Credentials: Credentials{
			Store: StoreAuto,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads config.yaml from the given directory, layering it over
// the defaults. A missing file is not an error; a malformed one is.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config at %s: %w", configFilePath, err)
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// Validate rejects values the rest of the program cannot act on.
func (c Config) Validate() error {
	switch c.Credentials.Store {
	case StoreAuto, StoreFile, StoreKeychain, "":
	default:
		return fmt.Errorf("unknown credential store %q (want auto, file or keychain)", c.Credentials.Store)
	}

	if c.Model.MaxTokens < 0 {
		return fmt.Errorf("maxTokens must not be negative, got %d", c.Model.MaxTokens)
	}

	if c.Model.Temperature != nil {
		t := *c.Model.Temperature
		if t < 0 || t > 1 {
			return fmt.Errorf("temperature must be within [0, 1], got %v", t)
		}
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	return nil
}
