package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	configDirName = "gh-transcript"
	defaultConfig = ".config"
	historyFile   = "history.db"
)

var configFiles = []string{
	"config.yaml",
	"config.yml",
}

// Config represents the structure of the configuration file used by the application.
type Config struct {
	Model   string            `yaml:"model" default:"gpt-4.1"`
	Prompts map[string]Prompt `yaml:"prompts"`
	Render  Render            `yaml:"render"`
	Stream  Stream            `yaml:"stream"`
	Payload Payload           `yaml:"payload"`
	History History           `yaml:"history"`
	Log     Log               `yaml:"log"`
}

// Prompt is a predefined command. In YAML it may be a plain string or a
// mapping with prompt and model keys.
type Prompt struct {
	Prompt string `yaml:"prompt"`
	Model  string `yaml:"model"`
}

// UnmarshalYAML accepts both the scalar and the mapping form.
func (p *Prompt) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Prompt = node.Value
		return nil
	}
	type plain Prompt
	return node.Decode((*plain)(p))
}

type Render struct {
	// Format is "markdown" or "plain".
	Format string `yaml:"format" default:"markdown"`
	Wrap   int    `yaml:"wrap" default:"120"`
}

type Stream struct {
	StopSequences []string `yaml:"stop_sequences"`
	// Snapshots means the backend sends cumulative text rather than deltas.
	Snapshots bool `yaml:"snapshots"`
}

type Payload struct {
	RepairJSON bool `yaml:"repair_json"`
}

type History struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path"`
}

type Log struct {
	Level string `yaml:"level" default:"warn"`
}

// configResult is a struct used to return the configuration and any error that occurs during loading.
type configResult struct {
	config *Config
	err    error
}

// newDefaultConfig creates a configuration populated with default values.
func newDefaultConfig() (*Config, error) {
	cfg := &Config{Prompts: map[string]Prompt{}}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return cfg, nil
}

// Dir retrieves the path to the configuration directory based on the XDG_CONFIG_HOME environment variable.
func Dir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(home, defaultConfig)
	}

	return filepath.Join(configHome, configDirName), nil
}

// HistoryPath returns the transcript database location.
func (c *Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, historyFile), nil
}

// tryLoadConfig attempts to load a configuration file from the specified path.
func tryLoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// parse decodes YAML on top of the defaults.
func parse(data []byte) (*Config, error) {
	cfg, err := newDefaultConfig()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Prompts == nil {
		cfg.Prompts = map[string]Prompt{}
	}
	return cfg, nil
}

// LoadConfig loads the configuration from the user's home directory, with a timeout.
func LoadConfig(ctx context.Context) (*Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result := make(chan configResult, 1)

	go func() {
		cfg, err := loadConfigFiles(ctx)
		result <- configResult{config: cfg, err: err}
	}()

	done := ctx.Done()
	select {
	case <-done:
		return nil, ctx.Err()
	case r := <-result:
		return r.config, r.err
	}
}

// loadConfigFiles loads configuration files from the user's home directory.
func loadConfigFiles(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before loading config: %w", err)
	}

	configDir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	// Return default config early if directory doesn't exist
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return newDefaultConfig()
	}

	for _, filename := range configFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cfg, err := tryLoadConfig(filepath.Join(configDir, filename))
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from %s: %w", filename, err)
		}
	}

	return newDefaultConfig()
}
