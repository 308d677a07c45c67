package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Remote    Remote    `yaml:"remote"`
	Discovery Discovery `yaml:"discovery"`
	Sync      Sync      `yaml:"sync"`
	Inference Inference `yaml:"inference"`
	Quality   Quality   `yaml:"quality"`
	Server    Server    `yaml:"server"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type Remote struct {
	BaseURL        string `yaml:"base_url"`
	WorkspaceID    string `yaml:"workspace_id"`
	APITokenEnv    string `yaml:"api_token_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Discovery struct {
	FeedURL             string   `yaml:"feed_url"`
	PollIntervalSeconds int      `yaml:"poll_interval_seconds"`
	Projects            []string `yaml:"projects"`
}

type Sync struct {
	RateLimit        float64 `yaml:"rate_limit"` // remote calls per second
	BatchSize        int     `yaml:"batch_size"`
	StalenessMinutes int     `yaml:"staleness_minutes"`
	DebounceMillis   int     `yaml:"debounce_ms"`
}

type Inference struct {
	Provider             string `yaml:"provider"`
	Model                string `yaml:"model"`
	OllamaURL            string `yaml:"ollama_url"`
	OpenAIModel          string `yaml:"openai_model"`
	APIKeyEnv            string `yaml:"api_key_env"`
	InitRetries          int    `yaml:"init_retries"`
	InitRetryDelaySecs   int    `yaml:"init_retry_delay_seconds"`
	KeepaliveSeconds     int    `yaml:"keepalive_seconds"`
	IdleThresholdMinutes int    `yaml:"idle_threshold_minutes"`
}

type Quality struct {
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for atlasxray.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "atlasxray")
}

// DataDir returns the XDG data directory for atlasxray.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "atlasxray")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/atlasxray/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'atlasxray init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Remote: Remote{
			APITokenEnv:    "ATLAS_API_TOKEN",
			TimeoutSeconds: 30,
		},
		Discovery: Discovery{
			PollIntervalSeconds: 300,
		},
		Sync: Sync{
			RateLimit:        5,
			BatchSize:        5,
			StalenessMinutes: 60,
			DebounceMillis:   1000,
		},
		Inference: Inference{
			Provider:             "ollama",
			Model:                "qwen2.5:7b",
			OllamaURL:            "http://localhost:11434",
			OpenAIModel:          "gpt-4o-mini",
			APIKeyEnv:            "OPENAI_API_KEY",
			InitRetries:          3,
			InitRetryDelaySecs:   5,
			KeepaliveSeconds:     60,
			IdleThresholdMinutes: 5,
		},
		Quality: Quality{CacheTTLMinutes: 60},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Staleness returns the update staleness threshold as a duration.
func (c *Config) Staleness() time.Duration {
	return time.Duration(c.Sync.StalenessMinutes) * time.Minute
}

// Debounce returns the discovery debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Sync.DebounceMillis) * time.Millisecond
}

// CacheTTL returns the analysis cache expiry as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Quality.CacheTTLMinutes) * time.Minute
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
