// Package config loads the provider table and storage settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fwojciec/relay"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
)

// Config is the contents of the configuration file. RequestTimeout bounds
// the wait for response headers, not the stream.
type Config struct {
	// DefaultProvider is used when no provider is named. When empty, the
	// provider is detected from which API key variables are set.
	DefaultProvider string              `yaml:"default_provider"`
	SystemPrompt    string              `yaml:"system_prompt"`
	FlushInterval   time.Duration       `yaml:"flush_interval" validate:"gte=0"`
	RequestTimeout  time.Duration       `yaml:"request_timeout" validate:"gte=0"`
	Store           Store               `yaml:"store"`
	Providers       map[string]Provider `yaml:"providers" validate:"dive"`
}

// Store selects the message repository.
type Store struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=json sqlite badger"`
	Path   string `yaml:"path"`
}

// Provider is one entry in the provider table.
type Provider struct {
	Model          string `yaml:"model" validate:"required"`
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	MaxTokens      int    `yaml:"max_tokens" validate:"gte=0"`
	ThinkingBudget int    `yaml:"thinking_budget" validate:"gte=0"`
	EnableSearch   bool   `yaml:"enable_search"`
}

// Overrides are per-invocation settings, typically from flags. Empty fields
// leave the configured value in place.
type Overrides struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

var validate = validator.New()

// Default returns the built-in provider table.
func Default() Config {
	return Config{
		SystemPrompt:  "You are a helpful assistant.",
		FlushInterval: relay.DefaultFlushInterval,
		Store:         Store{Driver: StoreJSON},
		Providers: map[string]Provider{
			string(relay.ProviderAnthropic):  {Model: "claude-sonnet-4-20250514", MaxTokens: 8192},
			string(relay.ProviderOpenAI):     {Model: "gpt-4o"},
			string(relay.ProviderDeepSeek):   {Model: "deepseek-reasoner"},
			string(relay.ProviderGemini):     {Model: "gemini-2.5-flash"},
			string(relay.ProviderGoogle):     {Model: "gemini-2.5-flash", APIKeyEnv: "GEMINI_API_KEY"},
			string(relay.ProviderOpenRouter): {Model: "openai/gpt-4o"},
			string(relay.ProviderQwen):       {Model: "qwen-plus", EnableSearch: true, APIKeyEnv: "DASHSCOPE_API_KEY"},
			string(relay.ProviderDashScope):  {Model: "qwen-plus", EnableSearch: true},
		},
	}
}

// Load reads path on top of Default. A missing file yields Default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Write saves cfg as YAML, creating parent directories as needed.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", relay.ErrValidation, err)
	}
	return nil
}

// DefaultPath returns ~/.relay/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".relay", "config.yaml")
}

// StorePath returns the configured store path, or a default under ~/.relay.
func (c Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	switch c.Store.Driver {
	case StoreSQLite:
		return filepath.Join(homeDir(), ".relay", "relay.db")
	case StoreBadger:
		return filepath.Join(homeDir(), ".relay", "badger")
	default:
		return filepath.Join(homeDir(), ".relay", "conversations")
	}
}

// KeyEnv returns the environment variable holding a provider's API key.
func (c Config) KeyEnv(id string) string {
	if p, ok := c.Providers[id]; ok && p.APIKeyEnv != "" {
		return p.APIKeyEnv
	}
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(id)) + "_API_KEY"
}

// Resolve builds the provider config for one request. Environment values
// are read through getenv.
func (c Config) Resolve(o Overrides, getenv func(string) string) (relay.ProviderConfig, error) {
	id := o.Provider
	if id == "" {
		id = c.DefaultProvider
	}
	if id == "" {
		detected, err := c.detect(getenv)
		if err != nil {
			return relay.ProviderConfig{}, err
		}
		id = detected
	}

	p, known := c.Providers[id]
	if !known && o.Model == "" {
		return relay.ProviderConfig{}, fmt.Errorf("config: unknown provider %q: add it to the provider table or pass a model", id)
	}

	key := o.APIKey
	if key == "" {
		key = getenv(c.KeyEnv(id))
	}
	if key == "" {
		return relay.ProviderConfig{}, fmt.Errorf("config: %s not set (use --api-key or the environment variable)", c.KeyEnv(id))
	}

	cfg := relay.ProviderConfig{
		Provider:       relay.ProviderID(id),
		Model:          p.Model,
		BaseURL:        p.BaseURL,
		APIKey:         key,
		SystemPrompt:   c.SystemPrompt,
		MaxTokens:      p.MaxTokens,
		ThinkingBudget: p.ThinkingBudget,
		EnableSearch:   p.EnableSearch,
	}
	if o.Model != "" {
		cfg.Model = o.Model
	}
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if err := cfg.Validate(); err != nil {
		return relay.ProviderConfig{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// detect picks the single provider whose API key variable is set.
func (c Config) detect(getenv func(string) string) (string, error) {
	ids := make([]string, 0, len(c.Providers))
	for id := range c.Providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var found, envs []string
	seen := make(map[string]bool)
	for _, id := range ids {
		env := c.KeyEnv(id)
		if getenv(env) == "" {
			continue
		}
		// Providers sharing a key variable count once.
		if seen[env] {
			continue
		}
		seen[env] = true
		found = append(found, id)
		envs = append(envs, env)
	}
	switch len(found) {
	case 0:
		return "", errors.New("config: no API key found: set a <PROVIDER>_API_KEY variable or use --provider and --api-key")
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("config: multiple API keys found (%s): use --provider to select", strings.Join(envs, ", "))
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
