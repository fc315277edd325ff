package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models guyub.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		Issuer   string        `yaml:"issuer"`
		TokenTTL time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
	Storage struct {
		Workspace string `yaml:"workspace"`
	} `yaml:"storage"`
	Finance struct {
		// StrictApproval makes approve/reject require a pending transaction.
		StrictApproval bool `yaml:"strict_approval"`
	} `yaml:"finance"`
	Limits map[string]Limit `yaml:"limits"`
}

// Limit is a page size policy for one listing.
type Limit struct {
	Default int `yaml:"default"`
	Max     int `yaml:"max"`
}

// Resource names used as keys of Config.Limits.
const (
	Announcements  = "announcements"
	Events         = "events"
	Complaints     = "complaints"
	Finance        = "finance"
	FinanceSummary = "finance_summary"
	Items          = "items"
	Loans          = "loans"
)

var resources = []string{Announcements, Events, Complaints, Finance, FinanceSummary, Items, Loans}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with guyub config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("config.auth.token_ttl must not be negative")
	}
	for _, name := range resources {
		l, ok := c.Limits[name]
		if !ok {
			return fmt.Errorf("config.limits.%s is required", name)
		}
		if l.Default <= 0 || l.Max <= 0 {
			return fmt.Errorf("config.limits.%s values must be positive", name)
		}
		if l.Default > l.Max {
			return fmt.Errorf("config.limits.%s default exceeds max", name)
		}
	}
	for name := range c.Limits {
		if !knownResource(name) {
			return fmt.Errorf("config.limits has unknown resource %s", name)
		}
	}
	return nil
}

func knownResource(name string) bool {
	for _, r := range resources {
		if r == name {
			return true
		}
	}
	return false
}

// PageSize resolves a requested page size: non-positive means the default,
// anything above the maximum is capped.
func (c *Config) PageSize(resource string, requested int) int {
	l := c.Limits[resource]
	if requested <= 0 {
		return l.Default
	}
	if requested > l.Max {
		return l.Max
	}
	return requested
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "guyub.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api

auth:
  issuer: guyub
  token_ttl: 24h

storage:
  workspace: .

finance:
  strict_approval: true

limits:
  announcements:
    default: 20
    max: 50
  events:
    default: 30
    max: 80
  complaints:
    default: 30
    max: 80
  finance:
    default: 50
    max: 100
  finance_summary:
    default: 300
    max: 500
  items:
    default: 50
    max: 100
  loans:
    default: 30
    max: 80
`
