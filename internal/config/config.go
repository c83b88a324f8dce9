package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models fleetline.yml.
type Config struct {
	Yacht struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
		Flag string `yaml:"flag"`
	} `yaml:"yacht"`
	Auth struct {
		JWTSecret             string `yaml:"jwt_secret"`
		AllowAPIKeys          bool   `yaml:"allow_api_keys"`
		AllowLegacyCrewHeader bool   `yaml:"allow_legacy_crew_header"`
	} `yaml:"auth"`
	Roles struct {
		Catalog map[string]RoleEntry `yaml:"catalog"`
	} `yaml:"roles"`
	Actions struct {
		Overrides map[string]ActionOverride `yaml:"overrides"`
	} `yaml:"actions"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type RoleEntry struct {
	Description string `yaml:"description"`
}

type ActionOverride struct {
	AllowedRoles []string `yaml:"allowed_roles"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	YachtID        string   `yaml:"yacht_id"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with fl yacht create", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure. Action overrides are
// only shape-checked here; membership against the catalog happens when the
// overrides are applied.
func (c *Config) Validate() error {
	if c.Yacht.ID == "" {
		return fmt.Errorf("config.yacht.id is required")
	}
	for roleID := range c.Roles.Catalog {
		if roleID == "" {
			return fmt.Errorf("config.roles.catalog contains empty role name")
		}
	}
	for name, ov := range c.Actions.Overrides {
		if name == "" {
			return fmt.Errorf("config.actions.overrides contains empty action name")
		}
		for _, role := range ov.AllowedRoles {
			if role == "" {
				return fmt.Errorf("override for action %s has empty role", name)
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "fleetline.yml")
}

// Default returns the default Config struct for a yacht.
func Default(yachtID string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, yachtID, yachtID)), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(yachtID string) string {
	return fmt.Sprintf(defaultTemplate, yachtID, yachtID)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `yacht:
  id: %s
  name: %s

auth:
  jwt_secret: ""
  allow_api_keys: true
  allow_legacy_crew_header: false

roles:
  catalog:
    Crew:
      description: "Deck and interior crew; can log notes and running hours"
    Engineer:
      description: "Engineering crew; runs day-to-day maintenance"
    HOD:
      description: "Head of department; approves and closes work"
    Chief Engineer:
      description: "Engineering department head"
    Captain:
      description: "Master of the vessel"
    Manager:
      description: "Shore-side fleet manager"

actions:
  overrides: {}

webhooks: []
`
