package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Profile configures one model endpoint with its three roles. The roles
// may point at the same backing model.
type Profile struct {
	APIKey                string `json:"api_key,omitempty"`
	BaseURL               string `json:"base_url,omitempty"`
	TranslatorModel       string `json:"translator_model"`
	DirectTranslatorModel string `json:"direct_translator_model,omitempty"`
	ValidatorModel        string `json:"validator_model"`
}

// Engine holds the pipeline tunables.
type Engine struct {
	ValidatorAttempts         int    `json:"validator_attempts"`
	TranslationCycles         int    `json:"translation_cycles"`
	SemiInteractiveTimeoutSec int    `json:"semi_interactive_timeout_sec"`
	DefaultCategory           string `json:"default_category"`
}

type Config struct {
	Profiles      map[string]Profile `json:"profiles"`
	ActiveProfile string             `json:"active_profile"`
	Engine        Engine             `json:"engine"`
	Debug         bool               `json:"debug,omitempty"`

	currentProfile *Profile
	dir            string
}

func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	// Ensure config directory exists
	if err := ensureConfigDir(configPath); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Load existing config or create default
	config, err := loadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.dir = filepath.Dir(configPath)
	config.applyEngineDefaults()

	// Validate and set current profile
	if err := config.setCurrentProfile(); err != nil {
		return nil, fmt.Errorf("failed to set current profile: %w", err)
	}

	return config, nil
}

// IsValid reports whether the active profile can drive the AI pipeline.
// A missing API key is fine for local endpoints; the two mandatory
// roles are not.
func (c *Config) IsValid() bool {
	return c.currentProfile != nil &&
		c.currentProfile.TranslatorModel != "" &&
		c.currentProfile.ValidatorModel != ""
}

func (c *Config) GetAPIKey() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.APIKey
}

func (c *Config) GetBaseURL() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.BaseURL
}

func (c *Config) GetTranslatorModel() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.TranslatorModel
}

func (c *Config) GetDirectTranslatorModel() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.DirectTranslatorModel
}

func (c *Config) GetValidatorModel() string {
	if c.currentProfile == nil {
		return ""
	}
	return c.currentProfile.ValidatorModel
}

// Dir returns the config directory (logs and category files live here).
func (c *Config) Dir() string {
	return c.dir
}

// DefaultCategoriesPath is the read-only category layer shipped with
// the install.
func (c *Config) DefaultCategoriesPath() string {
	return filepath.Join(c.dir, "default_command_categories.json")
}

// UserCategoriesPath is the read-write category layer.
func (c *Config) UserCategoriesPath() string {
	return filepath.Join(c.dir, "user_command_categories.json")
}

func (c *Config) applyEngineDefaults() {
	if c.Engine.ValidatorAttempts <= 0 {
		c.Engine.ValidatorAttempts = 3
	}
	if c.Engine.TranslationCycles <= 0 {
		c.Engine.TranslationCycles = 3
	}
	if c.Engine.SemiInteractiveTimeoutSec <= 0 {
		c.Engine.SemiInteractiveTimeoutSec = 300
	}
	if c.Engine.DefaultCategory == "" {
		c.Engine.DefaultCategory = "simple"
	}
}

func getConfigPath() (string, error) {
	var configDir string

	// Use MICROX_HOME if set, otherwise use user's home directory
	if microxHome := os.Getenv("MICROX_HOME"); microxHome != "" {
		configDir = microxHome
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = homeDir
	}

	return filepath.Join(configDir, ".microx", "config.json"), nil
}

func ensureConfigDir(configPath string) error {
	configDir := filepath.Dir(configPath)
	return os.MkdirAll(configDir, 0755)
}

func loadConfigFile(configPath string) (*Config, error) {
	// If config file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return createDefaultConfig(configPath)
	}

	// Read existing config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func createDefaultConfig(configPath string) (*Config, error) {
	config := &Config{
		Profiles: map[string]Profile{
			"default": {
				APIKey:                "",
				BaseURL:               "http://localhost:11434/v1",
				TranslatorModel:       "llama3.2",
				DirectTranslatorModel: "",
				ValidatorModel:        "llama3.2",
			},
		},
		ActiveProfile: "default",
	}
	config.applyEngineDefaults()

	// Save default config to file
	if err := saveConfig(config, configPath); err != nil {
		return nil, err
	}

	return config, nil
}

func saveConfig(config *Config, configPath string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

func (c *Config) Save() error {
	configPath, err := getConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	return saveConfig(c, configPath)
}

func (c *Config) setCurrentProfile() error {
	if c.Profiles == nil {
		return fmt.Errorf("no profiles defined")
	}

	profile, exists := c.Profiles[c.ActiveProfile]
	if !exists {
		// If active profile doesn't exist, try to use the first available profile
		for name, p := range c.Profiles {
			c.ActiveProfile = name
			profile = p
			exists = true
			break
		}
	}

	if !exists {
		return fmt.Errorf("no valid profiles found")
	}

	c.currentProfile = &profile
	return nil
}
