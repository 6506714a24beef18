package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	API struct {
		BaseURL string `koanf:"base_url"`
		Token   string `koanf:"token"`
	} `koanf:"api"`

	Campaign struct {
		ID         string `koanf:"id"`
		Onboarding bool   `koanf:"onboarding"`
	} `koanf:"campaign"`

	Checkpoint struct {
		Path string `koanf:"path"`
	} `koanf:"checkpoint"`

	Session struct {
		AutoStartDelayMs int `koanf:"auto_start_delay_ms"`
	} `koanf:"session"`
}

// AutoStartDelay returns the configured auto-start debounce as a duration.
func (c *Config) AutoStartDelay() time.Duration {
	return time.Duration(c.Session.AutoStartDelayMs) * time.Millisecond
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"checkpoint.path":             "./pcdata/checkpoints.db",
		"campaign.onboarding":         true,
		"session.auto_start_delay_ms": 2000,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations
		defaultPaths := []string{"./pcdata/interview.toml", "./interview.toml", "$HOME/.interview.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix INTERVIEW_
	k.Load(env.Provider("INTERVIEW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "INTERVIEW_")), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# Interview Orchestrator Configuration

[api]
base_url = "https://api.example.com/api/v1"
token = "your-api-token"

[campaign]
id = "your-campaign-id"
onboarding = true

[checkpoint]
path = "./pcdata/checkpoints.db"

[session]
auto_start_delay_ms = 2000
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.API.BaseURL == "" {
		return fmt.Errorf("api base_url is required")
	}

	if config.API.Token == "" {
		return fmt.Errorf("api token is required")
	}

	if config.Campaign.ID == "" {
		return fmt.Errorf("campaign id is required")
	}

	if config.Session.AutoStartDelayMs < 0 {
		return fmt.Errorf("auto_start_delay_ms must not be negative")
	}

	return nil
}
