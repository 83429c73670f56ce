package gateway

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Built-in connection defaults.
const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 4002
	DefaultClientID = 1
)

// Environment variables overriding gateway settings.
const (
	EnvHost     = "IBKR_HOST"
	EnvPort     = "IBKR_PORT"
	EnvClientID = "IBKR_CLIENT_ID"
)

// Settings holds the trading-gateway connection parameters.
type Settings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID int    `yaml:"client_id"`
}

// DefaultSettings returns the built-in connection defaults.
func DefaultSettings() Settings {
	return Settings{
		Host:     DefaultHost,
		Port:     DefaultPort,
		ClientID: DefaultClientID,
	}
}

// LoadSettings resolves connection parameters with precedence: environment
// variables over the optional YAML settings file at path over built-in
// defaults. A missing or unreadable file is not an error; malformed numeric
// overrides are ignored.
func LoadSettings(path string) Settings {
	settings := DefaultSettings()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var fileSettings Settings
			if err := yaml.Unmarshal(data, &fileSettings); err == nil {
				if fileSettings.Host != "" {
					settings.Host = fileSettings.Host
				}
				if fileSettings.Port != 0 {
					settings.Port = fileSettings.Port
				}
				if fileSettings.ClientID != 0 {
					settings.ClientID = fileSettings.ClientID
				}
			}
		}
	}

	applyEnvOverrides(&settings)

	return settings
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding settings when they are set.
func applyEnvOverrides(settings *Settings) {
	if v := os.Getenv(EnvHost); v != "" {
		settings.Host = v
	}

	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			settings.Port = port
		}
	}

	if v := os.Getenv(EnvClientID); v != "" {
		if clientID, err := strconv.Atoi(v); err == nil {
			settings.ClientID = clientID
		}
	}
}
