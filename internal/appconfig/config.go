package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/modelsync/internal/auth"
	"pkt.systems/modelsync/internal/remote"
	"pkt.systems/modelsync/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion  int        `mapstructure:"config_version" yaml:"config_version"`
	Workspace      string     `mapstructure:"workspace" yaml:"workspace"`
	ConflictPolicy string     `mapstructure:"conflict_policy" yaml:"conflict_policy"`
	Output         string     `mapstructure:"output" yaml:"output"`
	Auth           AuthConfig `mapstructure:"auth" yaml:"auth"`
	API            APIConfig  `mapstructure:"api" yaml:"api"`
	Pull           PullConfig `mapstructure:"pull" yaml:"pull"`
	Push           PushConfig `mapstructure:"push" yaml:"push"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// AuthConfig locates the credential file.
type AuthConfig struct {
	File   string `mapstructure:"file" yaml:"file"`
	Cookie string `mapstructure:"cookie" yaml:"cookie"`
}

// APIConfig configures the remote endpoints.
type APIConfig struct {
	CustomTypesURL string `mapstructure:"custom_types_url" yaml:"custom_types_url"`
	ACLProviderURL string `mapstructure:"acl_provider_url" yaml:"acl_provider_url"`
	// TimeoutSeconds bounds each request; zero disables the limit.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// PullConfig holds pull defaults.
type PullConfig struct {
	Source      string `mapstructure:"source" yaml:"source"`
	Library     string `mapstructure:"library" yaml:"library"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// PushConfig holds push defaults.
type PushConfig struct {
	Targets     []string `mapstructure:"targets" yaml:"targets"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	KeepGoing   bool     `mapstructure:"keep_going" yaml:"keep_going"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion:  CurrentConfigVersion,
		Workspace:      ".",
		ConflictPolicy: string(schema.ConflictUpsert),
		Output:         OutputText,
		Auth: AuthConfig{
			File:   filepath.Join(home, ".prismic"),
			Cookie: auth.DefaultCookieName,
		},
		API: APIConfig{
			CustomTypesURL: remote.DefaultCustomTypesURL,
			ACLProviderURL: remote.DefaultACLProviderURL,
			TimeoutSeconds: 0,
		},
		Pull: PullConfig{
			Source:      "",
			Library:     "",
			Concurrency: schema.DefaultConcurrency,
		},
		Push: PushConfig{
			Targets:     []string{},
			Concurrency: schema.DefaultConcurrency,
			KeepGoing:   false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".modelsync", "config.yaml"), nil
}
