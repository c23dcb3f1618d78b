package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/modelsync/schema"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("workspace", cfg.Workspace)
	v.SetDefault("conflict_policy", cfg.ConflictPolicy)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("auth.file", cfg.Auth.File)
	v.SetDefault("auth.cookie", cfg.Auth.Cookie)
	v.SetDefault("api.custom_types_url", cfg.API.CustomTypesURL)
	v.SetDefault("api.acl_provider_url", cfg.API.ACLProviderURL)
	v.SetDefault("api.timeout_seconds", cfg.API.TimeoutSeconds)
	v.SetDefault("pull.source", cfg.Pull.Source)
	v.SetDefault("pull.library", cfg.Pull.Library)
	v.SetDefault("pull.concurrency", cfg.Pull.Concurrency)
	v.SetDefault("push.targets", cfg.Push.Targets)
	v.SetDefault("push.concurrency", cfg.Push.Concurrency)
	v.SetDefault("push.keep_going", cfg.Push.KeepGoing)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a config after flag overrides have been applied.
func Validate(cfg Config) error {
	switch cfg.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("output must be %q or %q, got %q", OutputText, OutputJSON, cfg.Output)
	}
	if _, err := schema.ParseConflictPolicy(cfg.ConflictPolicy); err != nil {
		return fmt.Errorf("conflict_policy: %w", err)
	}
	if strings.TrimSpace(cfg.Workspace) == "" {
		return errors.New("workspace must not be empty")
	}
	if err := validateEndpoint("api.custom_types_url", cfg.API.CustomTypesURL); err != nil {
		return err
	}
	if err := validateEndpoint("api.acl_provider_url", cfg.API.ACLProviderURL); err != nil {
		return err
	}
	if cfg.API.TimeoutSeconds < 0 {
		return errors.New("api.timeout_seconds must not be negative")
	}
	if cfg.Pull.Concurrency < 0 || cfg.Push.Concurrency < 0 {
		return errors.New("concurrency must not be negative")
	}
	if cfg.Pull.Source != "" {
		if _, err := schema.NormalizeRepoName(cfg.Pull.Source); err != nil {
			return fmt.Errorf("pull.source: %w: %q", err, cfg.Pull.Source)
		}
	}
	if cfg.Pull.Library != "" {
		if _, err := schema.NormalizeLibraryID(cfg.Pull.Library); err != nil {
			return fmt.Errorf("pull.library: %w: %q", err, cfg.Pull.Library)
		}
	}
	if len(cfg.Push.Targets) > 0 {
		if _, err := schema.NormalizeTargets(cfg.Push.Targets); err != nil {
			return fmt.Errorf("push.targets: %w", err)
		}
	}
	return nil
}

func validateEndpoint(key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must include scheme and host (e.g. https://example.com)", key)
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Workspace = expandEnv(cfg.Workspace)
	cfg.Auth.File = expandEnv(cfg.Auth.File)
	cfg.API.CustomTypesURL = expandEnv(cfg.API.CustomTypesURL)
	cfg.API.ACLProviderURL = expandEnv(cfg.API.ACLProviderURL)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			value = filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
