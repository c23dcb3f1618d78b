package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tailscale/hujson"

	"pkt.systems/modelsync/schema"
)

// ConfigFileName is the workspace config file at the project root.
const ConfigFileName = "slicemachine.config.json"

// Config is the subset of the workspace config the replication tool reads.
// Comments and trailing commas are tolerated.
type Config struct {
	RepositoryName string   `json:"repositoryName"`
	Libraries      []string `json:"libraries"`
	APIEndpoint    string   `json:"apiEndpoint,omitempty"`
	Adapter        string   `json:"adapter,omitempty"`
}

// ParseConfig parses JSON-with-comments config bytes and validates libraries.
func ParseConfig(data []byte) (Config, []schema.LibraryID, error) {
	root, err := hujson.Parse(data)
	if err != nil {
		return Config{}, nil, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}
	root.Standardize()
	var cfg Config
	if err := json.Unmarshal(root.Pack(), &cfg); err != nil {
		return Config{}, nil, fmt.Errorf("decoding %s: %w", ConfigFileName, err)
	}
	if len(cfg.Libraries) == 0 {
		return Config{}, nil, fmt.Errorf("%s: %w: at least one library is required", ConfigFileName, schema.ErrInvalidLibrary)
	}
	libs := make([]schema.LibraryID, 0, len(cfg.Libraries))
	seen := make(map[schema.LibraryID]struct{}, len(cfg.Libraries))
	for _, raw := range cfg.Libraries {
		lib, err := schema.NormalizeLibraryID(raw)
		if err != nil {
			return Config{}, nil, fmt.Errorf("%s: %w: %q", ConfigFileName, err, raw)
		}
		if _, ok := seen[lib]; ok {
			continue
		}
		seen[lib] = struct{}{}
		libs = append(libs, lib)
	}
	cfg.RepositoryName = strings.TrimSpace(cfg.RepositoryName)
	return cfg, libs, nil
}

// WriteDefaultConfig writes a minimal workspace config unless one exists.
func WriteDefaultConfig(path, repositoryName string, libraries []string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if len(libraries) == 0 {
		libraries = []string{"./slices"}
	}
	data, err := json.MarshalIndent(Config{RepositoryName: repositoryName, Libraries: libraries}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
