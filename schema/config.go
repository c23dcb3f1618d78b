package schema

// ServiceConfig defines defaults for the replication service.
type ServiceConfig struct {
	Concurrency int
	Conflict    ConflictPolicy
	// DefaultLibrary receives pulled components when a request names none.
	DefaultLibrary LibraryID
}

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	conflict, err := ParseConflictPolicy(string(cfg.Conflict))
	if err != nil {
		return ServiceConfig{}, err
	}
	cfg.Conflict = conflict
	if cfg.DefaultLibrary != "" {
		lib, err := NormalizeLibraryID(string(cfg.DefaultLibrary))
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.DefaultLibrary = lib
	}
	return cfg, nil
}
