package session

import (
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the environment-resolved session policy. Durations are
// expressed as integer seconds to match the loose typing NormalizeDuration
// accepts from other sources.
type Config struct {
	// Age is the session validity window in seconds.
	Age int `env:"SESSION_AGE" envDefault:"900"`

	// RegenerationInterval is the period between session id rotations
	// in seconds.
	RegenerationInterval int `env:"SESSION_REGENERATION_INTERVAL" envDefault:"240"`

	// Storage selects the backend: a kind name or a storage URL whose
	// scheme names the kind (see ParseKind). Connection details in the
	// URL are for the collaborator that opens the handle; this package
	// only reads the scheme.
	Storage string `env:"SESSION_STORAGE" envDefault:""`
}

var dotenvOnce sync.Once

// LoadConfig reads Config from the environment, loading a .env file once
// if one is present in the working directory.
func LoadConfig() (Config, error) {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
	return env.ParseAs[Config]()
}

// NewFromConfig resolves the configured storage kind through the backend
// registry, builds a Store over the supplied handle, and returns a Manager
// with the configured policy. Extra options are applied after the
// config-derived ones and may override them.
func NewFromConfig(cfg Config, handle any, opts ...Option) (*Manager, error) {
	kind, err := ParseKind(cfg.Storage)
	if err != nil {
		return nil, err
	}
	store, err := Open(kind, handle)
	if err != nil {
		return nil, err
	}

	opts = append([]Option{
		WithDuration(cfg.Age),
		WithRotationInterval(cfg.RegenerationInterval),
	}, opts...)
	return NewManager(store, opts...), nil
}
