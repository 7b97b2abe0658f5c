package langserver

import (
	"io/ioutil"

	toml "github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config adjusts the behavior of a LangHandler. Zero values fall back to the
// defaults from NewDefaultConfig.
type Config struct {
	// MaxParallelism bounds the engine's fan-out when gathering additional
	// references and resolving spans.
	MaxParallelism int `toml:"max_parallelism"`

	// SingleDocumentScope, when true, restricts every highlight request to
	// the document it was issued against instead of all open documents.
	SingleDocumentScope bool `toml:"single_document_scope"`
}

// NewDefaultConfig returns the default server configuration.
func NewDefaultConfig() Config {
	return Config{
		MaxParallelism: 8,
	}
}

// LoadConfig reads a TOML config file and overlays it onto the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := NewDefaultConfig()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	if cfg.MaxParallelism <= 0 {
		cfg.MaxParallelism = NewDefaultConfig().MaxParallelism
	}
	return cfg, nil
}
