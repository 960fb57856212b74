// Package config loads the optional "recdb.toml" sidecar holding
// engine-wide defaults: a default password for confidential fields and a
// user-writable alias list of named types usable across databases.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"recdb/internal/rectype"
)

// Config is the decoded shape of recdb.toml.
type Config struct {
	// Password is used by commands that accept confidential fields when
	// no --password flag is given.
	Password string `toml:"password"`

	// Aliases maps a named type to its descriptor text, registered into
	// every loaded database's type registry in addition to whatever the
	// database's own %typedef fields declare.
	Aliases map[string]string `toml:"aliases"`
}

// Default returns the zero-value configuration: no default password, no
// aliases.
func Default() *Config {
	return &Config{Aliases: make(map[string]string)}
}

// Load reads and decodes path. A missing file is not an error; Load
// returns Default() in that case.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Aliases == nil {
		cfg.Aliases = make(map[string]string)
	}
	return cfg, nil
}

// RegisterAliases defines every configured alias into reg.
func (c *Config) RegisterAliases(reg *rectype.Registry) error {
	for name, descr := range c.Aliases {
		if err := reg.Define(name, descr); err != nil {
			return fmt.Errorf("config: alias %q: %w", name, err)
		}
	}
	return nil
}
