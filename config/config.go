package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"pegvault/native/lending"
	"pegvault/native/yield"
)

// Params is the genesis parameter file applied to both engines on first
// start.
type Params struct {
	Yield   yield.Config   `toml:"yield"`
	Lending lending.Config `toml:"lending"`
}

// Default returns the built-in parameters.
func Default() *Params {
	return &Params{
		Yield:   yield.DefaultConfig(),
		Lending: lending.DefaultConfig(),
	}
}

// Load reads the parameter file at path. A missing file is created with the
// defaults so operators have something to edit.
func Load(path string) (*Params, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	// Tables replace the default slices rather than appending to them.
	cfg.Yield.LockTiers = nil
	cfg.Yield.Assets = nil
	cfg.Lending.LoanTiers = nil
	cfg.Lending.DebtAssets = nil

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks both sections.
func (p *Params) Validate() error {
	if err := p.Yield.Validate(); err != nil {
		return fmt.Errorf("yield: %w", err)
	}
	if err := p.Lending.Validate(); err != nil {
		return fmt.Errorf("lending: %w", err)
	}
	return nil
}

func createDefault(path string) (*Params, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Params) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
