// Package config loads protocol parameters from a CUE file, overlaying
// defaults. CUE gives the file schema-checked fields and typed errors
// instead of stringly YAML lookups.
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/engine"
)

// DefaultCustody is the protocol's escrow address when none is configured.
const DefaultCustody = "0x00000000000000000000000000000000000ec401"

// Config is the full runtime configuration.
type Config struct {
	// MinimumTerm is the floor on offer terms, in seconds.
	MinimumTerm int64 `json:"minimum_term"`
	// ReturnFeeOnRemand returns the fee to the owner on remand instead
	// of forfeiting it to the target.
	ReturnFeeOnRemand bool `json:"return_fee_on_remand"`
	// Store is the sqlite database path.
	Store string `json:"store"`
	// Custody is the protocol's escrow address.
	Custody string `json:"custody"`
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		MinimumTerm: engine.DefaultMinimumTerm,
		Store:       "remand.db",
		Custody:     DefaultCustody,
	}
}

// LoadError is a configuration loading failure with a stable code.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load reads a CUE configuration file and overlays it onto the defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &LoadError{Code: "CONFIG_READ", Message: err.Error()}
	}

	cuectx := cuecontext.New()
	v := cuectx.CompileBytes(data)
	if v.Err() != nil {
		return Config{}, &LoadError{Code: "CONFIG_PARSE", Message: v.Err().Error()}
	}

	if err := v.Decode(&cfg); err != nil {
		return Config{}, &LoadError{Code: "CONFIG_DECODE", Message: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field-level constraints the CUE schema cannot express.
func (c Config) Validate() error {
	if c.MinimumTerm <= 0 {
		return &LoadError{Code: "CONFIG_INVALID", Message: "minimum_term must be positive"}
	}
	if _, err := asset.ParseAddress(c.Custody); err != nil {
		return &LoadError{Code: "CONFIG_INVALID", Message: fmt.Sprintf("custody: %v", err)}
	}
	if c.Store == "" {
		return &LoadError{Code: "CONFIG_INVALID", Message: "store path must not be empty"}
	}
	return nil
}

// Params converts the configuration into engine policy.
func (c Config) Params() engine.Params {
	return engine.Params{
		MinimumTerm:       c.MinimumTerm,
		ReturnFeeOnRemand: c.ReturnFeeOnRemand,
	}
}

// CustodyAddress returns the parsed escrow address. Call Validate first.
func (c Config) CustodyAddress() asset.Address {
	a, err := asset.ParseAddress(c.Custody)
	if err != nil {
		return asset.ZeroAddress
	}
	return a
}
