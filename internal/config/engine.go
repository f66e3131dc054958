package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Engine tunes the variable domain engine.
type Engine struct {
	// RetryBound caps shuffled retry rounds for callbacks inside a dependency cycle.
	RetryBound int `toml:"retry_bound" validate:"gte=1,lte=1000"`
	// MaxCandidates bounds candidate paths pulled per abstraction; 0 means no bound.
	MaxCandidates int `toml:"max_candidates" validate:"gte=0"`
	MaxRepeat     int `toml:"max_repeat" validate:"gte=1,lte=100000"`
	// StrictBacktracking lets Alt and Repeat specialization yield every
	// successful alternative instead of only the first.
	StrictBacktracking bool `toml:"strict_backtracking"`
	// Seed fixes the random source; 0 seeds from the clock.
	Seed          int64 `toml:"seed"`
	UnboundedSpan int   `toml:"unbounded_span" validate:"gte=1,lte=65536"`
}

func DefaultEngine() Engine {
	return Engine{
		RetryBound:    10,
		MaxCandidates: 0,
		MaxRepeat:     1000,
		UnboundedSpan: 32,
	}
}

type engineFile struct {
	RetryBound         int   `toml:"retry_bound"`
	MaxCandidates      int   `toml:"max_candidates"`
	MaxRepeat          int   `toml:"max_repeat"`
	StrictBacktracking bool  `toml:"strict_backtracking"`
	Seed               int64 `toml:"seed"`
	UnboundedSpan      int   `toml:"unbounded_span"`
}

// LoadEngine overlays the keys present in path onto DefaultEngine.
func LoadEngine(path string) (Engine, error) {
	cfg := DefaultEngine()

	var raw engineFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Engine{}, fmt.Errorf("load engine config: %w", err)
	}

	if meta.IsDefined("retry_bound") {
		cfg.RetryBound = raw.RetryBound
	}
	if meta.IsDefined("max_candidates") {
		cfg.MaxCandidates = raw.MaxCandidates
	}
	if meta.IsDefined("max_repeat") {
		cfg.MaxRepeat = raw.MaxRepeat
	}
	if meta.IsDefined("strict_backtracking") {
		cfg.StrictBacktracking = raw.StrictBacktracking
	}
	if meta.IsDefined("seed") {
		cfg.Seed = raw.Seed
	}
	if meta.IsDefined("unbounded_span") {
		cfg.UnboundedSpan = raw.UnboundedSpan
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Engine{}, fmt.Errorf("load engine config: unknown key %q", undecoded[0].String())
	}

	if err := cfg.Validate(); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}

func (e Engine) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("engine config invalid: %w", err)
	}
	return nil
}
