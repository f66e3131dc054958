package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

var validate = validator.New()

// CLI is the domainctl configuration file.
type CLI struct {
	Definition string `toml:"definition"`
	Session    string `toml:"session" validate:"omitempty,max=128"`
	StoreDir   string `toml:"store_dir"`
	Engine     Engine `toml:"engine"`
}

func DefaultCLI() CLI {
	return CLI{
		Session: "default",
		Engine:  DefaultEngine(),
	}
}

func LoadCLI(path string) (CLI, error) {
	cfg := DefaultCLI()
	if err := loadToml(path, &cfg); err != nil {
		return CLI{}, err
	}
	cfg.Definition = strings.TrimSpace(cfg.Definition)
	cfg.Session = strings.TrimSpace(cfg.Session)
	if cfg.Session == "" {
		cfg.Session = "default"
	}
	if err := ValidateCLI(cfg); err != nil {
		return CLI{}, err
	}
	return cfg, nil
}

func ValidateCLI(cfg CLI) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("cli config invalid: %w", err)
	}
	if cfg.StoreDir != "" && cfg.Session == "" {
		return fmt.Errorf("cli config: store_dir requires a session")
	}
	return nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
