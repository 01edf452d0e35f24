package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/tnicklin/autoguild/clock"
	"github.com/tnicklin/autoguild/discord"
	"github.com/tnicklin/autoguild/logger"
	"github.com/tnicklin/autoguild/modules"
	"github.com/tnicklin/autoguild/platform"
	"github.com/tnicklin/autoguild/registry"
	"github.com/tnicklin/autoguild/store"
	"go.uber.org/config"
)

// AppConfig holds all application configuration.
type AppConfig struct {
	Logger   logger.Config   `yaml:"logger"`
	Discord  discord.Config  `yaml:"discord"`
	Modules  modules.Config  `yaml:"modules"`
	Platform platform.Config `yaml:"platform"`
	Clock    clock.Config    `yaml:"clock"`
	Store    store.Config    `yaml:"store"`
	// Guilds is keyed by guild ID. Quote the IDs in YAML.
	Guilds map[string]registry.GuildSettings `yaml:"guilds"`
}

// Env holds settings read from the process environment.
type Env struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`
	ConfigFile   string `env:"AUTOGUILD_CONFIG" envDefault:"config/config.yaml"`
	SecretsFile  string `env:"AUTOGUILD_SECRETS" envDefault:"config/secrets.yaml"`
}

// LoadEnv reads a .env file when present and parses the environment.
func LoadEnv() (Env, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Load reads configuration from the specified YAML files.
// Files are merged in order, with later files overriding earlier ones.
// Missing files are silently ignored.
func Load(files ...string) (*AppConfig, error) {
	opts := make([]config.YAMLOption, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			opts = append(opts, config.File(f))
		}
	}

	if len(opts) == 0 {
		return nil, os.ErrNotExist
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration with sensible defaults and rejects
// invalid module settings.
func LoadWithDefaults(files ...string) (*AppConfig, error) {
	cfg, err := Load(files...)
	if err != nil {
		return nil, err
	}

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if len(cfg.Logger.OutputPaths) == 0 {
		cfg.Logger.OutputPaths = []string{"stdout"}
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/autoguild.db"
	}
	cfg.Platform.Defaults()
	cfg.Modules.Defaults()
	if err := cfg.Modules.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
