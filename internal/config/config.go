package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken      string `env:"DISCORD_TOKEN,required"`
	CommandPrefix     string `env:"COMMAND_PREFIX" envDefault:"!"`
	StatusMessage     string `env:"STATUS_MESSAGE" envDefault:"/play | /help"`
	InitSlashCommands bool   `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	GeniusToken  string `env:"GENIUS_TOKEN"`
	YouTubeProxy string `env:"YOUTUBE_PROXY"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	HealthAddr  string `env:"HEALTH_ADDR" envDefault:":8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE" envDefault:"bot.log"`

	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" envDefault:"300s"`
	PopTimeout     time.Duration `env:"POP_TIMEOUT" envDefault:"10s"`
	ResolveTimeout time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"30s"`
}

// Load reads envFiles (".env" when none are given) into the process
// environment, then parses the environment. Missing env files are not an
// error; variables already set take precedence over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.IdleTimeout <= 0 {
		return nil, fmt.Errorf("invalid configuration: IDLE_TIMEOUT must be positive, got %s", cfg.IdleTimeout)
	}
	if cfg.PopTimeout <= 0 {
		return nil, fmt.Errorf("invalid configuration: POP_TIMEOUT must be positive, got %s", cfg.PopTimeout)
	}
	return &cfg, nil
}
