// Package config loads the bot configuration from an optional YAML file, a
// .env file and the process environment, in that order of precedence.
package config

import (
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	DiscordToken          string   `yaml:"discord_token" env:"DISCORD_TOKEN" validate:"required"`
	DiscordGuildBlacklist []string `yaml:"discord_guild_blacklist" env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	StoragePath           string   `yaml:"storage_path" env:"STORAGE_PATH" default:"datastore.json" validate:"required"`
	// HTTPAddr enables the status API when set.
	HTTPAddr string `yaml:"http_addr" env:"HTTP_ADDR" validate:"omitempty,hostname_port"`

	Log     LogConfig     `yaml:"log"`
	YouTube YouTubeConfig `yaml:"youtube"`
	Music   MusicConfig   `yaml:"music"`
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	File  string `yaml:"file" env:"LOG_FILE"`
}

// YouTubeConfig represents YouTube access configuration.
type YouTubeConfig struct {
	APIKey string `yaml:"api_key" env:"YOUTUBE_API_KEY"`
	Proxy  string `yaml:"proxy" env:"YOUTUBE_PROXY" validate:"omitempty,url"`
}

// MusicConfig represents playback configuration.
type MusicConfig struct {
	Parsers        []string      `yaml:"parsers" env:"MUSIC_PARSERS" envSeparator:"," default:"[\"kkdai-link\",\"ytdlp-link\"]" validate:"min=1,dive,oneof=kkdai-link ytdlp-link"`
	PlaylistLimit  int           `yaml:"playlist_limit" env:"MUSIC_PLAYLIST_LIMIT" default:"200" validate:"gte=1,lte=5000"`
	SearchLimit    int           `yaml:"search_limit" env:"MUSIC_SEARCH_LIMIT" default:"10" validate:"gte=1,lte=50"`
	ResolveTimeout time.Duration `yaml:"resolve_timeout" env:"MUSIC_RESOLVE_TIMEOUT" default:"20s" validate:"gte=1s"`
}

// Load reads path (skipped when empty), then .env, then the environment.
// Environment values win over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, "failed to load .env")
		}
		zlog.Debug().Msg("no .env file found, using system environment")
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse environment")
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// IsGuildBlacklisted reports whether the bot must not serve guildID.
func (c *Config) IsGuildBlacklisted(guildID string) bool {
	return slices.Contains(c.DiscordGuildBlacklist, guildID)
}
