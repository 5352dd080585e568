// cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/command/music"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/discord"
	"github.com/keshon/domme-music/internal/httpapi"
	"github.com/keshon/domme-music/internal/logger"
	"github.com/keshon/domme-music/internal/music/parsers"
	"github.com/keshon/domme-music/internal/music/parsers/kkdai"
	"github.com/keshon/domme-music/internal/music/parsers/ytdlp"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/internal/music/resolver"
	"github.com/keshon/domme-music/internal/music/sources/youtube"
	"github.com/keshon/domme-music/internal/music/stream"
	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
	"github.com/keshon/domme-music/pkg/jobmgr"
)

const appName = "domme-music"

func main() {
	app := kingpin.New(appName, "Discord music bot.")
	configPath := app.Flag("config", "Path to an optional YAML config file.").Short('c').Envar("CONFIG_FILE").String()
	logLevel := app.Flag("log-level", "Override the configured log level.").Enum("debug", "info", "warn", "error")
	kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load config")
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logFile, err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialise logger")
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		zlog.Error().Err(err).Msg("bot stopped with error")
		logFile.Close()
		os.Exit(1)
	}
	zlog.Info().Msg("bot exited cleanly")
}

func run(ctx context.Context, cfg *config.Config) error {
	zlog.Info().Str("app", appName).Strs("parsers", cfg.Music.Parsers).Msg("starting")

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return errors.Wrap(err, "failed to open storage")
	}
	defer store.Close()

	httpClient, err := youtube.NewHTTPClient(cfg.YouTube.Proxy)
	if err != nil {
		return err
	}
	yt := youtube.NewClient(httpClient)

	queries := resolver.New(
		youtube.NewMetadataResolver(yt),
		youtube.NewSearcher(cfg.Music.SearchLimit, youtube.DefaultProviders(httpClient)...),
		youtube.NewLister(cfg.YouTube.APIKey, httpClient, yt),
		cfg.Music.PlaylistLimit,
	)
	streams, err := parsers.NewChain(cfg.Music.Parsers, kkdai.New(yt), ytdlp.New(nil))
	if err != nil {
		return err
	}

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return errors.Wrap(err, "failed to create Discord session")
	}

	manager := player.NewManager(
		stream.NewTransport(dg, nil),
		streams,
		player.WithQueryResolver(queries),
		player.WithHistory(store),
		player.WithResolveTimeout(cfg.Music.ResolveTimeout),
	)
	defer manager.Close()

	registry := cmd.NewRegistry()
	cacheDir := filepath.Join(filepath.Dir(cfg.StoragePath), "commands")
	bot := discord.NewBot(dg, cfg, manager, registry, cacheDir)
	registry.Register(cmd.Apply(
		&music.MusicCommand{Player: manager, Voice: bot},
		command.WithGuildOnly(),
		command.WithCommandLogger(store),
	))

	jobs := jobmgr.NewManager(ctx)
	if err := jobs.StartAsync("discord", bot.Run); err != nil {
		return err
	}
	if cfg.HTTPAddr != "" {
		api := httpapi.New(manager)
		if err := jobs.StartAsync("httpapi", func(ctx context.Context) error {
			return api.Run(ctx, cfg.HTTPAddr)
		}); err != nil {
			jobs.Shutdown()
			return errors.CombineErrors(err, jobs.Wait())
		}
	}
	zlog.Info().Strs("jobs", jobs.List()).Msg("running")

	<-jobs.Done()
	zlog.Info().Msg("shutting down")
	return jobs.Wait()
}
