// Package discord runs the bot session: it syncs slash commands, dispatches
// interactions, tears sessions down when voice channels empty and posts
// playback notices.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/config"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/pkg/cmd"
)

const commandTimeout = 2 * time.Minute

// Sessions is the part of player.Manager the bot reacts to.
type Sessions interface {
	Snapshot(guildID string) (player.Snapshot, bool)
	Teardown(guildID string)
	Events() <-chan player.Event
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	sessions Sessions
	registry *cmd.Registry
	hashes   *hashCache
	log      zerolog.Logger

	// parent of every command context, cancelled on shutdown
	ctx context.Context
}

// NewBot wires handlers onto dg. The session is opened by Run.
func NewBot(dg *discordgo.Session, cfg *config.Config, sessions Sessions, registry *cmd.Registry, cacheDir string) *Bot {
	b := &Bot{
		dg:       dg,
		cfg:      cfg,
		sessions: sessions,
		registry: registry,
		hashes:   newHashCache(cacheDir),
		log:      zlog.With().Str("component", "discord").Logger(),
		ctx:      context.Background(),
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)
	return b
}

// Run opens the session and posts notices until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	if err := b.dg.Open(); err != nil {
		return errors.Wrap(err, "failed to open Discord session")
	}
	defer b.dg.Close()

	b.postNotices(ctx)
	b.log.Info().Msg("shutdown signal received, closing Discord session")
	return nil
}

// UserVoiceChannel returns the voice channel userID is connected to.
func (b *Bot) UserVoiceChannel(guildID, userID string) (string, error) {
	return userVoiceChannel(b.dg.State, guildID, userID)
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		if err := b.registerCommands(g.ID); err != nil {
			b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register slash commands")
		}
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	if err := b.registerCommands(g.ID); err != nil {
		b.log.Error().Err(err).Str("guild", g.ID).Msg("failed to register slash commands")
	}
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.cfg.IsGuildBlacklisted(guildID) {
		return false
	}
	b.log.Info().Str("guild", guildID).Msg("leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.log.Error().Err(err).Str("guild", guildID).Msg("failed to leave guild")
	}
	return true
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	c, ok := b.registry.Get(name)
	if !ok {
		b.log.Warn().Str("command", name).Msg("unknown command")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	inv := &cmd.Invocation{Data: &command.SlashContext{Session: s, Event: i}}
	if err := c.Run(ctx, inv); err != nil {
		b.log.Debug().Err(err).Str("command", name).Str("invocation", inv.ID).Msg("command returned error")
	}
}
