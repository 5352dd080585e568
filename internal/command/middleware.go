package command

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/storage"
	"github.com/keshon/domme-music/pkg/cmd"
)

// CommandLog persists executed commands.
type CommandLog interface {
	AppendCommandToHistory(guildID string, record storage.CommandHistoryRecord) error
}

// WithGuildOnly drops invocations that do not come from a guild.
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if v, ok := inv.Data.(*SlashContext); ok && v.Event.GuildID == "" {
				return RespondEmbedEphemeral(v.Session, v.Event, NewEmbed("", "This command only works in a server.").MessageEmbed)
			}
			return c.Run(ctx, inv)
		})
	}
}

// WithCommandLogger tags each invocation with an id, logs it and appends
// it to the guild's command history.
func WithCommandLogger(log CommandLog) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if inv.ID == "" {
				inv.ID = uuid.NewString()
			}
			start := time.Now()
			err := c.Run(ctx, inv)

			v, ok := inv.Data.(*SlashContext)
			if !ok {
				return err
			}
			e := v.Event
			user := User(e)
			record := storage.CommandHistoryRecord{
				InvocationID: inv.ID,
				ChannelID:    e.ChannelID,
				UserID:       user.ID,
				Username:     user.Username,
				Command:      c.Name(),
				Param:        DescribeOptions(e),
				Datetime:     start,
			}
			record.GuildName, record.ChannelName = stateNames(v.Session, e.GuildID, e.ChannelID)
			if err != nil {
				record.Error = err.Error()
			}

			evt := zlog.Info()
			if err != nil {
				evt = zlog.Warn().Err(err)
			}
			evt.Str("invocation", inv.ID).
				Str("guild", e.GuildID).
				Str("user", user.Username).
				Str("command", c.Name()).
				Str("param", record.Param).
				Dur("took", time.Since(start)).
				Msg("command executed")

			if log != nil && e.GuildID != "" {
				if lerr := log.AppendCommandToHistory(e.GuildID, record); lerr != nil {
					zlog.Warn().Err(lerr).Str("invocation", inv.ID).Msg("failed to log command")
				}
			}
			return err
		})
	}
}

// stateNames resolves guild and channel names from the session cache only.
func stateNames(s *discordgo.Session, guildID, channelID string) (guild, channel string) {
	if s == nil || s.State == nil {
		return "", ""
	}
	if g, err := s.State.Guild(guildID); err == nil {
		guild = g.Name
	}
	if ch, err := s.State.Channel(channelID); err == nil {
		channel = ch.Name
	}
	return guild, channel
}
