package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
)

var errNotInVoice = errors.New("user not in any voice channel")

func userVoiceChannel(state *discordgo.State, guildID, userID string) (string, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return "", errors.Wrap(err, "error retrieving guild")
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", errNotInVoice
}

// listeners counts the non-bot members in channelID.
func listeners(state *discordgo.State, guild *discordgo.Guild, channelID string) int {
	n := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID || isBot(state, guild.ID, vs) {
			continue
		}
		n++
	}
	return n
}

func isBot(state *discordgo.State, guildID string, vs *discordgo.VoiceState) bool {
	if state.User != nil && vs.UserID == state.User.ID {
		return true
	}
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	if m, err := state.Member(guildID, vs.UserID); err == nil && m.User != nil {
		return m.User.Bot
	}
	return false
}

// onVoiceStateUpdate tears the guild's session down when the bot was
// disconnected or no listener is left in its channel.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil {
		return
	}
	snap, ok := b.sessions.Snapshot(v.GuildID)
	if !ok || snap.ChannelID == "" {
		return
	}

	if s.State.User != nil && v.UserID == s.State.User.ID {
		if v.ChannelID == "" {
			b.log.Info().Str("guild", v.GuildID).Msg("bot was disconnected from voice, tearing down")
			b.sessions.Teardown(v.GuildID)
		}
		return
	}

	left := v.BeforeUpdate != nil && v.BeforeUpdate.ChannelID == snap.ChannelID
	if v.ChannelID != snap.ChannelID && !left {
		return
	}

	guild, err := s.State.Guild(v.GuildID)
	if err != nil {
		b.log.Warn().Err(err).Str("guild", v.GuildID).Msg("guild missing from state")
		return
	}
	if listeners(s.State, guild, snap.ChannelID) == 0 {
		b.log.Info().Str("guild", v.GuildID).Str("channel", snap.ChannelID).Msg("voice channel empty, tearing down")
		b.sessions.Teardown(v.GuildID)
	}
}
