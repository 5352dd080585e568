package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/music/player"
)

// postNotices forwards asynchronous playback events to each guild's text
// channel until ctx is done.
func (b *Bot) postNotices(ctx context.Context) {
	events := b.sessions.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			embed := noticeEmbed(ev)
			if embed == nil || ev.TextChannelID == "" {
				continue
			}
			if err := command.MessageEmbed(b.dg, ev.TextChannelID, embed); err != nil {
				b.log.Warn().Err(err).Str("guild", ev.GuildID).Str("event", string(ev.Kind)).Msg("failed to post notice")
			}
		}
	}
}

// noticeEmbed renders events nobody replied to directly. Events that are
// the outcome of a command return nil.
func noticeEmbed(ev player.Event) *discordgo.MessageEmbed {
	title := ev.Kind.StringEmoji() + " " + string(ev.Kind)
	switch ev.Kind {
	case player.EventPlaying:
		desc := ev.Track.Label()
		if ev.Track.SourceURL != "" {
			desc = fmt.Sprintf("[%s](%s)", desc, ev.Track.SourceURL)
		}
		e := command.NewEmbed(title, desc)
		if ev.Track.ThumbnailURL != "" {
			e.SetThumbnail(ev.Track.ThumbnailURL)
		}
		return e.MessageEmbed
	case player.EventQueueExhausted:
		return command.NewEmbed(title, "No more tracks in the queue.").MessageEmbed
	case player.EventError:
		desc := "Playback failed."
		if ev.Err != nil {
			desc = fmt.Sprintf("Could not play the next track: %v", ev.Err)
		}
		return command.NewEmbed(title, desc).SetColor(0xcc3333).MessageEmbed
	case player.EventTeardown:
		return command.NewEmbed(title, "Disconnected from voice. The queue was dropped.").MessageEmbed
	default:
		return nil
	}
}
