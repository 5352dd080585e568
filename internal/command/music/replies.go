package music

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/music/classifier"
	"github.com/keshon/domme-music/internal/music/collection"
	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/internal/music/resolver"
	"github.com/keshon/domme-music/internal/music/sources/youtube"
)

var errNotInVoice = errors.New("user is not in a voice channel")

func trackLink(d media.Descriptor) string {
	label := d.Label()
	if d.Duration > 0 {
		label += " (" + formatDuration(d.Duration) + ")"
	}
	if d.SourceURL == "" {
		return label
	}
	return fmt.Sprintf("[%s](%s)", label, d.SourceURL)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func addedEmbed(res resolver.Result) *discordgo.MessageEmbed {
	title := player.EventAdded.StringEmoji() + " " + string(player.EventAdded)
	if len(res.Items) == 1 {
		e := command.NewEmbed(title, "Added "+trackLink(res.Items[0])+" to the queue.")
		if thumb := res.Items[0].ThumbnailURL; thumb != "" {
			e.SetThumbnail(thumb)
		}
		return e.MessageEmbed
	}
	desc := fmt.Sprintf("Added %d tracks to the queue.", len(res.Items))
	if res.Input.Kind == classifier.PlaylistLink {
		desc = fmt.Sprintf("Added %d tracks from the playlist.", len(res.Items))
	}
	return command.NewEmbed(title, desc).
		AddField("First", trackLink(res.Items[0])).
		MessageEmbed
}

func queueEmbed(view player.QueueView) *discordgo.MessageEmbed {
	e := command.NewEmbed("🎵 Queue", "")
	if len(view.Queue) == 0 {
		e.SetDescription("The queue is empty.")
		return e.MessageEmbed
	}

	if view.NowPlaying != nil {
		name := "Current"
		switch view.State {
		case player.StatePlaying:
			name = "Now playing"
		case player.StatePaused:
			name = "Paused"
		}
		e.AddField(name, trackLink(*view.NowPlaying))
	} else if view.Exhausted() {
		e.AddField("Now playing", "Nothing, the queue is finished.")
	}

	if len(view.Next) > 0 {
		var b strings.Builder
		for i, d := range view.Next {
			fmt.Fprintf(&b, "%d. %s\n", view.Cursor+i+2, trackLink(d))
		}
		if view.Remaining > 0 {
			fmt.Fprintf(&b, "…and %d more", view.Remaining)
		}
		e.AddField("Up next", b.String())
	}

	e.SetFooter(fmt.Sprintf("%d tracks in queue", len(view.Queue)))
	e.Truncate()
	return e.MessageEmbed
}

func errorEmbed(err error) *discordgo.MessageEmbed {
	return command.NewEmbed(player.EventError.StringEmoji()+" "+string(player.EventError), userMessage(err)).
		SetColor(0xcc3333).
		MessageEmbed
}

// userMessage turns any error from the music stack into reply text.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errNotInVoice):
		return "Join a voice channel first."
	case errors.Is(err, classifier.ErrEmpty):
		return "Give me a link or something to search for."
	case errors.Is(err, classifier.ErrMixPlaylist):
		return "YouTube mixes cannot be queued. Use the video link instead."
	case errors.Is(err, classifier.ErrUnparsable):
		return "I could not make sense of that link."
	case errors.Is(err, youtube.ErrNoResults):
		return "Nothing found for that search."
	case errors.Is(err, collection.ErrEmpty):
		return "That playlist is empty."
	case errors.Is(err, media.ErrSuperseded):
		return "Another command changed playback first. Try again."
	}

	switch media.KindOf(err) {
	case media.KindPrecondition:
		var me *media.Error
		if errors.As(err, &me) && me.Err != nil {
			return capitalize(me.Err.Error()) + "."
		}
		return "That is not possible right now."
	case media.KindInput:
		return "That input is not valid."
	case media.KindResolution:
		return "Could not load that track. It may be private, region locked or removed."
	case media.KindTransport:
		return "Voice connection problem. Try again in a moment."
	default:
		return "Something went wrong."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
