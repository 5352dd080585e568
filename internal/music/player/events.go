package player

import (
	"github.com/keshon/domme-music/internal/music/media"
)

// EventKind names a playback notification.
type EventKind string

const (
	EventPlaying        EventKind = "Now Playing"
	EventAdded          EventKind = "Track(s) Added"
	EventPaused         EventKind = "Playback Paused"
	EventResumed        EventKind = "Playback Resumed"
	EventStopped        EventKind = "Playback Stopped"
	EventQueueExhausted EventKind = "Queue Finished"
	EventError          EventKind = "Error"
	EventTeardown       EventKind = "Left Voice Channel"
)

func (k EventKind) StringEmoji() string {
	switch k {
	case EventPlaying, EventResumed:
		return "▶️"
	case EventAdded:
		return "🎶"
	case EventPaused:
		return "⏸"
	case EventStopped:
		return "⏹"
	case EventQueueExhausted:
		return "🏁"
	case EventError:
		return "❌"
	case EventTeardown:
		return "👋"
	default:
		return ""
	}
}

// Event is delivered on Manager.Events. Track is set for playing events,
// Count for added events and Err for error events.
type Event struct {
	Kind          EventKind
	GuildID       string
	TextChannelID string
	Track         media.Descriptor
	Count         int
	Err           error
}

// emit never blocks; a full buffer drops the event.
func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.log.Warn().Str("guild", ev.GuildID).Str("event", string(ev.Kind)).Msg("event dropped, channel full")
	}
}
