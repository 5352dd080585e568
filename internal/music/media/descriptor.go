// Package media holds the values that flow through the music pipeline: the
// descriptor of a playable item, its short-lived stream handle and the error
// taxonomy every stage reports with.
package media

import (
	"fmt"
	"time"
)

// Descriptor identifies one playable item. Copies share Stream, so a handle
// is never mutated once WithStream attached it; replace it instead.
type Descriptor struct {
	ID           string
	SourceURL    string
	Title        string
	Artist       string
	ThumbnailURL string
	Duration     time.Duration

	// Stream is nil until a parser resolved it.
	Stream *StreamHandle
}

// StreamHandle is a resolved, expiring reference the transport can read audio from.
type StreamHandle struct {
	URL       string
	Parser    string
	ExpiresAt time.Time

	// Duration of the audio behind URL, zero when unknown.
	Duration time.Duration
}

// Usable reports whether the handle can still be handed to the transport.
// A zero ExpiresAt never expires.
func (h *StreamHandle) Usable(now time.Time) bool {
	if h == nil || h.URL == "" {
		return false
	}
	return h.ExpiresAt.IsZero() || now.Before(h.ExpiresAt)
}

// WithStream returns a copy of d carrying h.
func (d Descriptor) WithStream(h StreamHandle) Descriptor {
	d.Stream = &h
	return d
}

// WithoutStream returns a copy of d with the stream handle dropped.
func (d Descriptor) WithoutStream() Descriptor {
	d.Stream = nil
	return d
}

// Label is the human readable name used in replies and logs.
func (d Descriptor) Label() string {
	switch {
	case d.Title != "" && d.Artist != "":
		return fmt.Sprintf("%s - %s", d.Title, d.Artist)
	case d.Title != "":
		return d.Title
	case d.SourceURL != "":
		return d.SourceURL
	default:
		return "Unknown track"
	}
}
