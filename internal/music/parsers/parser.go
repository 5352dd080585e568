// Package parsers turns a media descriptor into a playable stream handle by
// trying a configured list of extractors in order.
package parsers

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/music/media"
)

// DefaultOrder is used when no parser list is configured.
var DefaultOrder = []string{"kkdai-link", "ytdlp-link"}

// Extractor produces a direct stream URL for a descriptor.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, desc media.Descriptor) (media.StreamHandle, error)
}

// Chain resolves stream handles by asking each extractor in turn.
type Chain struct {
	extractors []Extractor
}

// NewChain orders the available extractors by names. Unknown names are an error.
func NewChain(names []string, available ...Extractor) (*Chain, error) {
	if len(names) == 0 {
		names = DefaultOrder
	}
	byName := make(map[string]Extractor, len(available))
	for _, e := range available {
		byName[e.Name()] = e
	}

	c := &Chain{}
	for _, name := range names {
		e, ok := byName[name]
		if !ok {
			return nil, errors.Newf("unknown parser %q", name)
		}
		c.extractors = append(c.extractors, e)
	}
	return c, nil
}

// Names lists the extractors in the order they are tried.
func (c *Chain) Names() []string {
	out := make([]string, len(c.extractors))
	for i, e := range c.extractors {
		out[i] = e.Name()
	}
	return out
}

// Resolve returns the first handle any extractor produces. When all of them
// fail the causes are joined into a single resolution error.
func (c *Chain) Resolve(ctx context.Context, desc media.Descriptor) (media.StreamHandle, error) {
	log := zlog.With().Str("component", "parsers").Str("track", desc.ID).Logger()

	var errs []error
	for _, e := range c.extractors {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		h, err := e.Extract(ctx, desc)
		if err == nil && h.URL == "" {
			err = errors.New("empty stream url")
		}
		if err != nil {
			log.Warn().Err(err).Str("parser", e.Name()).Msg("parser failed, trying next")
			errs = append(errs, errors.Wrapf(err, "parser %s", e.Name()))
			continue
		}
		h.Parser = e.Name()
		return h, nil
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no parsers configured"))
	}
	return media.StreamHandle{}, media.ResolutionError("resolve stream", errors.Join(errs...))
}

// ExpiryFromURL reads the unix "expire" parameter that signed stream URLs
// carry. A URL without one yields the zero time, meaning no known expiry.
func ExpiryFromURL(link string) time.Time {
	u, err := url.Parse(link)
	if err != nil {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(u.Query().Get("expire"), 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
