// Package resolver turns raw user input into descriptors ready to enqueue.
package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/music/classifier"
	"github.com/keshon/domme-music/internal/music/collection"
	"github.com/keshon/domme-music/internal/music/media"
)

type Describer interface {
	Describe(ctx context.Context, videoID string) (media.Descriptor, error)
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]media.Descriptor, error)
}

// Result is what a query resolved to. Items is never empty on success.
type Result struct {
	Input classifier.Input
	Items []media.Descriptor
}

type Resolver struct {
	meta     Describer
	search   Searcher
	lister   collection.Lister
	maxItems int
}

func New(meta Describer, search Searcher, lister collection.Lister, maxItems int) *Resolver {
	if maxItems == 0 {
		maxItems = collection.DefaultMaxItems
	}
	return &Resolver{meta: meta, search: search, lister: lister, maxItems: maxItems}
}

// Resolve classifies raw and looks it up. No stream handles are produced here;
// the player resolves streams right before playing each item.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Result, error) {
	in, err := classifier.Classify(raw)
	if err != nil {
		return Result{}, err
	}

	log := zlog.With().Str("component", "resolver").Str("kind", in.Kind.String()).Logger()

	switch in.Kind {
	case classifier.DirectLink:
		d, err := r.meta.Describe(ctx, in.VideoID)
		if err != nil {
			return Result{}, err
		}
		return Result{Input: in, Items: []media.Descriptor{d}}, nil

	case classifier.PlaylistLink:
		items, err := collection.Collect(collection.Expand(ctx, r.lister, in.ListID, collection.WithMaxItems(r.maxItems)))
		if err != nil {
			return Result{}, err
		}
		log.Debug().Str("list", in.ListID).Int("items", len(items)).Msg("playlist expanded")
		return Result{Input: in, Items: items}, nil

	default:
		hits, err := r.search.Search(ctx, in.Text)
		if err != nil {
			return Result{}, err
		}
		if len(hits) == 0 {
			return Result{}, media.ResolutionError("search", errors.Newf("no results for %q", in.Text))
		}
		top := hits[0]
		d, err := r.meta.Describe(ctx, top.ID)
		if err != nil {
			// The hit alone is still playable; only the metadata is thinner.
			log.Warn().Err(err).Str("track", top.ID).Msg("describe search hit failed, using hit as is")
			d = top
		}
		return Result{Input: in, Items: []media.Descriptor{d}}, nil
	}
}
