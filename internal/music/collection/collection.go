// Package collection expands a remote playlist into descriptors page by page.
package collection

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/media"
)

// DefaultMaxItems bounds how many entries a single expansion may produce.
const DefaultMaxItems = 200

var (
	// ErrConsumed is yielded when an expansion is ranged over a second time.
	ErrConsumed = errors.New("collection already consumed")
	ErrEmpty    = errors.New("playlist is empty")
)

// Page is one slice of a remote collection. An empty NextToken marks the last page.
type Page struct {
	Items     []media.Descriptor
	NextToken string
}

// Lister fetches one page of a collection. The empty token requests the first page.
type Lister interface {
	ListPage(ctx context.Context, listID, pageToken string) (Page, error)
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context, listID, pageToken string) (Page, error)

func (f ListerFunc) ListPage(ctx context.Context, listID, pageToken string) (Page, error) {
	return f(ctx, listID, pageToken)
}

type options struct {
	maxItems int
}

type Option func(*options)

// WithMaxItems caps the number of descriptors yielded. Values below one disable the cap.
func WithMaxItems(n int) Option {
	return func(o *options) { o.maxItems = n }
}

// Expand returns a lazy, single-pass sequence over the collection. Pages are
// requested only as the consumer advances; the first page error is yielded
// once and ends the sequence.
func Expand(ctx context.Context, lister Lister, listID string, opts ...Option) iter.Seq2[media.Descriptor, error] {
	o := options{maxItems: DefaultMaxItems}
	for _, opt := range opts {
		opt(&o)
	}

	var used atomic.Bool
	return func(yield func(media.Descriptor, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(media.Descriptor{}, ErrConsumed)
			return
		}

		token, count := "", 0
		for {
			if err := ctx.Err(); err != nil {
				yield(media.Descriptor{}, err)
				return
			}

			page, err := lister.ListPage(ctx, listID, token)
			if err != nil {
				yield(media.Descriptor{}, media.ResolutionError("list playlist", err))
				return
			}

			for _, item := range page.Items {
				if o.maxItems > 0 && count >= o.maxItems {
					return
				}
				count++
				if !yield(item, nil) {
					return
				}
			}

			if o.maxItems > 0 && count >= o.maxItems {
				return
			}
			if page.NextToken == "" || page.NextToken == token {
				return
			}
			token = page.NextToken
		}
	}
}

// Collect drains seq. It is all-or-nothing: any error discards what was
// gathered, and an empty collection is reported as a resolution failure.
func Collect(seq iter.Seq2[media.Descriptor, error]) ([]media.Descriptor, error) {
	var out []media.Descriptor
	for d, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, media.ResolutionError("list playlist", ErrEmpty)
	}
	return out, nil
}
