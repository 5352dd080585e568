package youtube

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/ppalone/ytsearch"
	"github.com/raitonoberu/ytmusic"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/pkg/retrylimit"
)

const DefaultSearchLimit = 10

var (
	ErrNoResults = errors.New("no results")

	watchIDPattern = regexp.MustCompile(`/watch\?v=([a-zA-Z0-9_-]{11})`)
)

// SearchProvider returns up to limit hits for a free-text query.
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]media.Descriptor, error)
}

// Searcher asks each provider in turn and returns the first non-empty answer.
type Searcher struct {
	providers []SearchProvider
	limit     int
}

func NewSearcher(limit int, providers ...SearchProvider) *Searcher {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &Searcher{providers: providers, limit: limit}
}

// DefaultProviders is the production order: the ytsearch API client, then
// YouTube Music, then scraping the results page.
func DefaultProviders(httpClient *http.Client) []SearchProvider {
	return []SearchProvider{
		&APISearch{client: ytsearch.NewClient(httpClient)},
		MusicSearch{},
		NewScrapeSearch(httpClient),
	}
}

func (s *Searcher) Search(ctx context.Context, query string) ([]media.Descriptor, error) {
	log := zlog.With().Str("component", "search").Str("query", query).Logger()

	var errs []error
	for _, p := range s.providers {
		hits, err := p.Search(ctx, query, s.limit)
		if err != nil {
			log.Warn().Err(err).Str("provider", p.Name()).Msg("search provider failed")
			errs = append(errs, errors.Wrapf(err, "%s", p.Name()))
			continue
		}
		if len(hits) > 0 {
			log.Debug().Str("provider", p.Name()).Int("hits", len(hits)).Msg("search done")
			return hits, nil
		}
	}
	if ctx.Err() != nil {
		return nil, media.ResolutionError("search", ctx.Err())
	}
	if len(errs) > 0 {
		causes := errors.Join(errs...)
		return nil, media.ResolutionError("search", errors.WithSecondaryError(errors.Wrapf(ErrNoResults, "%v", causes), causes))
	}
	return nil, media.ResolutionError("search", errors.Wrapf(ErrNoResults, "for %q", query))
}

type hitSet struct {
	seen  map[string]bool
	items []media.Descriptor
	limit int
}

func newHitSet(limit int) *hitSet {
	return &hitSet{seen: map[string]bool{}, limit: limit}
}

func (h *hitSet) add(d media.Descriptor) bool {
	if d.ID == "" || h.seen[d.ID] {
		return len(h.items) < h.limit
	}
	h.seen[d.ID] = true
	d.SourceURL = watchURL + d.ID
	h.items = append(h.items, d)
	return len(h.items) < h.limit
}

// APISearch uses the ytsearch client.
type APISearch struct {
	client *ytsearch.Client
}

func (*APISearch) Name() string { return "ytsearch" }

func (a *APISearch) Search(ctx context.Context, query string, limit int) ([]media.Descriptor, error) {
	res, err := a.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	hits := newHitSet(limit)
	for _, v := range res.Results {
		if !hits.add(media.Descriptor{ID: v.VideoID, Title: v.Title}) {
			break
		}
	}
	return hits.items, nil
}

// MusicSearch queries YouTube Music, which also reports the artist.
type MusicSearch struct{}

func (MusicSearch) Name() string { return "ytmusic" }

func (MusicSearch) Search(ctx context.Context, query string, limit int) ([]media.Descriptor, error) {
	type result struct {
		res *ytmusic.SearchResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		r, err := ytmusic.TrackSearch(query).Next()
		done <- result{r, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.res == nil {
		return nil, nil
	}

	hits := newHitSet(limit)
	for _, t := range r.res.Tracks {
		d := media.Descriptor{ID: t.VideoID, Title: t.Title}
		if len(t.Artists) > 0 {
			d.Artist = t.Artists[0].Name
		}
		if !hits.add(d) {
			break
		}
	}
	return hits.items, nil
}

// ScrapeSearch reads video ids straight out of the results page HTML.
type ScrapeSearch struct {
	BaseURL string
	client  *http.Client
	limiter *retrylimit.AdaptiveLimiter
}

func NewScrapeSearch(client *http.Client) *ScrapeSearch {
	return &ScrapeSearch{
		BaseURL: "https://www.youtube.com",
		client:  client,
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
	}
}

func (*ScrapeSearch) Name() string { return "scrape" }

func (s *ScrapeSearch) Search(ctx context.Context, query string, limit int) ([]media.Descriptor, error) {
	searchURL := s.BaseURL + "/results?search_query=" + url.QueryEscape(query)

	var body []byte
	err := retrylimit.WithRetryMax(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return retrylimit.Fatal(err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &retrylimit.StatusError{Code: resp.StatusCode}
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}, s.limiter, 2)
	if err != nil {
		return nil, errors.Wrap(err, "results page")
	}

	hits := newHitSet(limit)
	for _, m := range watchIDPattern.FindAllStringSubmatch(string(body), -1) {
		if !hits.add(media.Descriptor{ID: m[1]}) {
			break
		}
	}
	return hits.items, nil
}
