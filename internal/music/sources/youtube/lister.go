package youtube

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	youtube "github.com/kkdai/youtube/v2"

	"github.com/keshon/domme-music/internal/music/collection"
	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/pkg/retrylimit"
)

const (
	dataAPIBase     = "https://www.googleapis.com/youtube/v3"
	dataAPIPageSize = 50
	playlistURL     = "https://www.youtube.com/playlist?list="
)

// DataAPILister pages through playlistItems of the YouTube Data API v3.
type DataAPILister struct {
	BaseURL string
	apiKey  string
	client  *http.Client
	limiter *retrylimit.AdaptiveLimiter
}

func NewDataAPILister(apiKey string, client *http.Client) *DataAPILister {
	return &DataAPILister{
		BaseURL: dataAPIBase,
		apiKey:  apiKey,
		client:  client,
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
	}
}

type playlistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title                  string `json:"title"`
			VideoOwnerChannelTitle string `json:"videoOwnerChannelTitle"`
			Thumbnails             map[string]struct {
				URL    string `json:"url"`
				Width  int    `json:"width"`
				Height int    `json:"height"`
			} `json:"thumbnails"`
			ResourceID struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

func (l *DataAPILister) ListPage(ctx context.Context, listID, pageToken string) (collection.Page, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("maxResults", strconv.Itoa(dataAPIPageSize))
	q.Set("playlistId", listID)
	q.Set("key", l.apiKey)
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	endpoint := l.BaseURL + "/playlistItems?" + q.Encode()

	var body playlistItemsResponse
	err := retrylimit.WithRetryMax(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retrylimit.Fatal(err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &retrylimit.StatusError{Code: resp.StatusCode, Body: string(msg)}
		}
		body = playlistItemsResponse{}
		return retrylimit.Fatal(json.NewDecoder(resp.Body).Decode(&body))
	}, l.limiter, 3)
	if err != nil {
		return collection.Page{}, errors.Wrapf(err, "playlist %s", listID)
	}

	page := collection.Page{NextToken: body.NextPageToken}
	for _, it := range body.Items {
		sn := it.Snippet
		// Deleted and private entries have no owner channel.
		if sn.ResourceID.VideoID == "" || sn.VideoOwnerChannelTitle == "" {
			continue
		}
		var thumb string
		var area int
		for _, t := range sn.Thumbnails {
			if t.Width*t.Height >= area {
				thumb, area = t.URL, t.Width*t.Height
			}
		}
		page.Items = append(page.Items, media.Descriptor{
			ID:           sn.ResourceID.VideoID,
			SourceURL:    watchURL + sn.ResourceID.VideoID,
			Title:        sn.Title,
			Artist:       sn.VideoOwnerChannelTitle,
			ThumbnailURL: thumb,
		})
	}
	return page, nil
}

// PlaylistClient is the part of *youtube.Client used for listing.
type PlaylistClient interface {
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
}

// KkdaiLister returns the whole playlist the innertube client exposes as a
// single page. It is used when no Data API key is configured.
type KkdaiLister struct {
	client PlaylistClient
}

func NewKkdaiLister(client PlaylistClient) *KkdaiLister {
	return &KkdaiLister{client: client}
}

func (l *KkdaiLister) ListPage(ctx context.Context, listID, pageToken string) (collection.Page, error) {
	if pageToken != "" {
		return collection.Page{}, nil
	}
	pl, err := l.client.GetPlaylistContext(ctx, playlistURL+listID)
	if err != nil {
		return collection.Page{}, errors.Wrapf(err, "playlist %s", listID)
	}

	var page collection.Page
	for _, v := range pl.Videos {
		if v == nil || v.ID == "" {
			continue
		}
		page.Items = append(page.Items, media.Descriptor{
			ID:           v.ID,
			SourceURL:    watchURL + v.ID,
			Title:        v.Title,
			Artist:       v.Author,
			ThumbnailURL: bestThumbnail(v.Thumbnails),
			Duration:     v.Duration,
		})
	}
	return page, nil
}

// NewLister picks the Data API when a key is present.
func NewLister(apiKey string, httpClient *http.Client, yt PlaylistClient) collection.Lister {
	if apiKey != "" {
		return NewDataAPILister(apiKey, httpClient)
	}
	return NewKkdaiLister(yt)
}

