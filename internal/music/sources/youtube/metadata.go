package youtube

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	youtube "github.com/kkdai/youtube/v2"

	"github.com/keshon/domme-music/internal/music/media"
)

const watchURL = "https://www.youtube.com/watch?v="

// VideoClient is the part of *youtube.Client used for lookups.
type VideoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
}

type MetadataResolver struct {
	client VideoClient
}

func NewMetadataResolver(client VideoClient) *MetadataResolver {
	return &MetadataResolver{client: client}
}

// Describe looks up a single video. The returned descriptor carries no stream.
func (r *MetadataResolver) Describe(ctx context.Context, videoID string) (media.Descriptor, error) {
	video, err := r.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return media.Descriptor{}, media.ResolutionError("describe", errors.Wrapf(err, "video %s", videoID))
	}
	if video == nil || video.ID == "" || strings.TrimSpace(video.Title) == "" {
		return media.Descriptor{}, media.ResolutionError("describe", errors.Newf("video %s has no metadata", videoID))
	}

	return media.Descriptor{
		ID:           video.ID,
		SourceURL:    watchURL + video.ID,
		Title:        video.Title,
		Artist:       video.Author,
		ThumbnailURL: bestThumbnail(video.Thumbnails),
		Duration:     video.Duration,
	}, nil
}

func bestThumbnail(thumbs youtube.Thumbnails) string {
	var best youtube.Thumbnail
	for _, t := range thumbs {
		if t.Width*t.Height >= best.Width*best.Height {
			best = t
		}
	}
	return best.URL
}
