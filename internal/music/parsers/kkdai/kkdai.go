// Package kkdai extracts stream URLs with the pure-Go kkdai/youtube client.
package kkdai

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	youtube "github.com/kkdai/youtube/v2"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/parsers"
)

const Name = "kkdai-link"

// VideoClient is the part of *youtube.Client the extractor needs.
type VideoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

type Extractor struct {
	client VideoClient
}

func New(client VideoClient) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) Name() string { return Name }

func (e *Extractor) Extract(ctx context.Context, desc media.Descriptor) (media.StreamHandle, error) {
	if desc.ID == "" {
		return media.StreamHandle{}, errors.New("descriptor has no video id")
	}

	video, err := e.client.GetVideoContext(ctx, desc.ID)
	if err != nil {
		return media.StreamHandle{}, errors.Wrap(err, "youtube client error")
	}

	format, ok := bestAudio(video.Formats)
	if !ok {
		return media.StreamHandle{}, errors.New("no audio formats found for video")
	}

	link, err := e.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return media.StreamHandle{}, errors.Wrap(err, "get stream url")
	}

	return media.StreamHandle{URL: link, ExpiresAt: parsers.ExpiryFromURL(link), Duration: video.Duration}, nil
}

// bestAudio prefers audio-only formats, then the highest bitrate.
func bestAudio(formats youtube.FormatList) (*youtube.Format, bool) {
	withAudio := formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, false
	}
	sort.SliceStable(withAudio, func(i, j int) bool {
		ai, aj := withAudio[i].QualityLabel == "", withAudio[j].QualityLabel == ""
		if ai != aj {
			return ai
		}
		return withAudio[i].Bitrate > withAudio[j].Bitrate
	})
	return &withAudio[0], true
}
