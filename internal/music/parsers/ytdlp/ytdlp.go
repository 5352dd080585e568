// Package ytdlp extracts stream URLs by shelling out to yt-dlp.
package ytdlp

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/parsers"
)

const Name = "ytdlp-link"

// Runner executes yt-dlp with args and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func execRunner(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "yt-dlp", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, errors.Wrapf(err, "yt-dlp: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, errors.Wrap(err, "yt-dlp")
	}
	return out, nil
}

type Extractor struct {
	run Runner
}

// New returns an extractor using the yt-dlp binary on PATH, or run when given.
func New(run Runner) *Extractor {
	if run == nil {
		run = execRunner
	}
	return &Extractor{run: run}
}

func (e *Extractor) Name() string { return Name }

type info struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Formats []struct {
		URL string `json:"url"`
	} `json:"formats"`
}

func (e *Extractor) Extract(ctx context.Context, desc media.Descriptor) (media.StreamHandle, error) {
	target := desc.SourceURL
	if target == "" && desc.ID != "" {
		target = "https://www.youtube.com/watch?v=" + desc.ID
	}
	if target == "" {
		return media.StreamHandle{}, errors.New("descriptor has no source url")
	}

	out, err := e.run(ctx, "-j", "-f", "bestaudio", "--no-playlist", target)
	if err != nil {
		return media.StreamHandle{}, err
	}

	var i info
	if err := json.Unmarshal(out, &i); err != nil {
		return media.StreamHandle{}, errors.Wrap(err, "decode yt-dlp output")
	}

	link := strings.TrimSpace(i.URL)
	if link == "" && len(i.Formats) > 0 {
		link = strings.TrimSpace(i.Formats[0].URL)
	}
	if link == "" {
		return media.StreamHandle{}, errors.New("empty url returned from yt-dlp")
	}

	return media.StreamHandle{
		URL:       link,
		ExpiresAt: parsers.ExpiryFromURL(link),
		Duration:  time.Duration(i.Duration * float64(time.Second)),
	}, nil
}
