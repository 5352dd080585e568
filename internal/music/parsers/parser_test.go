package parsers

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/domme-music/internal/music/media"
)

type stubExtractor struct {
	name  string
	url   string
	err   error
	calls int
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(context.Context, media.Descriptor) (media.StreamHandle, error) {
	s.calls++
	return media.StreamHandle{URL: s.url}, s.err
}

func TestChainFallsThrough(t *testing.T) {
	first := &stubExtractor{name: "kkdai-link", err: errors.New("signature")}
	second := &stubExtractor{name: "ytdlp-link", url: "https://cdn/x"}

	c, err := NewChain(nil, second, first)
	require.NoError(t, err)
	assert.Equal(t, []string{"kkdai-link", "ytdlp-link"}, c.Names())

	h, err := c.Resolve(context.Background(), media.Descriptor{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x", h.URL)
	assert.Equal(t, "ytdlp-link", h.Parser)
	assert.Equal(t, 1, first.calls)
}

func TestChainAllFail(t *testing.T) {
	a := &stubExtractor{name: "a", err: errors.New("boom a")}
	b := &stubExtractor{name: "b"} // empty url counts as failure

	c, err := NewChain([]string{"a", "b"}, a, b)
	require.NoError(t, err)

	_, err = c.Resolve(context.Background(), media.Descriptor{ID: "x"})
	require.Error(t, err)
	assert.True(t, media.IsResolution(err))
	assert.ErrorContains(t, err, "boom a")
	assert.ErrorContains(t, err, "empty stream url")
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	a := &stubExtractor{name: "a", url: "https://cdn/x"}
	c, err := NewChain([]string{"a"}, a)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Resolve(ctx, media.Descriptor{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, a.calls)
}

func TestNewChainUnknownParser(t *testing.T) {
	_, err := NewChain([]string{"ffmpeg-pipe"})
	assert.ErrorContains(t, err, "ffmpeg-pipe")
}

func TestExpiryFromURL(t *testing.T) {
	assert.Equal(t, int64(1700000000), ExpiryFromURL("https://x/videoplayback?expire=1700000000&ei=1").Unix())
	assert.True(t, ExpiryFromURL("https://x/videoplayback").IsZero())
	assert.True(t, ExpiryFromURL("https://x/?expire=soon").IsZero())
	assert.True(t, ExpiryFromURL("::").IsZero())
}
