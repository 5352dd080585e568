package ytdlp

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/domme-music/internal/music/media"
)

func TestExtract(t *testing.T) {
	var gotArgs []string
	e := New(func(_ context.Context, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte(`{"url":" https://cdn.example/a.webm?expire=1800000000 ","duration":212}`), nil
	})

	h, err := e.Extract(context.Background(), media.Descriptor{ID: "dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a.webm?expire=1800000000", h.URL)
	assert.Equal(t, int64(1800000000), h.ExpiresAt.Unix())
	assert.Equal(t, 212*time.Second, h.Duration)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", gotArgs[len(gotArgs)-1])
}

func TestExtractFallsBackToFirstFormat(t *testing.T) {
	e := New(func(context.Context, ...string) ([]byte, error) {
		return []byte(`{"formats":[{"url":"https://cdn.example/b.m4a"}]}`), nil
	})

	h, err := e.Extract(context.Background(), media.Descriptor{SourceURL: "https://youtu.be/x"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/b.m4a", h.URL)
	assert.True(t, h.ExpiresAt.IsZero())
}

func TestExtractErrors(t *testing.T) {
	failing := New(func(context.Context, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	_, err := failing.Extract(context.Background(), media.Descriptor{ID: "x"})
	assert.ErrorContains(t, err, "exit status 1")

	empty := New(func(context.Context, ...string) ([]byte, error) { return []byte(`{}`), nil })
	_, err = empty.Extract(context.Background(), media.Descriptor{ID: "x"})
	assert.ErrorContains(t, err, "empty url")

	garbage := New(func(context.Context, ...string) ([]byte, error) { return []byte(`nope`), nil })
	_, err = garbage.Extract(context.Background(), media.Descriptor{ID: "x"})
	assert.Error(t, err)
}
