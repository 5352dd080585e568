package resolver

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/domme-music/internal/music/classifier"
	"github.com/keshon/domme-music/internal/music/collection"
	"github.com/keshon/domme-music/internal/music/media"
)

type fakeMeta struct {
	err   error
	calls []string
}

func (f *fakeMeta) Describe(_ context.Context, id string) (media.Descriptor, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return media.Descriptor{}, media.ResolutionError("describe", f.err)
	}
	return media.Descriptor{ID: id, Title: "title " + id}, nil
}

type fakeSearch struct {
	hits []media.Descriptor
	err  error
}

func (f fakeSearch) Search(context.Context, string) ([]media.Descriptor, error) {
	return f.hits, f.err
}

func pages(n int) collection.Lister {
	return collection.ListerFunc(func(_ context.Context, _ string, token string) (collection.Page, error) {
		var p collection.Page
		for i := range n {
			p.Items = append(p.Items, media.Descriptor{ID: string(rune('a' + i))})
		}
		return p, nil
	})
}

func TestResolveDirect(t *testing.T) {
	meta := &fakeMeta{}
	r := New(meta, fakeSearch{}, pages(0), 0)

	res, err := r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, classifier.DirectLink, res.Input.Kind)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "title dQw4w9WgXcQ", res.Items[0].Title)
}

func TestResolveDirectFailure(t *testing.T) {
	r := New(&fakeMeta{err: errors.New("private video")}, fakeSearch{}, pages(0), 0)

	_, err := r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	assert.True(t, media.IsResolution(err))
}

func TestResolvePlaylist(t *testing.T) {
	r := New(&fakeMeta{}, fakeSearch{}, pages(5), 3)

	res, err := r.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	require.NoError(t, err)
	assert.Equal(t, classifier.PlaylistLink, res.Input.Kind)
	assert.Len(t, res.Items, 3)
}

func TestResolveEmptyPlaylist(t *testing.T) {
	r := New(&fakeMeta{}, fakeSearch{}, pages(0), 0)

	_, err := r.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	assert.ErrorIs(t, err, collection.ErrEmpty)
}

func TestResolveSearch(t *testing.T) {
	meta := &fakeMeta{}
	r := New(meta, fakeSearch{hits: []media.Descriptor{{ID: "hit00000001"}, {ID: "hit00000002"}}}, pages(0), 0)

	res, err := r.Resolve(context.Background(), "some song")
	require.NoError(t, err)
	assert.Equal(t, classifier.SearchQuery, res.Input.Kind)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "title hit00000001", res.Items[0].Title)
	assert.Equal(t, []string{"hit00000001"}, meta.calls)
}

func TestResolveSearchKeepsHitWhenDescribeFails(t *testing.T) {
	hit := media.Descriptor{ID: "hit00000001", Title: "From search"}
	r := New(&fakeMeta{err: errors.New("age gated")}, fakeSearch{hits: []media.Descriptor{hit}}, pages(0), 0)

	res, err := r.Resolve(context.Background(), "some song")
	require.NoError(t, err)
	assert.Equal(t, hit, res.Items[0])
}

func TestResolveErrors(t *testing.T) {
	r := New(&fakeMeta{}, fakeSearch{err: media.ResolutionError("search", errors.New("no results"))}, pages(0), 0)

	_, err := r.Resolve(context.Background(), "   ")
	assert.True(t, media.IsInput(err))

	_, err = r.Resolve(context.Background(), "https://www.youtube.com/@someone")
	assert.True(t, media.IsInput(err))

	_, err = r.Resolve(context.Background(), "https://soundcloud.com/x/y")
	assert.True(t, media.IsResolution(err), "links to other sites are searched for")

	_, err = r.Resolve(context.Background(), "unknown words")
	assert.True(t, media.IsResolution(err))
}
