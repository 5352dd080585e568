package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/domme-music/internal/music/media"
)

func TestClassify(t *testing.T) {
	const id = "dQw4w9WgXcQ"
	const list = "PLFgquLnL59alCl_2TQvOiD5Vgm1hCaGSI"

	tests := []struct {
		name  string
		raw   string
		kind  Kind
		video string
		list  string
		url   string
	}{
		{"watch", "https://www.youtube.com/watch?v=" + id, DirectLink, id, "", watchURLTemplate + id},
		{"watch without www", "https://youtube.com/watch?v=" + id + "&t=42", DirectLink, id, "", watchURLTemplate + id},
		{"mobile", "https://m.youtube.com/watch?v=" + id, DirectLink, id, "", watchURLTemplate + id},
		{"music host", "https://music.youtube.com/watch?v=" + id, DirectLink, id, "", watchURLTemplate + id},
		{"short link", "https://youtu.be/" + id + "?si=abc", DirectLink, id, "", watchURLTemplate + id},
		{"bare short link", "youtu.be/" + id, DirectLink, id, "", watchURLTemplate + id},
		{"shorts", "https://www.youtube.com/shorts/" + id, DirectLink, id, "", watchURLTemplate + id},
		{"embed", "https://www.youtube.com/embed/" + id, DirectLink, id, "", watchURLTemplate + id},
		{"live", "https://www.youtube.com/live/" + id, DirectLink, id, "", watchURLTemplate + id},
		{"item wins over list", "https://www.youtube.com/watch?v=" + id + "&list=" + list, DirectLink, id, "", watchURLTemplate + id},
		{"item wins over mix", "https://www.youtube.com/watch?v=" + id + "&list=RD" + id, DirectLink, id, "", watchURLTemplate + id},
		{"playlist", "https://www.youtube.com/playlist?list=" + list, PlaylistLink, "", list, playlistURLTemplate + list},
		{"watch with list only", "https://www.youtube.com/watch?list=" + list, PlaylistLink, "", list, playlistURLTemplate + list},
		{"search", "  never gonna give you up ", SearchQuery, "", "", ""},
		{"single word search", "lofi", SearchQuery, "", "", ""},
		{"other host", "https://soundcloud.com/artist/track", SearchQuery, "", "", ""},
		{"other site", "https://example.com/song", SearchQuery, "", "", ""},
		{"lookalike host", "https://youtube.com.evil.example/watch?v=" + id, SearchQuery, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := Classify(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, in.Kind)
			assert.Equal(t, tt.video, in.VideoID)
			assert.Equal(t, tt.list, in.ListID)
			assert.Equal(t, tt.url, in.URL)
		})
	}
}

func TestClassifyKeepsSearchText(t *testing.T) {
	in, err := Classify("  daft punk  around the world ")
	require.NoError(t, err)
	assert.Equal(t, SearchQuery, in.Kind)
	assert.Equal(t, "daft punk  around the world", in.Text)

	in, err = Classify(" https://vimeo.com/12345 ")
	require.NoError(t, err)
	assert.Equal(t, SearchQuery, in.Kind)
	assert.Equal(t, "https://vimeo.com/12345", in.Text)
}

func TestClassifyRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrEmpty},
		{"blank", "   \t ", ErrEmpty},
		{"channel page", "https://www.youtube.com/@someone", ErrUnparsable},
		{"watch without id", "https://www.youtube.com/watch?t=10", ErrUnparsable},
		{"short id", "https://www.youtube.com/watch?v=abc", ErrUnparsable},
		{"empty short link", "https://youtu.be/", ErrUnparsable},
		{"playlist without list", "https://www.youtube.com/playlist", ErrUnparsable},
		{"mix playlist", "https://www.youtube.com/playlist?list=RDdQw4w9WgXcQ", ErrMixPlaylist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.raw)
			require.Error(t, err)
			assert.True(t, media.IsInput(err), "want input error, got %v", err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "direct", DirectLink.String())
	assert.Equal(t, "playlist", PlaylistLink.String())
	assert.Equal(t, "search", SearchQuery.String())
}
