// Package classifier sorts raw user input into a direct item link, a
// collection link or a free-text search query, purely from its shape.
package classifier

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/media"
)

// Kind is the category of a classified input.
type Kind int

const (
	SearchQuery Kind = iota
	DirectLink
	PlaylistLink
)

func (k Kind) String() string {
	switch k {
	case DirectLink:
		return "direct"
	case PlaylistLink:
		return "playlist"
	default:
		return "search"
	}
}

// Input is the result of Classify. For links only the canonical identifier
// and URL are kept; for searches Text holds the trimmed query.
type Input struct {
	Kind    Kind
	Text    string
	VideoID string
	ListID  string
	URL     string
}

const (
	watchURLTemplate    = "https://www.youtube.com/watch?v="
	playlistURLTemplate = "https://www.youtube.com/playlist?list="
)

var (
	ErrEmpty       = errors.New("query is empty")
	ErrUnparsable  = errors.New("could not parse link")
	ErrMixPlaylist = errors.New("mix playlists cannot be expanded")

	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	listIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{2,64}$`)
	schemePattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// hosts maps every recognised host to whether it is the short-link domain.
var hosts = map[string]bool{
	"youtube.com":       false,
	"www.youtube.com":   false,
	"m.youtube.com":     false,
	"music.youtube.com": false,
	"youtu.be":          true,
	"www.youtu.be":      true,
}

// pathItemPrefixes are youtube.com paths whose next segment is a video id.
var pathItemPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// Classify never performs I/O. Anything that is not a link on a recognised
// host, including links to other sites, is a search query; a link on a
// recognised host that is neither an item nor a collection is rejected
// instead of being searched for.
func Classify(raw string) (Input, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Input{}, media.InputError("classify", ErrEmpty)
	}

	link, isLink := asLink(text)
	if !isLink {
		return Input{Kind: SearchQuery, Text: text}, nil
	}

	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return Input{Kind: SearchQuery, Text: text}, nil
	}

	short, known := hosts[strings.ToLower(u.Hostname())]
	if !known {
		return Input{Kind: SearchQuery, Text: text}, nil
	}

	if short {
		return classifyShort(u, text)
	}
	return classifyLong(u, text)
}

// asLink reports whether text is meant as a link, adding a scheme to bare
// host-prefixed input such as "youtu.be/abc".
func asLink(text string) (string, bool) {
	if strings.ContainsAny(text, " \t\n") {
		return "", false
	}
	if schemePattern.MatchString(text) {
		return text, true
	}
	lower := strings.ToLower(text)
	for host := range hosts {
		if strings.HasPrefix(lower, host+"/") || lower == host {
			return "https://" + text, true
		}
	}
	return "", false
}

func classifyShort(u *url.URL, text string) (Input, error) {
	id := strings.Trim(u.Path, "/")
	if !videoIDPattern.MatchString(id) {
		return Input{}, media.InputError("classify", errors.Wrapf(ErrUnparsable, "%q", text))
	}
	return direct(id), nil
}

func classifyLong(u *url.URL, text string) (Input, error) {
	q := u.Query()
	path := strings.TrimRight(u.Path, "/")

	switch {
	case path == "/watch":
		if id := q.Get("v"); id != "" {
			if !videoIDPattern.MatchString(id) {
				break
			}
			return direct(id), nil
		}
		if list := q.Get("list"); list != "" {
			return playlist(list, text)
		}
	case path == "/playlist":
		if list := q.Get("list"); list != "" {
			return playlist(list, text)
		}
	default:
		for _, prefix := range pathItemPrefixes {
			if id, ok := strings.CutPrefix(path, prefix); ok && videoIDPattern.MatchString(id) {
				return direct(id), nil
			}
		}
	}

	return Input{}, media.InputError("classify", errors.Wrapf(ErrUnparsable, "%q", text))
}

func direct(id string) Input {
	return Input{Kind: DirectLink, VideoID: id, URL: watchURLTemplate + id}
}

func playlist(list, text string) (Input, error) {
	if !listIDPattern.MatchString(list) {
		return Input{}, media.InputError("classify", errors.Wrapf(ErrUnparsable, "%q", text))
	}
	if strings.HasPrefix(list, "RD") {
		return Input{}, media.InputError("classify", ErrMixPlaylist)
	}
	return Input{Kind: PlaylistLink, ListID: list, URL: playlistURLTemplate + list}, nil
}
