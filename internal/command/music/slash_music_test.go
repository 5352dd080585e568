package music

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/domme-music/internal/music/classifier"
	"github.com/keshon/domme-music/internal/music/collection"
	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/internal/music/resolver"
	"github.com/keshon/domme-music/internal/music/sources/youtube"
)

type fakePlayer struct {
	calls  []string
	err    error
	result resolver.Result
	view   player.QueueView
	text   string
	joined string
	query  string
}

func (f *fakePlayer) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakePlayer) PlayQuery(_ context.Context, _, channelID, query string) (resolver.Result, error) {
	f.joined, f.query = channelID, query
	if err := f.record("play"); err != nil {
		return resolver.Result{}, err
	}
	return f.result, nil
}

func (f *fakePlayer) Play(context.Context, string) error { return f.record("play-queue") }

func (f *fakePlayer) Join(_ context.Context, _, channelID string) error {
	f.joined = channelID
	return f.record("join")
}

func (f *fakePlayer) Pause(string) error                         { return f.record("pause") }
func (f *fakePlayer) Resume(string) error                        { return f.record("resume") }
func (f *fakePlayer) Stop(string) error                          { return f.record("stop") }
func (f *fakePlayer) Skip(context.Context, string) error         { return f.record("skip") }
func (f *fakePlayer) Previous(context.Context, string) error     { return f.record("previous") }
func (f *fakePlayer) Shuffle(string) error                       { return f.record("shuffle") }
func (f *fakePlayer) Clear(string) error                         { return f.record("clear") }
func (f *fakePlayer) Leave(string) error                         { return f.record("leave") }
func (f *fakePlayer) Queue(string, int) player.QueueView         { return f.view }
func (f *fakePlayer) SetTextChannel(_ string, channelID string)  { f.text = channelID }

type fakeVoice map[string]string

func (v fakeVoice) UserVoiceChannel(_, userID string) (string, error) {
	ch, ok := v[userID]
	if !ok {
		return "", errors.New("not found")
	}
	return ch, nil
}

func track(id, title string) media.Descriptor {
	return media.Descriptor{ID: id, Title: title, SourceURL: "https://www.youtube.com/watch?v=" + id, Duration: 3*time.Minute + 5*time.Second}
}

func newCommand() (*MusicCommand, *fakePlayer) {
	p := &fakePlayer{}
	return &MusicCommand{Player: p, Voice: fakeVoice{"u1": "voice1"}}, p
}

func TestExecute_PlaySingle(t *testing.T) {
	c, p := newCommand()
	p.result = resolver.Result{Items: []media.Descriptor{track("dQw4w9WgXcQ", "Song")}}

	embed, err := c.execute(context.Background(), request{GuildID: "g", ChannelID: "text1", UserID: "u1", Sub: "play", Query: "song"})
	require.NoError(t, err)

	assert.Equal(t, "voice1", p.joined)
	assert.Equal(t, "song", p.query)
	assert.Equal(t, "text1", p.text)
	assert.Contains(t, embed.Description, "[Song (3:05)](https://www.youtube.com/watch?v=dQw4w9WgXcQ)")
}

func TestExecute_PlayPlaylist(t *testing.T) {
	c, p := newCommand()
	p.result = resolver.Result{
		Input: classifier.Input{Kind: classifier.PlaylistLink},
		Items: []media.Descriptor{track("aaaaaaaaaaa", "One"), track("bbbbbbbbbbb", "Two")},
	}

	embed, err := c.execute(context.Background(), request{GuildID: "g", UserID: "u1", Sub: "play", Query: "list"})
	require.NoError(t, err)
	assert.Equal(t, "Added 2 tracks from the playlist.", embed.Description)
	require.Len(t, embed.Fields, 1)
	assert.Contains(t, embed.Fields[0].Value, "One")
}

func TestExecute_PlayWithoutQueryRestartsQueue(t *testing.T) {
	c, p := newCommand()
	now := track("aaaaaaaaaaa", "One")
	p.view = player.QueueView{NowPlaying: &now}

	embed, err := c.execute(context.Background(), request{GuildID: "g", ChannelID: "text1", UserID: "u1", Sub: "play", Query: "  "})
	require.NoError(t, err)

	assert.Equal(t, []string{"join", "play-queue"}, p.calls)
	assert.Equal(t, "voice1", p.joined)
	assert.Empty(t, p.query)
	assert.Equal(t, "text1", p.text)
	assert.Contains(t, embed.Description, "One")

	c, p = newCommand()
	p.err = media.ErrQueueEmpty
	_, err = c.execute(context.Background(), request{GuildID: "g", UserID: "u1", Sub: "play"})
	assert.ErrorIs(t, err, media.ErrQueueEmpty)
}

func TestExecute_RequiresVoice(t *testing.T) {
	c, p := newCommand()
	for _, sub := range []string{"play", "join"} {
		_, err := c.execute(context.Background(), request{GuildID: "g", UserID: "stranger", Sub: sub, Query: "x"})
		require.ErrorIs(t, err, errNotInVoice)
		assert.Equal(t, "Join a voice channel first.", userMessage(err))
	}
	assert.Empty(t, p.calls)
}

func TestExecute_SimpleSubcommands(t *testing.T) {
	for _, sub := range []string{"pause", "resume", "stop", "skip", "previous", "shuffle", "clear", "leave", "join"} {
		t.Run(sub, func(t *testing.T) {
			c, p := newCommand()
			p.view = player.QueueView{Snapshot: player.Snapshot{Queue: []media.Descriptor{track("aaaaaaaaaaa", "One")}}}
			embed, err := c.execute(context.Background(), request{GuildID: "g", UserID: "u1", Sub: sub})
			require.NoError(t, err)
			assert.Equal(t, []string{sub}, p.calls)
			assert.NotEmpty(t, embed.Title)
		})
	}
}

func TestExecute_PropagatesPlayerErrors(t *testing.T) {
	c, p := newCommand()
	p.err = media.ErrNothingToPause

	_, err := c.execute(context.Background(), request{GuildID: "g", Sub: "pause"})
	require.ErrorIs(t, err, media.ErrNothingToPause)
	assert.Equal(t, "Nothing to pause.", userMessage(err))
}

func TestExecute_SkipShowsNowPlaying(t *testing.T) {
	c, p := newCommand()
	cur := track("bbbbbbbbbbb", "Two")
	p.view = player.QueueView{NowPlaying: &cur}

	embed, err := c.execute(context.Background(), request{GuildID: "g", Sub: "skip"})
	require.NoError(t, err)
	assert.Contains(t, embed.Description, "Two")
}

func TestExecute_Queue(t *testing.T) {
	c, p := newCommand()
	cur := track("aaaaaaaaaaa", "One")
	p.view = player.QueueView{
		Snapshot: player.Snapshot{
			Queue:  []media.Descriptor{cur, track("bbbbbbbbbbb", "Two"), track("ccccccccccc", "Three")},
			Cursor: 0,
			State:  player.StatePlaying,
		},
		NowPlaying: &cur,
		Next:       []media.Descriptor{track("bbbbbbbbbbb", "Two")},
		Remaining:  1,
	}

	embed, err := c.execute(context.Background(), request{GuildID: "g", Sub: "queue", Count: 1})
	require.NoError(t, err)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "Now playing", embed.Fields[0].Name)
	assert.Contains(t, embed.Fields[1].Value, "2. [Two")
	assert.Contains(t, embed.Fields[1].Value, "and 1 more")
	assert.Equal(t, "3 tracks in queue", embed.Footer.Text)
}

func TestExecute_EmptyQueue(t *testing.T) {
	c, _ := newCommand()
	embed, err := c.execute(context.Background(), request{GuildID: "g", Sub: "queue"})
	require.NoError(t, err)
	assert.Equal(t, "The queue is empty.", embed.Description)
}

func TestExecute_UnknownSubcommand(t *testing.T) {
	c, _ := newCommand()
	_, err := c.execute(context.Background(), request{Sub: "dance"})
	assert.Error(t, err)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{media.InputError("classify", classifier.ErrUnparsable), "I could not make sense of that link."},
		{media.InputError("classify", classifier.ErrMixPlaylist), "YouTube mixes cannot be queued. Use the video link instead."},
		{media.InputError("classify", classifier.ErrEmpty), "Give me a link or something to search for."},
		{media.ResolutionError("search", errors.Wrap(youtube.ErrNoResults, "for \"x\"")), "Nothing found for that search."},
		{media.ResolutionError("list playlist", collection.ErrEmpty), "That playlist is empty."},
		{media.ResolutionError("describe", errors.New("boom")), "Could not load that track. It may be private, region locked or removed."},
		{media.TransportError("connect", errors.New("timeout")), "Voice connection problem. Try again in a moment."},
		{errors.Wrap(media.ErrNoNext, "skip"), "No next item."},
		{media.ErrSuperseded, "Another command changed playback first. Try again."},
		{errors.New("weird"), "Something went wrong."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, userMessage(tt.err), tt.err.Error())
	}
}

func TestParseRequest(t *testing.T) {
	e := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g",
		ChannelID: "text",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "music",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name: "queue",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{{
					Name:  "count",
					Type:  discordgo.ApplicationCommandOptionInteger,
					Value: float64(5),
				}},
			}},
		},
	}}

	req, err := parseRequest(e)
	require.NoError(t, err)
	assert.Equal(t, request{GuildID: "g", ChannelID: "text", UserID: "u1", Sub: "queue", Count: 5}, req)
}

func TestSlashDefinition(t *testing.T) {
	c, _ := newCommand()
	def := c.SlashDefinition()
	var names []string
	for _, o := range def.Options {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"play", "pause", "resume", "stop", "skip", "previous", "shuffle", "clear", "queue", "join", "leave"}, names)
	require.Len(t, def.Options[0].Options, 1)
	assert.False(t, def.Options[0].Options[0].Required, "play without a query restarts the queue")
}
