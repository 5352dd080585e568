package discord

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/player"
)

type fakeSessions struct {
	snaps  map[string]player.Snapshot
	torn   []string
	events chan player.Event
}

func (f *fakeSessions) Snapshot(guildID string) (player.Snapshot, bool) {
	s, ok := f.snaps[guildID]
	return s, ok
}

func (f *fakeSessions) Teardown(guildID string) { f.torn = append(f.torn, guildID) }

func (f *fakeSessions) Events() <-chan player.Event { return f.events }

func voiceState(userID, channelID string, bot bool) *discordgo.VoiceState {
	return &discordgo.VoiceState{
		GuildID:   "g",
		UserID:    userID,
		ChannelID: channelID,
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Bot: bot}},
	}
}

func newState(t *testing.T, states ...*discordgo.VoiceState) *discordgo.State {
	t.Helper()
	st := discordgo.NewState()
	st.User = &discordgo.User{ID: "self", Bot: true}
	require.NoError(t, st.GuildAdd(&discordgo.Guild{ID: "g", VoiceStates: states}))
	return st
}

func newTestBot(sessions *fakeSessions) *Bot {
	return &Bot{sessions: sessions, log: zlog.Logger}
}

func TestUserVoiceChannel(t *testing.T) {
	st := newState(t, voiceState("u1", "v1", false))

	ch, err := userVoiceChannel(st, "g", "u1")
	require.NoError(t, err)
	assert.Equal(t, "v1", ch)

	_, err = userVoiceChannel(st, "g", "u2")
	assert.ErrorIs(t, err, errNotInVoice)

	_, err = userVoiceChannel(st, "missing", "u1")
	assert.Error(t, err)
}

func TestListeners_IgnoresBots(t *testing.T) {
	st := newState(t,
		voiceState("self", "v1", true),
		voiceState("otherbot", "v1", true),
		voiceState("u1", "v1", false),
		voiceState("u2", "v2", false),
	)
	guild, err := st.Guild("g")
	require.NoError(t, err)

	assert.Equal(t, 1, listeners(st, guild, "v1"))
	assert.Equal(t, 1, listeners(st, guild, "v2"))
	assert.Equal(t, 0, listeners(st, guild, "v3"))
}

func TestOnVoiceStateUpdate_TearsDownEmptyChannel(t *testing.T) {
	sessions := &fakeSessions{snaps: map[string]player.Snapshot{"g": {GuildID: "g", ChannelID: "v1"}}}
	b := newTestBot(sessions)

	// last listener moved away, only the bot remains
	st := newState(t, voiceState("self", "v1", true), voiceState("u1", "v2", false))
	s := &discordgo.Session{State: st}

	b.onVoiceStateUpdate(s, &discordgo.VoiceStateUpdate{
		VoiceState:   voiceState("u1", "v2", false),
		BeforeUpdate: voiceState("u1", "v1", false),
	})
	assert.Equal(t, []string{"g"}, sessions.torn)
}

func TestOnVoiceStateUpdate_KeepsSessionWithListeners(t *testing.T) {
	sessions := &fakeSessions{snaps: map[string]player.Snapshot{"g": {GuildID: "g", ChannelID: "v1"}}}
	b := newTestBot(sessions)

	st := newState(t, voiceState("self", "v1", true), voiceState("u1", "v1", false), voiceState("u2", "v2", false))
	s := &discordgo.Session{State: st}

	b.onVoiceStateUpdate(s, &discordgo.VoiceStateUpdate{
		VoiceState:   voiceState("u2", "v2", false),
		BeforeUpdate: voiceState("u2", "v1", false),
	})
	// unrelated channel
	b.onVoiceStateUpdate(s, &discordgo.VoiceStateUpdate{VoiceState: voiceState("u3", "v9", false)})
	assert.Empty(t, sessions.torn)
}

func TestOnVoiceStateUpdate_BotDisconnected(t *testing.T) {
	sessions := &fakeSessions{snaps: map[string]player.Snapshot{"g": {GuildID: "g", ChannelID: "v1"}}}
	b := newTestBot(sessions)
	s := &discordgo.Session{State: newState(t, voiceState("u1", "v1", false))}

	b.onVoiceStateUpdate(s, &discordgo.VoiceStateUpdate{
		VoiceState:   voiceState("self", "", true),
		BeforeUpdate: voiceState("self", "v1", true),
	})
	assert.Equal(t, []string{"g"}, sessions.torn)
}

func TestOnVoiceStateUpdate_NoSession(t *testing.T) {
	sessions := &fakeSessions{snaps: map[string]player.Snapshot{}}
	b := newTestBot(sessions)
	s := &discordgo.Session{State: newState(t)}

	b.onVoiceStateUpdate(s, &discordgo.VoiceStateUpdate{
		VoiceState:   voiceState("u1", "", false),
		BeforeUpdate: voiceState("u1", "v1", false),
	})
	assert.Empty(t, sessions.torn)
}

func TestNoticeEmbed(t *testing.T) {
	track := media.Descriptor{Title: "Song", SourceURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", ThumbnailURL: "https://img"}

	playing := noticeEmbed(player.Event{Kind: player.EventPlaying, Track: track})
	require.NotNil(t, playing)
	assert.Equal(t, "▶️ Now Playing", playing.Title)
	assert.Equal(t, "[Song](https://www.youtube.com/watch?v=dQw4w9WgXcQ)", playing.Description)
	require.NotNil(t, playing.Thumbnail)
	assert.Equal(t, "https://img", playing.Thumbnail.URL)

	failed := noticeEmbed(player.Event{Kind: player.EventError, Err: errors.New("gone")})
	require.NotNil(t, failed)
	assert.Contains(t, failed.Description, "gone")

	assert.NotNil(t, noticeEmbed(player.Event{Kind: player.EventQueueExhausted}))
	assert.NotNil(t, noticeEmbed(player.Event{Kind: player.EventTeardown}))
	assert.Nil(t, noticeEmbed(player.Event{Kind: player.EventAdded}))
	assert.Nil(t, noticeEmbed(player.Event{Kind: player.EventPaused}))
}

func TestHashCommand_OrderIndependent(t *testing.T) {
	a := &discordgo.ApplicationCommand{Name: "music", Description: "d", Options: []*discordgo.ApplicationCommandOption{
		{Name: "play", Type: discordgo.ApplicationCommandOptionSubCommand},
		{Name: "pause", Type: discordgo.ApplicationCommandOptionSubCommand},
	}}
	b := &discordgo.ApplicationCommand{Name: "music", Description: "d", Options: []*discordgo.ApplicationCommandOption{
		{Name: "pause", Type: discordgo.ApplicationCommandOptionSubCommand},
		{Name: "play", Type: discordgo.ApplicationCommandOptionSubCommand},
	}}
	assert.Equal(t, hashCommand(a), hashCommand(b))

	b.Description = "changed"
	assert.NotEqual(t, hashCommand(a), hashCommand(b))
}

func TestHashCache_RoundTrip(t *testing.T) {
	c := newHashCache(t.TempDir())
	assert.Empty(t, c.load("g"))

	require.NoError(t, c.save("g", map[string]string{"music": "abc"}))
	assert.Equal(t, map[string]string{"music": "abc"}, c.load("g"))
}
