// Package music is the /music slash command.
package music

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/command"
	"github.com/keshon/domme-music/internal/music/player"
	"github.com/keshon/domme-music/internal/music/resolver"
	"github.com/keshon/domme-music/pkg/cmd"
)

const maxQueueCount = 25

// Player is the part of player.Manager the command drives.
type Player interface {
	PlayQuery(ctx context.Context, guildID, channelID, query string) (resolver.Result, error)
	Play(ctx context.Context, guildID string) error
	Join(ctx context.Context, guildID, channelID string) error
	Pause(guildID string) error
	Resume(guildID string) error
	Stop(guildID string) error
	Skip(ctx context.Context, guildID string) error
	Previous(ctx context.Context, guildID string) error
	Shuffle(guildID string) error
	Clear(guildID string) error
	Leave(guildID string) error
	Queue(guildID string, count int) player.QueueView
	SetTextChannel(guildID, channelID string)
}

// VoiceLocator finds the voice channel a member is connected to.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, error)
}

type MusicCommand struct {
	Player Player
	Voice  VoiceLocator
}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }
func (c *MusicCommand) Group() string       { return "music" }
func (c *MusicCommand) Category() string    { return "🎵 Music" }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minCount := 1.0
	sub := func(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        name,
			Description: desc,
			Options:     opts,
		}
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			sub("play", "Play a YouTube link, playlist or search result, or restart the queue", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Link or search query; leave empty to play the queue",
			}),
			sub("pause", "Pause playback"),
			sub("resume", "Resume paused playback"),
			sub("stop", "Stop playback and keep the queue"),
			sub("skip", "Skip to the next track"),
			sub("previous", "Go back to the previous track"),
			sub("shuffle", "Shuffle the upcoming tracks"),
			sub("clear", "Stop playback and empty the queue"),
			sub("queue", "Show the queue", &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "count",
				Description: "How many upcoming tracks to show",
				MinValue:    &minCount,
				MaxValue:    maxQueueCount,
			}),
			sub("join", "Join your voice channel"),
			sub("leave", "Leave the voice channel and drop the queue"),
		},
	}
}

// request is a parsed /music interaction.
type request struct {
	GuildID   string
	ChannelID string
	UserID    string
	Sub       string
	Query     string
	Count     int
}

func parseRequest(e *discordgo.InteractionCreate) (request, error) {
	data := e.ApplicationCommandData()
	if len(data.Options) == 0 {
		return request{}, errors.New("missing subcommand")
	}
	sub := data.Options[0]
	req := request{
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		UserID:    command.User(e).ID,
		Sub:       sub.Name,
		Count:     player.DefaultQueueView,
	}
	for _, opt := range sub.Options {
		switch opt.Name {
		case "query":
			req.Query = opt.StringValue()
		case "count":
			req.Count = int(opt.IntValue())
		}
	}
	return req, nil
}

func (c *MusicCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	slash, ok := inv.Data.(*command.SlashContext)
	if !ok {
		return errors.Newf("unexpected invocation data %T", inv.Data)
	}
	s, e := slash.Session, slash.Event

	req, err := parseRequest(e)
	if err != nil {
		return command.RespondEmbedEphemeral(s, e, command.NewEmbed("🎵 Error", "Missing subcommand.").MessageEmbed)
	}

	if err := command.Defer(s, e, false); err != nil {
		return errors.Wrap(err, "failed to defer response")
	}

	reply, runErr := c.execute(ctx, req)
	if runErr != nil {
		zlog.Debug().Err(runErr).Str("invocation", inv.ID).Str("guild", req.GuildID).Str("sub", req.Sub).Msg("music command failed")
		if err := command.FollowupEmbedEphemeral(s, e, errorEmbed(runErr)); err != nil {
			return errors.Wrap(err, "failed to send followup")
		}
		return runErr
	}
	if err := command.FollowupEmbed(s, e, reply); err != nil {
		return errors.Wrap(err, "failed to send followup")
	}
	return nil
}

// execute performs the subcommand and builds the reply.
func (c *MusicCommand) execute(ctx context.Context, req request) (*discordgo.MessageEmbed, error) {
	switch req.Sub {
	case "play":
		return c.play(ctx, req)
	case "join":
		voice, err := c.voiceChannel(req)
		if err != nil {
			return nil, err
		}
		if err := c.Player.Join(ctx, req.GuildID, voice); err != nil {
			return nil, err
		}
		c.Player.SetTextChannel(req.GuildID, req.ChannelID)
		return command.NewEmbed("🎧 Joined", fmt.Sprintf("Connected to <#%s>.", voice)).MessageEmbed, nil
	case "pause":
		return simple(c.Player.Pause(req.GuildID), player.EventPaused, "Playback paused.")
	case "resume":
		return simple(c.Player.Resume(req.GuildID), player.EventResumed, "Playback resumed.")
	case "stop":
		return simple(c.Player.Stop(req.GuildID), player.EventStopped, "Playback stopped. The queue is kept.")
	case "skip":
		if err := c.Player.Skip(ctx, req.GuildID); err != nil {
			return nil, err
		}
		return c.nowPlaying(req.GuildID, "⏭ Skipped"), nil
	case "previous":
		if err := c.Player.Previous(ctx, req.GuildID); err != nil {
			return nil, err
		}
		return c.nowPlaying(req.GuildID, "⏮ Previous"), nil
	case "shuffle":
		if err := c.Player.Shuffle(req.GuildID); err != nil {
			return nil, err
		}
		view := c.Player.Queue(req.GuildID, 1)
		upcoming := len(view.Queue) - view.Cursor - 1
		return command.NewEmbed("🔀 Shuffled", fmt.Sprintf("Shuffled %d upcoming tracks.", upcoming)).MessageEmbed, nil
	case "clear":
		if err := c.Player.Clear(req.GuildID); err != nil {
			return nil, err
		}
		return command.NewEmbed("🧹 Cleared", "Playback stopped and the queue is empty.").MessageEmbed, nil
	case "queue":
		count := min(max(req.Count, 1), maxQueueCount)
		return queueEmbed(c.Player.Queue(req.GuildID, count)), nil
	case "leave":
		if err := c.Player.Leave(req.GuildID); err != nil {
			return nil, err
		}
		return command.NewEmbed(player.EventTeardown.StringEmoji()+" Left", "Disconnected and dropped the queue.").MessageEmbed, nil
	default:
		return nil, errors.Newf("unknown subcommand %q", req.Sub)
	}
}

func (c *MusicCommand) play(ctx context.Context, req request) (*discordgo.MessageEmbed, error) {
	voice, err := c.voiceChannel(req)
	if err != nil {
		return nil, err
	}
	c.Player.SetTextChannel(req.GuildID, req.ChannelID)

	if strings.TrimSpace(req.Query) == "" {
		if err := c.Player.Join(ctx, req.GuildID, voice); err != nil {
			return nil, err
		}
		if err := c.Player.Play(ctx, req.GuildID); err != nil {
			return nil, err
		}
		return c.nowPlaying(req.GuildID, player.EventPlaying.StringEmoji()+" "+string(player.EventPlaying)), nil
	}

	res, err := c.Player.PlayQuery(ctx, req.GuildID, voice, req.Query)
	if err != nil {
		return nil, err
	}
	return addedEmbed(res), nil
}

func (c *MusicCommand) voiceChannel(req request) (string, error) {
	channelID, err := c.Voice.UserVoiceChannel(req.GuildID, req.UserID)
	if err != nil || channelID == "" {
		return "", errNotInVoice
	}
	return channelID, nil
}

func (c *MusicCommand) nowPlaying(guildID, title string) *discordgo.MessageEmbed {
	view := c.Player.Queue(guildID, 0)
	if view.NowPlaying == nil {
		return command.NewEmbed(title, "").MessageEmbed
	}
	return command.NewEmbed(title, "Now playing "+trackLink(*view.NowPlaying)).MessageEmbed
}

func simple(err error, kind player.EventKind, text string) (*discordgo.MessageEmbed, error) {
	if err != nil {
		return nil, err
	}
	return command.NewEmbed(kind.StringEmoji()+" "+string(kind), text).MessageEmbed, nil
}
