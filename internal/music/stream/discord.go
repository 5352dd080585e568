// Package stream is the Discord voice transport: it decodes stream handles
// with ffmpeg, encodes Opus with gopus and feeds the voice connection.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"layeh.com/gopus"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/parsers/ffmpeg"
	"github.com/keshon/domme-music/internal/music/player"
)

const stopWait = 5 * time.Second

var (
	ErrNotReady    = errors.New("voice connection is not ready")
	ErrNoPlayback  = errors.New("nothing is streaming")
	errStopTimeout = errors.New("playback did not stop in time")
)

// Transport joins voice channels through a discordgo session.
type Transport struct {
	dg      *discordgo.Session
	decoder ffmpeg.Decoder
}

func NewTransport(dg *discordgo.Session, decoder ffmpeg.Decoder) *Transport {
	if decoder == nil {
		decoder = ffmpeg.Exec{}
	}
	return &Transport{dg: dg, decoder: decoder}
}

func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (player.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := t.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, errors.Wrapf(err, "join voice channel %s", channelID)
	}
	return &voiceConn{
		vc:      vc,
		decoder: t.decoder,
		log:     zlog.With().Str("component", "voice").Str("guild", guildID).Logger(),
	}, nil
}

type voiceConn struct {
	vc      *discordgo.VoiceConnection
	decoder ffmpeg.Decoder
	log     zerolog.Logger

	mu      sync.Mutex
	current *playback
}

func (c *voiceConn) ChannelID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.ChannelID
}

func (c *voiceConn) Connected() bool {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.Ready
}

func (c *voiceConn) Move(_ context.Context, channelID string) error {
	return errors.Wrap(c.vc.ChangeChannel(channelID, false, true), "change channel")
}

// Play starts streaming h in the background. onEnded runs when the audio
// runs out, including after recovery gave up, but never after Stop.
func (c *voiceConn) Play(h media.StreamHandle, onEnded func()) error {
	if !c.Connected() {
		return ErrNotReady
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		if err := c.halt(c.current); err != nil {
			c.log.Warn().Err(err).Msg("previous playback still running")
		}
	}

	pb := newPlayback(context.Background())
	c.current = pb
	go func() {
		defer close(pb.done)
		err := c.stream(pb, h)
		if pb.wasStopped() {
			return
		}
		if err != nil && !errors.Is(err, errStopped) {
			c.log.Error().Err(err).Str("parser", h.Parser).Msg("stream failed")
		}
		onEnded()
	}()
	return nil
}

func (c *voiceConn) stream(pb *playback, h media.StreamHandle) error {
	rs := NewRecoveryStream(pb.ctx, c.decoder, h)
	if err := rs.Open(); err != nil {
		return err
	}
	defer rs.Close()

	enc, err := gopus.NewEncoder(ffmpeg.SampleRate, ffmpeg.Channels, gopus.Audio)
	if err != nil {
		return errors.Wrap(err, "opus encoder")
	}

	if err := c.vc.Speaking(true); err != nil {
		c.log.Debug().Err(err).Msg("speaking on failed")
	}
	defer func() {
		if err := c.vc.Speaking(false); err != nil {
			c.log.Debug().Err(err).Msg("speaking off failed")
		}
	}()

	err = pb.run(rs, enc, c.vc.OpusSend)
	c.log.Debug().Dur("position", rs.Position()).Msg("stream finished")
	return err
}

func (c *voiceConn) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ErrNoPlayback
	}
	c.current.pause()
	return nil
}

func (c *voiceConn) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return ErrNoPlayback
	}
	c.current.resume()
	return nil
}

func (c *voiceConn) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	err := c.halt(c.current)
	c.current = nil
	return err
}

// halt stops pb and waits for its goroutine to exit.
func (c *voiceConn) halt(pb *playback) error {
	pb.stop()
	select {
	case <-pb.done:
		return nil
	case <-time.After(stopWait):
		return errStopTimeout
	}
}

func (c *voiceConn) Disconnect() error {
	if err := c.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("stop before disconnect failed")
	}
	return errors.Wrap(c.vc.Disconnect(), "disconnect")
}
