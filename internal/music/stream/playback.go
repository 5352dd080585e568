package stream

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/internal/music/parsers/ffmpeg"
)

var errStopped = errors.New("playback stopped")

// encoder is satisfied by *gopus.Encoder.
type encoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// playback controls one running stream: it can be paused, resumed and stopped
// from other goroutines while run pumps frames.
type playback struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}
	stopped  bool

	done chan struct{}
}

func newPlayback(parent context.Context) *playback {
	ctx, cancel := context.WithCancel(parent)
	return &playback{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (p *playback) pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.paused = true
		p.resumeCh = make(chan struct{})
	}
}

func (p *playback) resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		close(p.resumeCh)
	}
}

func (p *playback) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cancel()
}

func (p *playback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// waitIfPaused blocks while paused. It returns false once stopped.
func (p *playback) waitIfPaused() bool {
	for {
		p.mu.Lock()
		if !p.paused {
			p.mu.Unlock()
			return p.ctx.Err() == nil
		}
		ch := p.resumeCh
		p.mu.Unlock()

		select {
		case <-ch:
		case <-p.ctx.Done():
			return false
		}
	}
}

// run encodes 20ms PCM frames from r into Opus and sends them to out. It
// returns nil when r is exhausted and errStopped when stopped.
func (p *playback) run(r io.Reader, enc encoder, out chan<- []byte) error {
	pcmBuf := make([]byte, ffmpeg.FrameSize*ffmpeg.Channels*2)
	intBuf := make([]int16, ffmpeg.FrameSize*ffmpeg.Channels)

	for {
		if !p.waitIfPaused() {
			return errStopped
		}

		_, err := io.ReadFull(r, pcmBuf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if p.ctx.Err() != nil {
				return errStopped
			}
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read pcm")
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}
		frame, err := enc.Encode(intBuf, ffmpeg.FrameSize, len(pcmBuf))
		if err != nil {
			return errors.Wrap(err, "encode opus")
		}

		select {
		case out <- frame:
		case <-p.ctx.Done():
			return errStopped
		}
	}
}
