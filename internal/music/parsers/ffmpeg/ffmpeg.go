// Package ffmpeg decodes a stream URL into raw PCM suitable for Opus encoding.
package ffmpeg

import (
	"context"
	"io"
	"os/exec"
	"strconv"

	"github.com/cockroachdb/errors"
)

const (
	Channels   = 2
	SampleRate = 48000
	FrameSize  = 960 // 20ms at 48kHz

	// BytesPerSecond of the s16le output.
	BytesPerSecond = SampleRate * Channels * 2
)

// Decoder opens a PCM reader for link starting at seekSec.
type Decoder interface {
	Open(ctx context.Context, link string, seekSec float64) (io.ReadCloser, error)
}

// Exec runs the ffmpeg binary on PATH.
type Exec struct{}

// Open starts ffmpeg with reconnect flags and returns its stdout. Closing the
// reader kills the process.
func (Exec) Open(ctx context.Context, link string, seekSec float64) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.FormatFloat(seekSec, 'f', 3, 64),
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start ffmpeg")
	}
	return &process{ReadCloser: reader, cmd: cmd}, nil
}

type process struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (p *process) Close() error {
	_ = p.cmd.Process.Kill()
	err := p.ReadCloser.Close()
	_ = p.cmd.Wait()
	return err
}
