package stream

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/parsers/ffmpeg"
)

// scriptedDecoder hands out one reader per Open, each holding the given
// number of seconds of silence.
type scriptedDecoder struct {
	mu     sync.Mutex
	chunks []float64
	seeks  []float64
	err    error
}

func (d *scriptedDecoder) Open(_ context.Context, _ string, seek float64) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seeks = append(d.seeks, seek)
	if d.err != nil {
		return nil, d.err
	}
	var secs float64
	if len(d.chunks) > 0 {
		secs, d.chunks = d.chunks[0], d.chunks[1:]
	}
	return io.NopCloser(bytes.NewReader(make([]byte, int(secs*ffmpeg.BytesPerSecond)))), nil
}

func TestRecoveryReopensPrematureEnd(t *testing.T) {
	dec := &scriptedDecoder{chunks: []float64{2, 3, 5}}
	rs := NewRecoveryStream(context.Background(), dec, media.StreamHandle{URL: "x", Duration: 10 * time.Second})
	require.NoError(t, rs.Open())

	n, err := io.Copy(io.Discard, rs)
	require.NoError(t, err)
	assert.EqualValues(t, 10*ffmpeg.BytesPerSecond, n)
	assert.InDeltaSlice(t, []float64{0, 2, 5}, dec.seeks, 1e-6)
	assert.InDelta(t, 10.0, rs.Position().Seconds(), 1e-6)
}

func TestRecoveryStopsAtKnownEnd(t *testing.T) {
	dec := &scriptedDecoder{chunks: []float64{9}}
	rs := NewRecoveryStream(context.Background(), dec, media.StreamHandle{URL: "x", Duration: 10 * time.Second})
	require.NoError(t, rs.Open())

	_, err := io.Copy(io.Discard, rs)
	require.NoError(t, err)
	assert.Len(t, dec.seeks, 1, "within tolerance of the known duration")
}

func TestRecoveryGivesUp(t *testing.T) {
	dec := &scriptedDecoder{chunks: []float64{1, 1, 1, 1, 1, 1}}
	rs := NewRecoveryStream(context.Background(), dec, media.StreamHandle{URL: "x", Duration: time.Minute})
	require.NoError(t, rs.Open())

	_, err := io.Copy(io.Discard, rs)
	require.NoError(t, err)
	assert.Len(t, dec.seeks, 1+maxRecoveryAttempts)
}

func TestRecoveryUnknownDuration(t *testing.T) {
	dec := &scriptedDecoder{chunks: []float64{4, 0}}
	rs := NewRecoveryStream(context.Background(), dec, media.StreamHandle{URL: "x"})
	require.NoError(t, rs.Open())

	_, err := io.Copy(io.Discard, rs)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 4}, dec.seeks, 1e-6, "an empty reopen ends the stream")
}

func TestRecoveryOpenError(t *testing.T) {
	rs := NewRecoveryStream(context.Background(), &scriptedDecoder{err: errors.New("ffmpeg missing")}, media.StreamHandle{URL: "x"})
	assert.ErrorContains(t, rs.Open(), "ffmpeg missing")

	_, err := rs.Read(make([]byte, 4))
	assert.Error(t, err)
}

type countingEncoder struct{ frames int }

func (e *countingEncoder) Encode(pcm []int16, frameSize, _ int) ([]byte, error) {
	e.frames++
	return []byte{byte(frameSize / 10)}, nil
}

func frameBytes(n int) []byte {
	return make([]byte, n*ffmpeg.FrameSize*ffmpeg.Channels*2)
}

func TestPlaybackRunsToEnd(t *testing.T) {
	pb := newPlayback(context.Background())
	enc := &countingEncoder{}
	out := make(chan []byte, 10)

	err := pb.run(bytes.NewReader(frameBytes(3)), enc, out)
	require.NoError(t, err)
	assert.Equal(t, 3, enc.frames)
	assert.Len(t, out, 3)
}

func TestPlaybackStop(t *testing.T) {
	pb := newPlayback(context.Background())
	out := make(chan []byte) // nobody reads, so run blocks on send

	done := make(chan error, 1)
	go func() { done <- pb.run(bytes.NewReader(frameBytes(5)), &countingEncoder{}, out) }()

	pb.stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, errStopped)
	case <-time.After(time.Second):
		t.Fatal("run did not return after stop")
	}
	assert.True(t, pb.wasStopped())
}

func TestPlaybackPauseResume(t *testing.T) {
	pb := newPlayback(context.Background())
	enc := &countingEncoder{}
	out := make(chan []byte, 10)
	pb.pause()

	done := make(chan error, 1)
	go func() { done <- pb.run(bytes.NewReader(frameBytes(2)), enc, out) }()

	assert.Never(t, func() bool { return len(out) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	pb.resume()
	pb.resume()

	require.NoError(t, <-done)
	assert.Len(t, out, 2)
}

func TestPlaybackStopWhilePaused(t *testing.T) {
	pb := newPlayback(context.Background())
	pb.pause()

	done := make(chan error, 1)
	go func() { done <- pb.run(bytes.NewReader(frameBytes(2)), &countingEncoder{}, make(chan []byte, 2)) }()

	pb.stop()
	assert.ErrorIs(t, <-done, errStopped)
}
