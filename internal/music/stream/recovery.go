package stream

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/parsers/ffmpeg"
)

const (
	maxRecoveryAttempts = 3
	// endTolerance is how close to the known duration an EOF counts as the real end.
	endTolerance = 3 * time.Second
)

// RecoveryStream reads PCM for one handle and reopens the decoder at the
// current position when the stream ends before it should.
type RecoveryStream struct {
	ctx      context.Context
	decoder  ffmpeg.Decoder
	handle   media.StreamHandle
	rc       io.ReadCloser
	pos      float64 // seconds of audio delivered so far
	fresh    int64   // bytes read since the last open
	attempts int
	log      zerolog.Logger
}

func NewRecoveryStream(ctx context.Context, decoder ffmpeg.Decoder, h media.StreamHandle) *RecoveryStream {
	return &RecoveryStream{
		ctx:     ctx,
		decoder: decoder,
		handle:  h,
		log:     zlog.With().Str("component", "stream").Str("parser", h.Parser).Logger(),
	}
}

// Open starts decoding from the beginning.
func (rs *RecoveryStream) Open() error {
	return rs.openAt(0)
}

func (rs *RecoveryStream) openAt(seek float64) error {
	rc, err := rs.decoder.Open(rs.ctx, rs.handle.URL, seek)
	if err != nil {
		return errors.Wrap(err, "open decoder")
	}
	rs.rc = rc
	rs.pos = seek
	rs.fresh = 0
	return nil
}

func (rs *RecoveryStream) Read(p []byte) (int, error) {
	if rs.rc == nil {
		return 0, errors.New("stream not opened")
	}

	n, err := rs.rc.Read(p)
	rs.pos += float64(n) / ffmpeg.BytesPerSecond
	rs.fresh += int64(n)
	if err == nil || n > 0 {
		return n, nil
	}

	if rs.ctx.Err() != nil || !rs.premature() || rs.attempts >= maxRecoveryAttempts {
		if !errors.Is(err, io.EOF) {
			rs.log.Warn().Err(err).Msg("stream read failed")
		}
		return 0, io.EOF
	}

	rs.attempts++
	rs.log.Warn().Err(err).Int("attempt", rs.attempts).Float64("at", rs.pos).Msg("stream ended prematurely, reopening")
	_ = rs.rc.Close()
	if err := rs.openAt(rs.pos); err != nil {
		rs.log.Error().Err(err).Msg("stream recovery failed")
		return 0, io.EOF
	}
	return rs.Read(p)
}

// premature reports whether the decoder stopped short of the known
// duration. Without one, a reopen that produced audio earns another try.
func (rs *RecoveryStream) premature() bool {
	if d := rs.handle.Duration; d > 0 {
		return time.Duration(rs.pos*float64(time.Second)) < d-endTolerance
	}
	return rs.fresh > 0
}

// Position is the playback position reached so far.
func (rs *RecoveryStream) Position() time.Duration {
	return time.Duration(rs.pos * float64(time.Second))
}

func (rs *RecoveryStream) Close() error {
	if rs.rc == nil {
		return nil
	}
	return rs.rc.Close()
}
