package media

import (
	"github.com/cockroachdb/errors"
)

// Kind classifies a failure by who has to act on it.
type Kind int

const (
	KindUnknown      Kind = iota
	KindInput             // malformed query or link
	KindResolution        // lookup or stream extraction failed
	KindTransport         // voice connection or playback call failed
	KindPrecondition      // command not valid in the current state
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindResolution:
		return "resolution"
	case KindTransport:
		return "transport"
	case KindPrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// Error is the single error type surfaced by the music packages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Precondition failures that commands report verbatim.
var (
	ErrNothingToPause   = precondition("nothing to pause")
	ErrNothingToResume  = precondition("nothing to resume")
	ErrNothingPlaying   = precondition("nothing is playing")
	ErrNoNext           = precondition("no next item")
	ErrNoPrevious       = precondition("no previous item")
	ErrNothingToShuffle = precondition("nothing to shuffle")
	ErrQueueEmpty       = precondition("queue is empty")
	ErrNotConnected     = precondition("not connected to a voice channel")
	ErrSuperseded       = precondition("request superseded by a newer command")
)

func precondition(msg string) *Error {
	return &Error{Kind: KindPrecondition, Err: errors.New(msg)}
}

func newError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// InputError wraps err as a user input failure.
func InputError(op string, err error) error { return newError(KindInput, op, err) }

// ResolutionError wraps err as a lookup or extraction failure.
func ResolutionError(op string, err error) error { return newError(KindResolution, op, err) }

// TransportError wraps err as a voice transport failure.
func TransportError(op string, err error) error { return newError(KindTransport, op, err) }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindUnknown
}

func IsInput(err error) bool        { return KindOf(err) == KindInput }
func IsResolution(err error) bool   { return KindOf(err) == KindResolution }
func IsTransport(err error) bool    { return KindOf(err) == KindTransport }
func IsPrecondition(err error) bool { return KindOf(err) == KindPrecondition }
