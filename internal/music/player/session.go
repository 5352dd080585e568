package player

import (
	"context"
	"slices"
	"sync"

	"github.com/keshon/domme-music/internal/music/media"
)

// Transport opens voice connections.
type Transport interface {
	Connect(ctx context.Context, guildID, channelID string) (Connection, error)
}

// Connection is a live voice connection for one guild. Play must not block
// on the stream; onEnded is called once, only when the stream reaches its
// natural end, and never after Stop.
type Connection interface {
	ChannelID() string
	Connected() bool
	Move(ctx context.Context, channelID string) error
	Play(h media.StreamHandle, onEnded func()) error
	Pause() error
	Resume() error
	Stop() error
	Disconnect() error
}

type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Session is the playback state of one guild. All fields are guarded by mu.
type Session struct {
	guildID string

	mu            sync.Mutex
	queue         []media.Descriptor
	cursor        int
	playing       bool
	paused        bool
	conn          Connection
	lastErr       error
	epoch         uint64
	playID        uint64
	pending       int // resolutions in flight

	textChannelID string
	closed        bool

	eos  chan uint64
	done chan struct{}
}

func newSession(guildID string) *Session {
	return &Session{
		guildID: guildID,
		eos:     make(chan uint64, 8),
		done:    make(chan struct{}),
	}
}

func (s *Session) state() State {
	switch {
	case s.playing:
		return StatePlaying
	case s.paused:
		return StatePaused
	default:
		return StateIdle
	}
}

// postEOS hands an end-of-stream notice to the session loop. It is safe to
// call from transport goroutines at any time.
func (s *Session) postEOS(playID uint64) {
	select {
	case s.eos <- playID:
	case <-s.done:
	}
}

// capture records what an out-of-lock resolution is working towards.
type capture struct {
	epoch uint64
	index int
	desc  media.Descriptor
}

func (s *Session) captureAt(index int) capture {
	s.pending++
	return capture{epoch: s.epoch, index: index, desc: s.queue[index]}
}

// settle marks the resolution started by captureAt as finished.
func (s *Session) settle() {
	s.pending--
}

// stale reports whether the session moved on since c was taken.
func (s *Session) stale(c capture) bool {
	return s.closed || s.epoch != c.epoch
}

// Snapshot is an immutable copy of a session.
type Snapshot struct {
	GuildID       string
	Queue         []media.Descriptor
	Cursor        int
	State         State
	Playing       bool
	Paused        bool
	Connected     bool
	ChannelID     string
	TextChannelID string
	LastError     error
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		GuildID:       s.guildID,
		Queue:         slices.Clone(s.queue),
		Cursor:        s.cursor,
		State:         s.state(),
		Playing:       s.playing,
		Paused:        s.paused,
		TextChannelID: s.textChannelID,
		LastError:     s.lastErr,
	}
	if s.conn != nil {
		snap.Connected = s.conn.Connected()
		snap.ChannelID = s.conn.ChannelID()
	}
	return snap
}

// Current returns the entry under the cursor, if any.
func (s Snapshot) Current() (media.Descriptor, bool) {
	if s.Cursor < 0 || s.Cursor >= len(s.Queue) {
		return media.Descriptor{}, false
	}
	return s.Queue[s.Cursor], true
}

// Upcoming returns up to count entries after the cursor.
func (s Snapshot) Upcoming(count int) []media.Descriptor {
	start := s.Cursor + 1
	if start >= len(s.Queue) || count <= 0 {
		return nil
	}
	end := min(start+count, len(s.Queue))
	return s.Queue[start:end]
}

// Exhausted reports whether the cursor ran past the last entry.
func (s Snapshot) Exhausted() bool {
	return len(s.Queue) > 0 && s.Cursor >= len(s.Queue)
}
