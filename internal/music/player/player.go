// Package player keeps one playback session per guild and drives the voice
// transport through the Idle, Playing and Paused states.
//
// Stream resolution never runs under a session lock. An operation captures
// the session epoch, resolves, then applies its result only if the epoch is
// unchanged; every transition that invalidates in-flight work bumps it.
package player

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/resolver"
)

const (
	DefaultQueueView      = 10
	defaultResolveTimeout = 20 * time.Second
	defaultEventBuffer    = 64
)

var errNoQueryResolver = errors.New("no query resolver configured")

// StreamResolver produces a playable handle for a descriptor.
type StreamResolver interface {
	Resolve(ctx context.Context, desc media.Descriptor) (media.StreamHandle, error)
}

// QueryResolver turns user input into descriptors.
type QueryResolver interface {
	Resolve(ctx context.Context, raw string) (resolver.Result, error)
}

// HistoryRecorder is told about every track that starts playing.
type HistoryRecorder interface {
	RecordTrack(guildID string, d media.Descriptor) error
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	transport Transport
	streams   StreamResolver
	queries   QueryResolver
	history   HistoryRecorder

	events         chan Event
	shuffle        func(n int, swap func(i, j int))
	now            func() time.Time
	resolveTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

type Option func(*Manager)

func WithQueryResolver(q QueryResolver) Option { return func(m *Manager) { m.queries = q } }

func WithHistory(h HistoryRecorder) Option { return func(m *Manager) { m.history = h } }

// WithShuffle replaces the permutation source, e.g. a seeded rand.Shuffle.
func WithShuffle(f func(n int, swap func(i, j int))) Option {
	return func(m *Manager) { m.shuffle = f }
}

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithResolveTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.resolveTimeout = d
		}
	}
}

func WithEventBuffer(n int) Option {
	return func(m *Manager) { m.events = make(chan Event, max(n, 1)) }
}

func NewManager(transport Transport, streams StreamResolver, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		sessions:       make(map[string]*Session),
		transport:      transport,
		streams:        streams,
		events:         make(chan Event, defaultEventBuffer),
		shuffle:        rand.Shuffle,
		now:            time.Now,
		resolveTimeout: defaultResolveTimeout,
		ctx:            ctx,
		cancel:         cancel,
		log:            zlog.With().Str("component", "player").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events is the notification stream for all guilds.
func (m *Manager) Events() <-chan Event { return m.events }

func (m *Manager) session(guildID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[guildID]
}

func (m *Manager) getOrCreate(guildID string) *Session {
	if s := m.session(guildID); s != nil {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[guildID]; ok {
		return s
	}
	s := newSession(guildID)
	m.sessions[guildID] = s
	m.wg.Add(1)
	go m.loop(s)
	return s
}

// Guilds lists the guilds that currently have a session.
func (m *Manager) Guilds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Snapshot copies the guild's session. ok is false when none exists.
func (m *Manager) Snapshot(guildID string) (Snapshot, bool) {
	s := m.session(guildID)
	if s == nil {
		return Snapshot{GuildID: guildID}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), true
}

// QueueView is the current entry plus what follows it.
type QueueView struct {
	Snapshot
	NowPlaying *media.Descriptor
	Next       []media.Descriptor
	Remaining  int
}

// Queue returns the now-playing entry and up to count upcoming ones.
func (m *Manager) Queue(guildID string, count int) QueueView {
	if count <= 0 {
		count = DefaultQueueView
	}
	snap, _ := m.Snapshot(guildID)
	view := QueueView{Snapshot: snap}
	if cur, ok := snap.Current(); ok {
		view.NowPlaying = &cur
	}
	view.Next = snap.Upcoming(count)
	if snap.Cursor+1 < len(snap.Queue) {
		view.Remaining = len(snap.Queue) - snap.Cursor - 1 - len(view.Next)
	}
	return view
}

// SetTextChannel records where asynchronous notices for the guild go.
func (m *Manager) SetTextChannel(guildID, channelID string) {
	s := m.getOrCreate(guildID)
	s.mu.Lock()
	s.textChannelID = channelID
	s.mu.Unlock()
}

// Join connects to channelID, or moves an existing connection there.
func (m *Manager) Join(ctx context.Context, guildID, channelID string) error {
	s := m.getOrCreate(guildID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return media.ErrSuperseded
	}

	if s.conn != nil && s.conn.Connected() {
		if s.conn.ChannelID() == channelID {
			return nil
		}
		if err := s.conn.Move(ctx, channelID); err != nil {
			return media.TransportError("move", err)
		}
		m.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("moved voice connection")
		return nil
	}

	conn, err := m.transport.Connect(ctx, guildID, channelID)
	if err != nil {
		return media.TransportError("connect", err)
	}
	s.conn = conn
	m.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("joined voice channel")
	return nil
}

// PlayQuery joins the caller's channel, resolves query without holding any
// lock and enqueues the result.
func (m *Manager) PlayQuery(ctx context.Context, guildID, channelID, query string) (resolver.Result, error) {
	if m.queries == nil {
		return resolver.Result{}, media.ResolutionError("play", errNoQueryResolver)
	}
	if err := m.Join(ctx, guildID, channelID); err != nil {
		return resolver.Result{}, err
	}

	res, err := m.queries.Resolve(ctx, query)
	if err != nil {
		return resolver.Result{}, err
	}
	return res, m.Enqueue(ctx, guildID, res.Items...)
}

// Enqueue appends descs. An idle session with an entry under the cursor
// starts playing it; playing and paused sessions only grow their queue.
func (m *Manager) Enqueue(ctx context.Context, guildID string, descs ...media.Descriptor) error {
	if len(descs) == 0 {
		return nil
	}
	s := m.getOrCreate(guildID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return media.ErrSuperseded
	}
	wasActive := s.playing || s.paused
	s.queue = append(s.queue, descs...)
	m.emit(Event{Kind: EventAdded, GuildID: guildID, TextChannelID: s.textChannelID, Count: len(descs), Track: descs[0]})
	m.log.Debug().Str("guild", guildID).Int("added", len(descs)).Int("queue", len(s.queue)).Msg("enqueued")

	if wasActive || s.cursor >= len(s.queue) || s.conn == nil {
		s.mu.Unlock()
		return nil
	}
	c := s.captureAt(s.cursor)
	s.mu.Unlock()

	err := m.resolveAndPlay(ctx, s, c)
	if errors.Is(err, media.ErrSuperseded) {
		return nil
	}
	return err
}

// Play starts the entry under the cursor when idle, resumes when paused and
// does nothing when already playing.
func (m *Manager) Play(ctx context.Context, guildID string) error {
	s := m.session(guildID)
	if s == nil {
		return media.ErrQueueEmpty
	}

	s.mu.Lock()
	switch {
	case s.playing:
		s.mu.Unlock()
		return nil
	case s.paused:
		s.mu.Unlock()
		return m.Resume(guildID)
	case s.cursor >= len(s.queue):
		s.mu.Unlock()
		return media.ErrQueueEmpty
	case s.conn == nil:
		s.mu.Unlock()
		return media.ErrNotConnected
	}
	c := s.captureAt(s.cursor)
	s.mu.Unlock()

	return m.resolveAndPlay(ctx, s, c)
}

func (m *Manager) Pause(guildID string) error {
	s := m.session(guildID)
	if s == nil {
		return media.ErrNothingToPause
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return media.ErrNothingToPause
	}
	if err := s.conn.Pause(); err != nil {
		return media.TransportError("pause", err)
	}
	s.playing, s.paused = false, true
	m.emit(Event{Kind: EventPaused, GuildID: guildID, TextChannelID: s.textChannelID})
	return nil
}

func (m *Manager) Resume(guildID string) error {
	s := m.session(guildID)
	if s == nil {
		return media.ErrNothingToResume
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return media.ErrNothingToResume
	}
	if err := s.conn.Resume(); err != nil {
		return media.TransportError("resume", err)
	}
	s.playing, s.paused = true, false
	m.emit(Event{Kind: EventResumed, GuildID: guildID, TextChannelID: s.textChannelID})
	return nil
}

// Stop halts playback but keeps the queue and cursor. The flags are cleared
// even when the transport reports an error. An idle session with a play
// still resolving counts as playing: the pending result is discarded.
func (m *Manager) Stop(guildID string) error {
	s := m.session(guildID)
	if s == nil {
		return media.ErrNothingPlaying
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing && !s.paused {
		if s.pending == 0 {
			return media.ErrNothingPlaying
		}
		// a play is being resolved; drop it before it reaches the transport
		s.epoch++
		m.emit(Event{Kind: EventStopped, GuildID: guildID, TextChannelID: s.textChannelID})
		return nil
	}
	err := m.haltLocked(s)
	m.emit(Event{Kind: EventStopped, GuildID: guildID, TextChannelID: s.textChannelID})
	return media.TransportError("stop", err)
}

// Skip plays the next entry. The next stream is resolved first; if that
// fails the current playback carries on untouched.
func (m *Manager) Skip(ctx context.Context, guildID string) error {
	return m.step(ctx, guildID, +1, media.ErrNoNext)
}

// Previous is Skip in the other direction.
func (m *Manager) Previous(ctx context.Context, guildID string) error {
	return m.step(ctx, guildID, -1, media.ErrNoPrevious)
}

func (m *Manager) step(ctx context.Context, guildID string, delta int, noTarget error) error {
	s := m.session(guildID)
	if s == nil {
		return noTarget
	}

	s.mu.Lock()
	target := s.cursor + delta
	if target < 0 || target >= len(s.queue) {
		s.mu.Unlock()
		return noTarget
	}
	if s.conn == nil {
		s.mu.Unlock()
		return media.ErrNotConnected
	}
	c := s.captureAt(target)
	s.mu.Unlock()

	return m.resolveAndPlay(ctx, s, c)
}

// Shuffle permutes the entries after the cursor.
func (m *Manager) Shuffle(guildID string) error {
	s := m.session(guildID)
	if s == nil {
		return media.ErrNothingToShuffle
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rest := s.queue[min(s.cursor+1, len(s.queue)):]
	if len(rest) < 2 {
		return media.ErrNothingToShuffle
	}
	m.shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	s.epoch++
	return nil
}

// Clear stops playback and empties the queue. The connection is kept.
func (m *Manager) Clear(guildID string) error {
	s := m.session(guildID)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing || s.paused {
		if err := m.haltLocked(s); err != nil {
			m.log.Warn().Err(err).Str("guild", guildID).Msg("stop during clear failed")
		}
	}
	s.queue = nil
	s.cursor = 0
	s.lastErr = nil
	s.epoch++
	s.playID++
	return nil
}

// Leave disconnects and discards the guild's session.
func (m *Manager) Leave(guildID string) error {
	s := m.session(guildID)
	if s == nil {
		return media.ErrNotConnected
	}
	s.mu.Lock()
	connected := s.conn != nil
	s.mu.Unlock()

	m.Teardown(guildID)
	if !connected {
		return media.ErrNotConnected
	}
	return nil
}

// Teardown releases everything the guild holds. It is used when the voice
// channel empties and on Leave; calling it for an unknown guild is a no-op.
func (m *Manager) Teardown(guildID string) {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	delete(m.sessions, guildID)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.playing || s.paused {
		if err := m.haltLocked(s); err != nil {
			m.log.Warn().Err(err).Str("guild", guildID).Msg("stop during teardown failed")
		}
	}
	if s.conn != nil {
		if err := s.conn.Disconnect(); err != nil {
			m.log.Warn().Err(err).Str("guild", guildID).Msg("disconnect failed")
		}
		s.conn = nil
	}
	s.queue = nil
	s.cursor = 0
	s.lastErr = nil
	s.epoch++
	s.playID++
	s.closed = true
	close(s.done)

	m.log.Info().Str("guild", guildID).Msg("session torn down")
	m.emit(Event{Kind: EventTeardown, GuildID: guildID, TextChannelID: s.textChannelID})
}

// Close tears down every session and waits for their loops to exit.
func (m *Manager) Close() {
	for _, id := range m.Guilds() {
		m.Teardown(id)
	}
	m.cancel()
	m.wg.Wait()
}

// haltLocked stops the transport and invalidates the current stream.
func (m *Manager) haltLocked(s *Session) error {
	var err error
	if s.conn != nil {
		err = s.conn.Stop()
	}
	s.playing, s.paused = false, false
	s.epoch++
	s.playID++
	return err
}

// resolveAndPlay is the out-of-lock half of every play transition.
func (m *Manager) resolveAndPlay(ctx context.Context, s *Session, c capture) error {
	desc, err := m.resolveStream(ctx, c.desc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle()
	if s.stale(c) {
		return media.ErrSuperseded
	}
	if err != nil {
		m.log.Warn().Err(err).Str("guild", s.guildID).Str("track", c.desc.ID).Msg("stream resolution failed")
		return err
	}
	return m.playLocked(s, c.index, desc)
}

func (m *Manager) resolveStream(ctx context.Context, d media.Descriptor) (media.Descriptor, error) {
	if d.Stream.Usable(m.now()) {
		return d, nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.resolveTimeout)
	defer cancel()

	h, err := m.streams.Resolve(ctx, d)
	if err != nil {
		if media.KindOf(err) == media.KindUnknown {
			err = media.ResolutionError("resolve stream", err)
		}
		return d, err
	}
	if h.Duration == 0 {
		h.Duration = d.Duration
	}
	return d.WithStream(h), nil
}

// playLocked hands desc to the transport and moves the cursor to index.
func (m *Manager) playLocked(s *Session, index int, desc media.Descriptor) error {
	if s.conn == nil {
		return media.ErrNotConnected
	}
	if s.playing || s.paused {
		if err := s.conn.Stop(); err != nil {
			m.log.Warn().Err(err).Str("guild", s.guildID).Msg("stop before play failed")
		}
	}

	s.epoch++
	s.playID++
	id := s.playID
	if err := s.conn.Play(*desc.Stream, func() { s.postEOS(id) }); err != nil {
		s.playing, s.paused = false, false
		return media.TransportError("play", err)
	}

	s.queue[index] = desc
	s.cursor = index
	s.playing, s.paused = true, false
	s.lastErr = nil

	m.log.Info().Str("guild", s.guildID).Str("track", desc.ID).Str("parser", desc.Stream.Parser).Int("cursor", index).Msg("now playing")
	m.emit(Event{Kind: EventPlaying, GuildID: s.guildID, TextChannelID: s.textChannelID, Track: desc})
	if m.history != nil {
		if err := m.history.RecordTrack(s.guildID, desc.WithoutStream()); err != nil {
			m.log.Warn().Err(err).Str("guild", s.guildID).Msg("record history failed")
		}
	}
	return nil
}

// loop serialises end-of-stream handling for one session.
func (m *Manager) loop(s *Session) {
	defer m.wg.Done()
	for {
		select {
		case id := <-s.eos:
			m.advance(s, id)
		case <-s.done:
			return
		}
	}
}

// advance moves past a stream that ended on its own. Failures leave the
// session idle and are reported, never returned.
func (m *Manager) advance(s *Session, playID uint64) {
	s.mu.Lock()
	if s.closed || playID != s.playID {
		s.mu.Unlock()
		return
	}
	s.playing, s.paused = false, false
	s.epoch++

	if s.cursor+1 >= len(s.queue) {
		s.cursor = len(s.queue)
		m.log.Info().Str("guild", s.guildID).Msg("queue finished")
		m.emit(Event{Kind: EventQueueExhausted, GuildID: s.guildID, TextChannelID: s.textChannelID})
		s.mu.Unlock()
		return
	}
	s.cursor++
	c := s.captureAt(s.cursor)
	s.mu.Unlock()

	desc, err := m.resolveStream(m.ctx, c.desc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle()
	if s.stale(c) {
		return
	}
	if err == nil {
		err = m.playLocked(s, c.index, desc)
	}
	if err != nil {
		s.playing, s.paused = false, false
		s.lastErr = err
		m.log.Error().Err(err).Str("guild", s.guildID).Str("track", c.desc.ID).Msg("auto-advance failed")
		m.emit(Event{Kind: EventError, GuildID: s.guildID, TextChannelID: s.textChannelID, Track: c.desc, Err: err})
	}
}
