// Package storage keeps per-guild records in the datastore: the command log
// and the recently played tracks.
package storage

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/keshon/domme-music/datastore"
	"github.com/keshon/domme-music/internal/music/media"
)

const (
	commandHistoryLimit int = 20
	tracksHistoryLimit  int = 12
)

type Storage struct {
	ds  *datastore.DataStore
	now func() time.Time

	// serialises read-modify-write of guild records
	mu sync.Mutex
}

type CommandHistoryRecord struct {
	InvocationID string    `json:"invocation_id"`
	ChannelID    string    `json:"channel_id"`
	ChannelName  string    `json:"channel_name"`
	GuildName    string    `json:"guild_name"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Command      string    `json:"command"`
	Param        string    `json:"param"`
	Error        string    `json:"error,omitempty"`
	Datetime     time.Time `json:"datetime"`
}

type TrackHistoryRecord struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Artist    string        `json:"artist,omitempty"`
	SourceURL string        `json:"source_url"`
	Duration  time.Duration `json:"duration"`
	PlayedAt  time.Time     `json:"played_at"`
}

type Record struct {
	CommandsHistoryList []CommandHistoryRecord `json:"cmd_history"`
	TracksHistoryList   []TrackHistoryRecord   `json:"tracks_history"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds, now: time.Now}, nil
}

// NewWithStore wraps an already opened datastore.
func NewWithStore(ds *datastore.DataStore) *Storage {
	return &Storage{ds: ds, now: time.Now}
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) guildRecord(guildID string) (*Record, error) {
	var record Record
	if _, err := s.ds.Get(guildID, &record); err != nil {
		return nil, errors.Wrapf(err, "load record for guild %s", guildID)
	}
	return &record, nil
}

// update applies fn to the guild's record and stores the result.
func (s *Storage) update(guildID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.guildRecord(guildID)
	if err != nil {
		return err
	}
	fn(record)
	return s.ds.Put(guildID, record)
}

// AppendCommandToHistory appends a command history record for a guild,
// keeping the newest entries.
func (s *Storage) AppendCommandToHistory(guildID string, command CommandHistoryRecord) error {
	if command.Datetime.IsZero() {
		command.Datetime = s.now()
	}
	return s.update(guildID, func(r *Record) {
		r.CommandsHistoryList = keepLast(append(r.CommandsHistoryList, command), commandHistoryLimit)
	})
}

func (s *Storage) FetchCommandHistory(guildID string) ([]CommandHistoryRecord, error) {
	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistoryList, nil
}

// RecordTrack notes that d started playing in the guild.
func (s *Storage) RecordTrack(guildID string, d media.Descriptor) error {
	entry := TrackHistoryRecord{
		ID:        d.ID,
		Title:     d.Title,
		Artist:    d.Artist,
		SourceURL: d.SourceURL,
		Duration:  d.Duration,
		PlayedAt:  s.now(),
	}
	return s.update(guildID, func(r *Record) {
		r.TracksHistoryList = keepLast(append(r.TracksHistoryList, entry), tracksHistoryLimit)
	})
}

// FetchTrackHistory returns recently played tracks, oldest first.
func (s *Storage) FetchTrackHistory(guildID string) ([]TrackHistoryRecord, error) {
	record, err := s.guildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.TracksHistoryList, nil
}

func keepLast[T any](list []T, limit int) []T {
	if len(list) > limit {
		return list[len(list)-limit:]
	}
	return list
}
