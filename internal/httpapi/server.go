// Package httpapi serves a read-only view of the playback sessions.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/keshon/domme-music/internal/music/media"
	"github.com/keshon/domme-music/internal/music/player"
)

const shutdownTimeout = 5 * time.Second

// Sessions is the read side of player.Manager.
type Sessions interface {
	Guilds() []string
	Snapshot(guildID string) (player.Snapshot, bool)
}

type Server struct {
	sessions Sessions
	engine   *gin.Engine
	log      zerolog.Logger
}

func New(sessions Sessions) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		sessions: sessions,
		engine:   gin.New(),
		log:      zlog.With().Str("component", "httpapi").Logger(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/guilds", s.listGuilds)
	s.engine.GET("/guilds/:id/session", s.session)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP API failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": len(s.sessions.Guilds())})
}

func (s *Server) listGuilds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"guilds": s.sessions.Guilds()})
}

func (s *Server) session(c *gin.Context) {
	snap, ok := s.sessions.Snapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for guild"})
		return
	}
	c.JSON(http.StatusOK, toSessionDTO(snap))
}

type trackDTO struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist,omitempty"`
	URL             string  `json:"url"`
	Thumbnail       string  `json:"thumbnail,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type sessionDTO struct {
	GuildID   string     `json:"guild_id"`
	State     string     `json:"state"`
	Cursor    int        `json:"cursor"`
	Exhausted bool       `json:"exhausted"`
	Connected bool       `json:"connected"`
	ChannelID string     `json:"channel_id,omitempty"`
	Current   *trackDTO  `json:"current,omitempty"`
	Queue     []trackDTO `json:"queue"`
	LastError string     `json:"last_error,omitempty"`
}

// toTrackDTO leaves out the stream handle: its URL is a signed credential.
func toTrackDTO(d media.Descriptor) trackDTO {
	return trackDTO{
		ID:              d.ID,
		Title:           d.Title,
		Artist:          d.Artist,
		URL:             d.SourceURL,
		Thumbnail:       d.ThumbnailURL,
		DurationSeconds: d.Duration.Seconds(),
	}
}

func toSessionDTO(snap player.Snapshot) sessionDTO {
	dto := sessionDTO{
		GuildID:   snap.GuildID,
		State:     snap.State.String(),
		Cursor:    snap.Cursor,
		Exhausted: snap.Exhausted(),
		Connected: snap.Connected,
		ChannelID: snap.ChannelID,
		Queue:     make([]trackDTO, 0, len(snap.Queue)),
	}
	for _, d := range snap.Queue {
		dto.Queue = append(dto.Queue, toTrackDTO(d))
	}
	if cur, ok := snap.Current(); ok {
		t := toTrackDTO(cur)
		dto.Current = &t
	}
	if snap.LastError != nil {
		dto.LastError = snap.LastError.Error()
	}
	return dto
}
