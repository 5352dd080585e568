// Package jobmgr runs named long-lived jobs under a shared context with
// cancellation and in-memory tracking of what is running.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(ctx)
//	_ = jm.StartAsync("discord", bot.Run)
//	_ = jm.StartAsync("httpapi", api.Serve)
//	err := jm.Wait() // returns once every job ended
//
// A job that fails cancels the others, so one broken component stops the
// process instead of leaving it half alive.
package jobmgr

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

var (
	ErrRunning    = errors.New("job is already running")
	ErrNotRunning = errors.New("job is not running")
)

// Job represents a running unit of work.
type Job struct {
	Name   string
	Cancel context.CancelFunc
}

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
	errs []error
	wg   sync.WaitGroup
}

// NewManager creates a Manager whose jobs end when parent is done.
func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		log:    zlog.With().Str("component", "jobmgr").Logger(),
		jobs:   make(map[string]*Job),
	}
}

// StartAsync runs runner in its own goroutine. Names are unique among
// running jobs.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return errors.Wrapf(ErrRunning, "start %q", name)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.jobs[name] = &Job{Name: name, Cancel: cancel}
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer cancel()
		m.log.Debug().Str("job", name).Msg("running")

		err := runner(ctx)

		m.mu.Lock()
		delete(m.jobs, name)
		if err != nil {
			m.errs = append(m.errs, errors.Wrapf(err, "job %q", name))
		}
		m.mu.Unlock()

		if err != nil {
			m.log.Error().Err(err).Str("job", name).Msg("failed, stopping remaining jobs")
			m.cancel()
			return
		}
		m.log.Debug().Str("job", name).Msg("done")
	}()
	return nil
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return errors.Wrapf(ErrNotRunning, "stop %q", name)
	}
	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Done is closed once the manager's context is cancelled, by the parent or
// by a failing job.
func (m *Manager) Done() <-chan struct{} { return m.ctx.Done() }

// Shutdown cancels every job.
func (m *Manager) Shutdown() { m.cancel() }

// Wait blocks until every started job has returned and reports their
// errors combined.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	var all error
	for _, err := range m.errs {
		all = errors.CombineErrors(all, err)
	}
	return all
}
