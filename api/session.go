package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/openclaw/qrgen/studio"
)

const sessionCookie = "qrgen_session"

// SessionOptions configures how new sessions are built.
type SessionOptions struct {
	Encoder    studio.Encoder
	Controller studio.Config
	TTL        time.Duration
	// Clock stamps session activity and drives the sweeper. Defaults to
	// the real clock.
	Clock clockwork.Clock
	// Scheduler drives notification and animation timers. Defaults to a
	// studio.ClockScheduler on Clock.
	Scheduler studio.Scheduler
	// OnRender is called, with the session lock held, after each accepted
	// render.
	OnRender func(sessionID string, req studio.Request)
	Log      *slog.Logger
}

// Session is the server-side state of one open page. Events and timer
// callbacks for a session run under its lock, one at a time.
type Session struct {
	ID string

	mu        sync.Mutex
	ctrl      *studio.Controller
	text      *studio.MemTextField
	link      *studio.MemLink
	button    *studio.MemButton
	container *studio.MemContainer
	slot      *studio.MemSlot
	lastSeen  time.Time
}

// Do runs fn with the session locked and returns the resulting state.
func (s *Session) Do(fn func(ctrl *studio.Controller)) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		fn(s.ctrl)
	}
	return s.snapshotLocked()
}

// Run is Do without the state snapshot, so pending focus requests are
// left for the next state read.
func (s *Session) Run(fn func(ctrl *studio.Controller)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.ctrl)
}

// Sessions maps cookie IDs to sessions and expires idle ones.
type Sessions struct {
	opts      SessionOptions
	sessions  map[string]*Session
	mu        sync.Mutex
	startTime time.Time
}

// NewSessions returns an empty session table.
func NewSessions(opts SessionOptions) *Sessions {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = studio.ClockScheduler{Clock: opts.Clock}
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Sessions{
		opts:      opts,
		sessions:  make(map[string]*Session),
		startTime: opts.Clock.Now(),
	}
}

// Acquire returns the caller's session, creating it (and setting the
// cookie) when the request carries no known session ID.
func (m *Sessions) Acquire(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		m.mu.Lock()
		s, ok := m.sessions[c.Value]
		if ok {
			s.lastSeen = m.opts.Clock.Now()
		}
		m.mu.Unlock()
		if ok {
			return s
		}
	}

	s := m.create(uuid.NewString())
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

func (m *Sessions) create(id string) *Session {
	s := &Session{
		ID:        id,
		text:      &studio.MemTextField{},
		link:      &studio.MemLink{},
		button:    &studio.MemButton{},
		container: &studio.MemContainer{},
		slot:      &studio.MemSlot{},
		lastSeen:  m.opts.Clock.Now(),
	}

	cfg := m.opts.Controller
	cfg.Log = m.opts.Log.With("session", id)
	if m.opts.OnRender != nil {
		cfg.OnRender = func(req studio.Request) { m.opts.OnRender(id, req) }
	}
	s.ctrl = studio.NewController(studio.Widgets{
		Text:      s.text,
		Link:      s.link,
		Button:    s.button,
		Container: s.container,
		Slot:      s.slot,
	}, m.opts.Encoder, studio.Serialized(m.opts.Scheduler, &s.mu), cfg)
	s.ctrl.Start()

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.opts.Log.Debug("session created", "session", id)
	return s
}

// Len returns the number of live sessions.
func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Uptime returns how long the table has existed.
func (m *Sessions) Uptime() time.Duration {
	return m.opts.Clock.Since(m.startTime)
}

// Sweep removes sessions idle for longer than the TTL.
func (m *Sessions) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.opts.Clock.Now().Add(-m.opts.TTL)
	removed := 0
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (m *Sessions) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := m.opts.Clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.opts.Log.Info("session sweeper stopped")
				return
			case <-ticker.Chan():
				if n := m.Sweep(); n > 0 {
					m.opts.Log.Debug("expired idle sessions", "count", n)
				}
			}
		}
	}()
}
