package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/meibo-check/internal/notify"
	"github.com/example/meibo-check/internal/prediction"
	"github.com/example/meibo-check/internal/submission"
)

// Session pairs a user's controller with the toasts waiting to be shown.
type Session struct {
	Controller *submission.Controller
	Toasts     *notify.Queue
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Registry hands out one Session per user. Sessions stay in memory until
// Sweep drops them for being idle.
type Registry struct {
	client  prediction.Client
	logSink notify.Sink
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry builds a registry whose sessions share client and log to logger.
func NewRegistry(client prediction.Client, logger *zap.Logger) *Registry {
	return &Registry{
		client:   client,
		logSink:  notify.NewLogSink(logger),
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Get returns the session for userID, creating it on first use, and marks it
// as recently used.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[userID]; ok {
		e.lastSeen = r.now()
		return e.session
	}
	toasts := notify.NewQueue(notify.DefaultQueueCapacity)
	s := &Session{
		Controller: submission.NewController(
			r.client,
			notify.Fanout{toasts, r.logSink},
			r.logger.With(zap.String("user_id", userID)),
		),
		Toasts: toasts,
	}
	r.sessions[userID] = &entry{session: s, lastSeen: r.now()}
	return s
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions not used for longer than idle. Sessions with a
// prediction in flight are kept. It returns the number of sessions removed.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	removed := 0
	for userID, e := range r.sessions {
		if e.lastSeen.After(cutoff) || e.session.Controller.Snapshot().InFlight() {
			continue
		}
		delete(r.sessions, userID)
		removed++
	}
	if removed > 0 {
		r.logger.Info("evicted idle sessions", zap.Int("removed", removed), zap.Int("remaining", len(r.sessions)))
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}
