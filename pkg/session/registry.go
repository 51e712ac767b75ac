package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

// Entry is one browser session: its state and the cookies the backend
// issued to it.
type Entry struct {
	ID    string
	Store Store
	Jar   http.CookieJar

	mu       sync.Mutex
	lastSeen time.Time
}

func (e *Entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
}

func (e *Entry) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen
}

// Registry maps browser-session cookie values to entries and evicts
// entries idle for longer than the configured duration.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	idle    time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewRegistry(idle time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*Entry),
		idle:    idle,
		now:     time.Now,
		logger:  logger,
	}
}

// Get returns the entry for id and marks it as seen.
func (r *Registry) Get(id string) (*Entry, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.touch(r.now())
	return e, true
}

// Create starts a fresh session in the loading state.
func (r *Registry) Create() (*Entry, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	e := &Entry{
		ID:       uuid.NewString(),
		Store:    NewMemoryStore(),
		Jar:      jar,
		lastSeen: r.now(),
	}

	r.mu.Lock()
	r.entries[e.ID] = e
	r.mu.Unlock()
	return e, nil
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Sweep evicts idle entries and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		if e.idleSince().Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.DebugContext(ctx, "evicted idle sessions",
					slog.Int("count", n),
					slog.Int("remaining", r.Len()))
			}
		}
	}
}
