// Package session tracks who each browser session belongs to.
//
// A Store moves between loading, authenticated, unauthenticated, and guest.
// Explicit transitions (sign in, sign out, continue as guest) bump an epoch;
// a "who am I" load started under an older epoch is discarded when it
// completes, so a sign-out is never undone by a load that was already in
// flight.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusGuest           Status = "guest"
)

// State is a snapshot. User is non-nil only when Status is authenticated.
type State struct {
	Status   Status
	User     *leaseqa.User
	LoadedAt time.Time
}

func (s State) Authenticated() bool { return s.Status == StatusAuthenticated && s.User != nil }

// NeedsLoad reports whether the session should ask the backend again.
// Guest sessions are never reloaded; the visitor chose not to sign in.
func (s State) NeedsLoad(ttl time.Duration, now time.Time) bool {
	switch s.Status {
	case StatusLoading:
		return true
	case StatusGuest:
		return false
	default:
		return ttl <= 0 || now.Sub(s.LoadedAt) >= ttl
	}
}

// Ticket identifies the epoch a load was started under.
type Ticket uint64

type Store interface {
	State() State
	BeginLoad() Ticket
	// ResolveLoad applies a load result. It is discarded if an explicit
	// transition happened since t was issued.
	ResolveLoad(t Ticket, user *leaseqa.User, err error) State
	SignIn(user *leaseqa.User) State
	SignOut() State
	ContinueAsGuest() State
}

type MemoryStore struct {
	mu    sync.Mutex
	state State
	epoch uint64
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: State{Status: StatusLoading},
		now:   time.Now,
	}
}

func (s *MemoryStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *MemoryStore) BeginLoad() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Ticket(s.epoch)
}

func (s *MemoryStore) ResolveLoad(t Ticket, user *leaseqa.User, err error) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uint64(t) != s.epoch {
		return s.state
	}
	if err != nil || user == nil {
		s.state = State{Status: StatusUnauthenticated, LoadedAt: s.now()}
		return s.state
	}
	s.state = State{Status: StatusAuthenticated, User: user, LoadedAt: s.now()}
	return s.state
}

func (s *MemoryStore) transition(st State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	st.LoadedAt = s.now()
	s.state = st
	return s.state
}

func (s *MemoryStore) SignIn(user *leaseqa.User) State {
	if user == nil {
		return s.SignOut()
	}
	return s.transition(State{Status: StatusAuthenticated, User: user})
}

func (s *MemoryStore) SignOut() State {
	return s.transition(State{Status: StatusUnauthenticated})
}

func (s *MemoryStore) ContinueAsGuest() State {
	return s.transition(State{Status: StatusGuest})
}

// Loader fetches the current user from the backend.
type Loader func(ctx context.Context) (*leaseqa.User, error)

// Load runs one who-am-I round trip against st.
func Load(ctx context.Context, st Store, load Loader) (State, error) {
	t := st.BeginLoad()
	user, err := load(ctx)
	if errors.Is(err, context.Canceled) {
		// The visitor went away; leave the session as it was.
		return st.State(), err
	}
	return st.ResolveLoad(t, user, err), err
}
