package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeyer/leaseqa/pkg/leaseqa"
)

var tess = &leaseqa.User{ID: "u1", Name: "Tess", Role: leaseqa.RoleTenant}

func TestInitialStateIsLoading(t *testing.T) {
	s := NewMemoryStore()
	st := s.State()
	assert.Equal(t, StatusLoading, st.Status)
	assert.Nil(t, st.User)
	assert.True(t, st.NeedsLoad(time.Minute, time.Now()))
}

func TestLoadTransitions(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := NewMemoryStore()
		st, err := Load(context.Background(), s, func(context.Context) (*leaseqa.User, error) {
			return tess, nil
		})
		require.NoError(t, err)
		assert.Equal(t, StatusAuthenticated, st.Status)
		assert.True(t, st.Authenticated())
		assert.Equal(t, "u1", st.User.ID)
	})

	t.Run("failure", func(t *testing.T) {
		s := NewMemoryStore()
		st, err := Load(context.Background(), s, func(context.Context) (*leaseqa.User, error) {
			return nil, errors.New("401")
		})
		require.Error(t, err)
		assert.Equal(t, StatusUnauthenticated, st.Status)
		assert.Nil(t, st.User)
	})

	t.Run("canceled leaves state", func(t *testing.T) {
		s := NewMemoryStore()
		st, err := Load(context.Background(), s, func(context.Context) (*leaseqa.User, error) {
			return nil, context.Canceled
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StatusLoading, st.Status)
	})
}

func TestSignOutWinsOverPendingLoad(t *testing.T) {
	outcomes := map[string]struct {
		user *leaseqa.User
		err  error
	}{
		"load succeeds": {user: tess},
		"load fails":    {err: errors.New("backend down")},
	}

	for name, outcome := range outcomes {
		t.Run(name, func(t *testing.T) {
			s := NewMemoryStore()
			s.SignIn(tess)

			ticket := s.BeginLoad()
			s.SignOut()
			st := s.ResolveLoad(ticket, outcome.user, outcome.err)

			assert.Equal(t, StatusUnauthenticated, st.Status)
			assert.Nil(t, st.User)
			assert.Equal(t, StatusUnauthenticated, s.State().Status)
		})
	}
}

func TestSignOutWinsConcurrently(t *testing.T) {
	s := NewMemoryStore()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan State)

	go func() {
		st, _ := Load(context.Background(), s, func(context.Context) (*leaseqa.User, error) {
			close(started)
			<-release
			return tess, nil
		})
		done <- st
	}()

	<-started
	s.SignOut()
	close(release)

	<-done
	assert.Equal(t, StatusUnauthenticated, s.State().Status)
}

func TestGuestAndSignIn(t *testing.T) {
	s := NewMemoryStore()

	st := s.ContinueAsGuest()
	assert.Equal(t, StatusGuest, st.Status)
	assert.Nil(t, st.User)
	assert.False(t, st.NeedsLoad(time.Nanosecond, time.Now().Add(time.Hour)))

	st = s.SignIn(tess)
	assert.Equal(t, StatusAuthenticated, st.Status)

	st = s.SignIn(nil)
	assert.Equal(t, StatusUnauthenticated, st.Status)
}

func TestStaleLoadAfterSignIn(t *testing.T) {
	s := NewMemoryStore()
	ticket := s.BeginLoad()
	s.SignIn(tess)

	st := s.ResolveLoad(ticket, nil, errors.New("no cookie yet"))
	assert.Equal(t, StatusAuthenticated, st.Status, "stale failure must not log the user out")
}

func TestNeedsLoad(t *testing.T) {
	now := time.Now()
	st := State{Status: StatusAuthenticated, User: tess, LoadedAt: now.Add(-time.Minute)}
	assert.False(t, st.NeedsLoad(5*time.Minute, now))
	assert.True(t, st.NeedsLoad(30*time.Second, now))
	assert.True(t, st.NeedsLoad(0, now))
}

func TestStoreConcurrentUse(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _ = Load(context.Background(), s, func(context.Context) (*leaseqa.User, error) { return tess, nil })
		}()
		go func() {
			defer wg.Done()
			s.SignOut()
		}()
		go func() {
			defer wg.Done()
			_ = s.State()
		}()
	}
	wg.Wait()

	s.SignOut()
	assert.Equal(t, StatusUnauthenticated, s.State().Status)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(time.Minute, nil)
	clock := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	e, err := r.Create()
	require.NoError(t, err)
	require.NotEmpty(t, e.ID)
	require.NotNil(t, e.Jar)
	assert.Equal(t, StatusLoading, e.Store.State().Status)

	got, ok := r.Get(e.ID)
	require.True(t, ok)
	assert.Same(t, e, got)

	_, ok = r.Get("")
	assert.False(t, ok)
	_, ok = r.Get("unknown")
	assert.False(t, ok)

	other, err := r.Create()
	require.NoError(t, err)
	assert.NotEqual(t, e.ID, other.ID)

	clock = clock.Add(45 * time.Second)
	r.Get(e.ID)

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, 1, r.Sweep())
	_, ok = r.Get(other.ID)
	assert.False(t, ok, "idle entry evicted")
	_, ok = r.Get(e.ID)
	assert.True(t, ok)

	r.Delete(e.ID)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRunStops(t *testing.T) {
	r := NewRegistry(time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
