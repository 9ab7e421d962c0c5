package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

func TestRegistryReusesControllers(t *testing.T) {
	r := NewRegistry(newService(), time.Minute, logger.NewNop())
	t.Cleanup(r.Close)
	ctx := context.Background()

	created := 0
	factory := func() Provider {
		created++
		return NewLocal(alice)
	}

	c1, err := r.Get(ctx, "token:alice", factory)
	require.NoError(t, err)
	c2, err := r.Get(ctx, "token:alice", factory)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, r.Count())

	found, ok := r.Lookup("token:alice")
	assert.True(t, ok)
	assert.Same(t, c1, found)

	_, ok = r.Lookup("token:bob")
	assert.False(t, ok)
}

func TestRegistryForgetClosesController(t *testing.T) {
	r := NewRegistry(newService(), time.Minute, logger.NewNop())
	ctx := context.Background()
	local := NewLocal(alice)

	c, err := r.Get(ctx, "sess", func() Provider { return local })
	require.NoError(t, err)

	r.Forget("sess")
	assert.Zero(t, r.Count())

	require.NoError(t, local.SignIn(ctx, bob))
	assert.Equal(t, alice, c.Snapshot().Principal, "closed controller must not follow the provider")
}

func TestRegistryBindFailure(t *testing.T) {
	r := NewRegistry(newService(), time.Minute, logger.NewNop())
	store := newFakeSessionStore()
	store.fail = assert.AnError

	_, err := r.Get(context.Background(), "sess", func() Provider {
		return NewRedisProvider(store, "sess", logger.NewNop())
	})
	assert.Error(t, err)
	assert.Zero(t, r.Count())
}

// slowProvider holds Subscribe until release is closed.
type slowProvider struct {
	*Local
	entered chan struct{}
	release chan struct{}
}

func (s *slowProvider) Subscribe(ctx context.Context, fn Listener) (func(), error) {
	close(s.entered)
	<-s.release
	return s.Local.Subscribe(ctx, fn)
}

func TestRegistryBindsKeysIndependently(t *testing.T) {
	r := NewRegistry(newService(), time.Minute, logger.NewNop())
	t.Cleanup(r.Close)
	ctx := context.Background()

	slow := &slowProvider{Local: NewLocal(alice), entered: make(chan struct{}), release: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, "slow", func() Provider { return slow })
		done <- err
	}()
	<-slow.entered

	fast := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, "fast", func() Provider { return NewLocal(bob) })
		fast <- err
	}()

	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("binding one session blocked another")
	}

	close(slow.release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, r.Count())
}

func TestRegistryBindsKeyOnce(t *testing.T) {
	r := NewRegistry(newService(), time.Minute, logger.NewNop())
	t.Cleanup(r.Close)
	ctx := context.Background()

	var created atomic.Int32
	var wg sync.WaitGroup
	got := make([]*Controller, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Get(ctx, "sess", func() Provider {
				created.Add(1)
				return NewLocal(alice)
			})
			assert.NoError(t, err)
			got[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range got[1:] {
		assert.Same(t, got[0], c)
	}
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, int32(1), created.Load())
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(newService(), time.Minute, logger.NewNop())
	t.Cleanup(r.Close)
	store := newFakeSessionStore()
	ctx := context.Background()
	provider := func() Provider { return NewRedisProvider(store, "sess", logger.NewNop()) }

	t.Run("signed out sessions are detached", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			c, err := r.Resolve(ctx, "sess", provider)
			require.NoError(t, err)
			assert.Nil(t, c.Snapshot().Principal)
			assert.ErrorIs(t, c.Add(ctx, "Go", "https://go.dev"), domain.ErrUnauthenticated)
		}
		assert.Zero(t, r.Count())
		assert.Zero(t, store.subscriptions())
	})

	t.Run("sign in through a detached controller", func(t *testing.T) {
		c, err := r.Resolve(ctx, "sess", provider)
		require.NoError(t, err)
		require.NoError(t, c.SignIn(ctx, alice))

		p, err := store.LoadSession(ctx, "sess")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, p.ID)
	})

	t.Run("signed in sessions are bound and kept", func(t *testing.T) {
		c1, err := r.Resolve(ctx, "sess", provider)
		require.NoError(t, err)
		c2, err := r.Resolve(ctx, "sess", provider)
		require.NoError(t, err)

		assert.Same(t, c1, c2)
		assert.Equal(t, alice.ID, c1.Snapshot().Principal.ID)
		assert.Equal(t, 1, r.Count())
		assert.Equal(t, 1, store.subscriptions())
	})
}
