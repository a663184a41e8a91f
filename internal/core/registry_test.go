package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryDuplicateIdentityKeepsFirstSession(t *testing.T) {
	r := NewRegistry()
	first, second := NewSession(1), NewSession(1)

	require.True(t, r.Register("alice", first))
	require.False(t, r.Register("alice", second))
	require.Equal(t, 1, r.Len())

	got, ok := r.Lookup("alice")
	require.True(t, ok)
	require.Same(t, first, got)
}

func TestRegistrySessionBindsOneIdentity(t *testing.T) {
	r := NewRegistry()
	s := NewSession(1)

	require.True(t, r.Register("alice", s))
	require.False(t, r.Register("bob", s))

	_, ok := r.Lookup("bob")
	require.False(t, ok)
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	a, b := NewSession(1), NewSession(1)
	r.Register("alice", a)
	r.Register("bob", b)

	userID, ok := r.Unregister(a)
	require.True(t, ok)
	require.Equal(t, "alice", userID)

	_, ok = r.Lookup("alice")
	require.False(t, ok)
	require.Equal(t, []string{"bob"}, r.Snapshot())

	_, ok = r.Unregister(a)
	require.False(t, ok, "second unregister is a no-op")

	// The identity is free again once its session is gone.
	require.True(t, r.Register("alice", NewSession(1)))
}

func TestRegistrySnapshotOrder(t *testing.T) {
	r := NewRegistry()
	require.Empty(t, r.Snapshot())

	for _, id := range []string{"c", "a", "b"} {
		r.Register(id, NewSession(1))
	}
	require.Equal(t, []string{"c", "a", "b"}, r.Snapshot())
}

func TestRegistryConcurrentRegisterSameIdentity(t *testing.T) {
	r := NewRegistry()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register("alice", NewSession(1)) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, 1, r.Len())
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewSession(1)
			id := fmt.Sprintf("user-%d", i)
			r.Register(id, s)
			r.Lookup(id)
			r.Unregister(s)
		}(i)
	}
	wg.Wait()

	require.Zero(t, r.Len())
}
