package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// keep-alive connections of clients pointed at closed httptest servers
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

// newTestStore returns a store whose clock the test controls.
func newTestStore(t *testing.T) (*MemorySessionStore, *time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := NewMemorySessionStore(time.Hour)
	store.now = func() time.Time { return now }
	t.Cleanup(store.Close)
	return store, &now
}

func TestMemorySessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store, now := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	*now = now.Add(time.Minute)
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, store.purge())
}

func TestMemorySessionStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, time.Minute))
	value[0] = 'x'

	got, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestMemorySessionStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, _ := store.Get(ctx, "k")
	assert.False(t, ok)

	store.Close()
	store.Close()
}
