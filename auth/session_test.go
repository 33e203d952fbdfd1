package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/guardchain/guard"
)

func TestSessionStrategy_Extract(t *testing.T) {
	s, err := NewSessionStrategy(SessionConfig{}, NewMemorySessionStore())
	require.NoError(t, err)

	gc := guard.NewContext(&guard.Request{Headers: map[string][]string{
		"Cookie": {"theme=dark; session_id=abc123"},
	}})
	cred, ok := s.Extract(gc)
	assert.True(t, ok)
	assert.Equal(t, "abc123", cred.Value)

	_, ok = s.Extract(guard.NewContext(&guard.Request{Headers: map[string][]string{"Cookie": {"theme=dark"}}}))
	assert.False(t, ok)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	store.Put("s1", &guard.Principal{ID: "alice", Roles: []string{"user"}}, time.Hour)

	p, err := store.Session(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, guard.MethodSession, p.Method)

	store.Delete("s1")
	_, err = store.Session(context.Background(), "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	store := NewRedisSessionStore(client, "")
	ctx := context.Background()

	err := store.Put(ctx, "s1", &guard.Principal{
		ID:          "bob",
		Roles:       []string{"editor"},
		Permissions: []string{"docs:write"},
	}, 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("session:s1"))

	p, err := store.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.ID)
	assert.Equal(t, []string{"editor"}, p.Roles)
	assert.True(t, p.HasPermission("docs:write"))
	assert.False(t, p.ExpiresAt.IsZero())

	mr.FastForward(31 * time.Minute)
	_, err = store.Session(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Put(ctx, "s2", &guard.Principal{ID: "carol"}, 0))
	require.NoError(t, store.Delete(ctx, "s2"))
	_, err = store.Session(ctx, "s2")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStore_BackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = client.Close() }()
	mr.Close()

	strategy, err := NewSessionStrategy(SessionConfig{}, NewRedisSessionStore(client, ""))
	require.NoError(t, err)

	_, err = strategy.Verify(context.Background(), Credential{Value: "s1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionNotFound))
	assert.Equal(t, "auth_backend_error", classify("session", err).Code)
}
