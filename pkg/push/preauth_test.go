package push

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreAuthCache_ConsumeIsSingleUse(t *testing.T) {
	cache := NewPreAuthCache()
	cache.Insert("abc", "bob")

	user, ok := cache.Consume("abc")
	require.True(t, ok)
	assert.Equal(t, "bob", user)

	_, ok = cache.Consume("abc")
	assert.False(t, ok, "a token must not be consumable twice")
}

func TestPreAuthCache_MissingToken(t *testing.T) {
	cache := NewPreAuthCache()

	_, ok := cache.Consume("never-inserted")
	assert.False(t, ok)
}

func TestPreAuthCache_ExpiredTokenRejected(t *testing.T) {
	cache := NewPreAuthCache()
	cache.Insert("old", "bob")

	// Backdate the entry past the TTL instead of sleeping 15s.
	cache.mu.Lock()
	cache.entries["old"] = preAuthEntry{
		created: time.Now().Add(-preAuthTTL - time.Second),
		user:    "bob",
	}
	cache.mu.Unlock()

	_, ok := cache.Consume("old")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len(), "expired entry should have been culled")
}

func TestPreAuthCache_ConsumeCullsOtherExpiredEntries(t *testing.T) {
	cache := NewPreAuthCache()
	cache.Insert("fresh", "alice")
	cache.Insert("stale", "bob")

	cache.mu.Lock()
	cache.entries["stale"] = preAuthEntry{
		created: time.Now().Add(-preAuthTTL - time.Second),
		user:    "bob",
	}
	cache.mu.Unlock()

	user, ok := cache.Consume("fresh")
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, 0, cache.Len())
}

func TestPreAuthCache_ReinsertRefreshesOwner(t *testing.T) {
	cache := NewPreAuthCache()
	cache.Insert("tok", "alice")
	cache.Insert("tok", "bob")

	user, ok := cache.Consume("tok")
	require.True(t, ok)
	assert.Equal(t, "bob", user)
}
