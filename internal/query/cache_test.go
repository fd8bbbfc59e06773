package query

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeCache is an in-memory Cache used by tests in place of RedisCache,
// round-tripping through JSON exactly like RedisCache does so a test
// exercising OrgByID's cache-hit path sees the same (de)serialization
// behavior a real redis-backed cache would.
type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *fakeCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func TestFakeCache_SetThenGetRoundTrips(t *testing.T) {
	c := newFakeCache()
	require.NoError(t, c.Set(context.Background(), "k", &Org{ID: "org1", Name: "Acme"}, 0))

	var got Org
	hit, err := c.Get(context.Background(), "k", &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "Acme", got.Name)
}

func TestFakeCache_InvalidateRemovesEntry(t *testing.T) {
	c := newFakeCache()
	require.NoError(t, c.Set(context.Background(), "k", &Org{ID: "org1"}, 0))
	require.NoError(t, c.Invalidate(context.Background(), "k"))

	var got Org
	hit, err := c.Get(context.Background(), "k", &got)
	require.NoError(t, err)
	require.False(t, hit)
}
