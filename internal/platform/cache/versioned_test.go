package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "reference", time.Minute), mr
}

func TestFetchJSONCachesLoaderResult(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	key, err := c.Key(ctx, "catalog")
	require.NoError(t, err)
	assert.Equal(t, "reference:catalog:v1", key)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Name: "split-type"}, nil
	}

	var first, second payload
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	assert.Equal(t, "split-type", first.Name)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestBumpChangesKey(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before, err := c.Key(ctx, "catalog")
	require.NoError(t, err)
	require.NoError(t, c.Bump(ctx))
	after, err := c.Key(ctx, "catalog")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
	assert.Equal(t, "reference:catalog:v2", after)
}

func TestFetchJSONLoaderError(t *testing.T) {
	c, _ := newTestCache(t)
	boom := errors.New("boom")
	var dest payload
	err := c.FetchJSON(context.Background(), "k", &dest, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var c *Versioned
	var dest payload
	err := c.FetchJSON(context.Background(), "k", &dest, func(context.Context) (any, error) {
		return payload{Name: "direct"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", dest.Name)
	assert.NoError(t, c.Bump(context.Background()))
}
