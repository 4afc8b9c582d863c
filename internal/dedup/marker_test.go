package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMarker(t *testing.T, m Marker) {
	ctx := context.Background()

	got, err := m.Acquire(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, got)

	got, err = m.Acquire(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, got, "second delivery")

	got, err = m.Acquire(ctx, "msg-2")
	require.NoError(t, err)
	assert.True(t, got)

	require.NoError(t, m.Release(ctx, "msg-1"))
	got, err = m.Acquire(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, got, "released id can be acquired again")
}

func TestLocalMarker(t *testing.T) {
	testMarker(t, NewLocalMarker(time.Minute))
}

func TestRedisMarker(t *testing.T) {
	mr := miniredis.RunT(t)
	cl := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	defer cl.Close()

	testMarker(t, NewRedisMarker(cl, time.Minute))

	assert.True(t, mr.Exists(redisMarkerPrefix+"msg-2"))
	assert.Equal(t, time.Minute, mr.TTL(redisMarkerPrefix+"msg-2"))
}
