package cachestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCacheStore(t *testing.T, s CacheStore) {
	assert := assert.New(t)
	ctx := context.Background()

	v, err := s.Get(ctx, "postref", "at://did:plc:abc/app.bsky.feed.post/3k")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(s.Set(ctx, "postref", "at://did:plc:abc/app.bsky.feed.post/3k", "bafyreia"))
	v, err = s.Get(ctx, "postref", "at://did:plc:abc/app.bsky.feed.post/3k")
	assert.NoError(err)
	assert.Equal("bafyreia", v)

	// namespaces don't collide
	v, err = s.Get(ctx, "handle", "at://did:plc:abc/app.bsky.feed.post/3k")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(s.Purge(ctx, "postref", "at://did:plc:abc/app.bsky.feed.post/3k"))
	v, err = s.Get(ctx, "postref", "at://did:plc:abc/app.bsky.feed.post/3k")
	assert.NoError(err)
	assert.Equal("", v)

	// purging a missing key is fine
	assert.NoError(s.Purge(ctx, "postref", "nope"))
}

func TestMemCacheStore(t *testing.T) {
	testCacheStore(t, NewMemCacheStore(100, time.Hour))
}

func TestMemCacheStoreNamespaces(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewMemCacheStore(2, 0).WithNamespaceTTL("handle", 50*time.Millisecond)
	assert.Equal(0, s.Len("score"))

	assert.NoError(s.Set(ctx, "postref", "at://did:plc:abc/app.bsky.feed.post/1", "bafyreia"))
	for _, k := range []string{"a", "b", "c"} {
		assert.NoError(s.Set(ctx, "score", k, "0.5"))
	}
	// eviction in one namespace leaves the others alone
	assert.Equal(2, s.Len("score"))
	v, err := s.Get(ctx, "score", "a")
	assert.NoError(err)
	assert.Equal("", v)
	v, err = s.Get(ctx, "postref", "at://did:plc:abc/app.bsky.feed.post/1")
	assert.NoError(err)
	assert.Equal("bafyreia", v)

	assert.NoError(s.Set(ctx, "handle", "alice.example.com", "did:plc:abc"))
	v, err = s.Get(ctx, "handle", "alice.example.com")
	assert.NoError(err)
	assert.Equal("did:plc:abc", v)
	time.Sleep(100 * time.Millisecond)
	v, err = s.Get(ctx, "handle", "alice.example.com")
	assert.NoError(err)
	assert.Equal("", v)

	// no ttl outside the override
	v, err = s.Get(ctx, "postref", "at://did:plc:abc/app.bsky.feed.post/1")
	assert.NoError(err)
	assert.Equal("bafyreia", v)
}

func TestFileCacheStore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "cache", "postrefs.json")
	s, err := OpenFileCacheStore(p)
	require.NoError(err)
	testCacheStore(t, s)

	require.NoError(s.Set(ctx, "handle", "alice.example.com", "did:plc:alice"))
	require.NoError(s.Flush())

	reopened, err := OpenFileCacheStore(p)
	require.NoError(err)
	assert.Equal(1, reopened.Len())
	v, err := reopened.Get(ctx, "handle", "alice.example.com")
	assert.NoError(err)
	assert.Equal("did:plc:alice", v)

	// nothing changed, so nothing to write
	require.NoError(os.Remove(p))
	require.NoError(reopened.Flush())
	_, err = os.Stat(p)
	assert.True(os.IsNotExist(err))
}

func TestFileCacheStoreCorrupt(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0644))
	_, err := OpenFileCacheStore(p)
	assert.Error(t, err)
}
