package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluesky-social/coercion-labeler/automod/cachestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDID = "did:plc:abc123"

func testAppView(t *testing.T, resolveCalls *atomic.Int32) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.identity.resolveHandle", func(w http.ResponseWriter, r *http.Request) {
		resolveCalls.Add(1)
		if r.URL.Query().Get("handle") != "alice.example.com" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"InvalidRequest","message":"Unable to resolve handle"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"did": testDID})
	})
	mux.HandleFunc("/xrpc/app.bsky.feed.getPosts", func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.Query().Get("uris")
		switch uri {
		case "at://" + testDID + "/app.bsky.feed.post/malformed":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"InvalidRequest","message":"Error: uris/0 must be a valid at-uri"}`))
			return
		case "at://" + testDID + "/app.bsky.feed.post/gone":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"RecordNotFound","message":"Could not locate record"}`))
			return
		}
		posts := []map[string]any{}
		if uri == "at://"+testDID+"/app.bsky.feed.post/3kabc" {
			posts = append(posts, map[string]any{
				"uri":    uri,
				"cid":    "bafyreiabc",
				"record": map[string]any{"$type": "app.bsky.feed.post", "text": "send me money or else"},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"posts": posts})
	})
	mux.HandleFunc("/xrpc/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAppViewFetcher(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	var resolveCalls atomic.Int32
	srv := testAppView(t, &resolveCalls)
	cache := cachestore.NewMemCacheStore(100, time.Hour)
	f := NewAppViewFetcher(AppViewConfig{
		Host:   srv.URL,
		Client: srv.Client(),
		Cache:  cache,
	})

	p, err := f.FetchPost(ctx, "https://bsky.app/profile/alice.example.com/post/3kabc")
	require.NoError(err)
	assert.Equal("send me money or else", p.Text)
	assert.Equal("at://"+testDID+"/app.bsky.feed.post/3kabc", p.URI)
	assert.Equal("bafyreiabc", p.CID)
	assert.Equal(int32(1), resolveCalls.Load())

	// handle resolution is cached
	_, err = f.FetchPost(ctx, "https://bsky.app/profile/Alice.example.com/post/3kabc")
	require.NoError(err)
	assert.Equal(int32(1), resolveCalls.Load())
	assert.Equal("bafyreiabc", f.CachedCID(ctx, p.URI))

	// AT-URIs with a DID skip resolution
	p, err = f.FetchPost(ctx, "at://"+testDID+"/app.bsky.feed.post/3kabc")
	require.NoError(err)
	assert.Equal("send me money or else", p.Text)
	assert.Equal(int32(1), resolveCalls.Load())
}

func TestAppViewFetcherNotFound(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var resolveCalls atomic.Int32
	srv := testAppView(t, &resolveCalls)
	f := NewAppViewFetcher(AppViewConfig{Host: srv.URL, Client: srv.Client()})

	_, err := f.FetchPost(ctx, "at://"+testDID+"/app.bsky.feed.post/deleted")
	assert.ErrorIs(err, ErrNotFound)
	var fe *FetchError
	assert.True(errors.As(err, &fe))

	_, err = f.FetchPost(ctx, "https://bsky.app/profile/nobody.example.com/post/3kabc")
	assert.ErrorIs(err, ErrNotFound)

	_, err = f.FetchPost(ctx, "at://"+testDID+"/app.bsky.feed.post/gone")
	assert.ErrorIs(err, ErrNotFound)

	_, err = f.FetchPost(ctx, "not a locator")
	assert.Error(err)
	assert.NotErrorIs(err, ErrNotFound)
}

func TestAppViewFetcherBadRequest(t *testing.T) {
	assert := assert.New(t)

	var resolveCalls atomic.Int32
	srv := testAppView(t, &resolveCalls)
	f := NewAppViewFetcher(AppViewConfig{Host: srv.URL, Client: srv.Client()})

	// a rejected request is a real error, not a missing post
	_, err := f.FetchPost(context.Background(), "at://"+testDID+"/app.bsky.feed.post/malformed")
	assert.Error(err)
	assert.NotErrorIs(err, ErrNotFound)
	assert.Contains(err.Error(), "InvalidRequest")
}

func TestAppViewFetcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewAppViewFetcher(AppViewConfig{Host: srv.URL, Client: srv.Client()})
	_, err := f.FetchPost(context.Background(), "at://"+testDID+"/app.bsky.feed.post/3kabc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStaticFetcher(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := StaticFetcher{Texts: map[string]string{
		"at://did:plc:abc123/app.bsky.feed.post/3kabc": "hello",
	}}

	p, err := f.FetchPost(ctx, "at://did:plc:abc123/app.bsky.feed.post/3kabc")
	assert.NoError(err)
	assert.Equal("hello", p.Text)

	// URL form of the same post
	p, err = f.FetchPost(ctx, "https://bsky.app/profile/did:plc:abc123/post/3kabc")
	assert.NoError(err)
	assert.Equal("hello", p.Text)

	_, err = f.FetchPost(ctx, "at://did:plc:abc123/app.bsky.feed.post/other")
	assert.ErrorIs(err, ErrNotFound)
}

type slowFetcher struct{}

func (slowFetcher) FetchPost(ctx context.Context, locator string) (*Post, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestTimeoutFetcher(t *testing.T) {
	f := NewTimeoutFetcher(slowFetcher{}, 10*time.Millisecond)
	_, err := f.FetchPost(context.Background(), "at://did:plc:abc123/app.bsky.feed.post/3kabc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	inner := StaticFetcher{}
	assert.Equal(t, Fetcher(inner), NewTimeoutFetcher(inner, 0))
}
