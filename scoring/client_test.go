package scoring

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

func testClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		Host:        srv.URL,
		APIKey:      "secret",
		Attribute:   "THREAT",
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
	})
}

func TestClientScore(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/v1alpha1/comments:analyze", r.URL.Path)
		assert.Equal("secret", r.URL.Query().Get("key"))

		var req analyzeRequest
		assert.NoError(json.NewDecoder(r.Body).Decode(&req))
		assert.Equal("i know where you live", req.Comment.Text)
		assert.Contains(req.RequestedAttributes, "THREAT")
		assert.True(req.DoNotStore)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"attributeScores": {"THREAT": {"summaryScore": {"value": 0.87, "type": "PROBABILITY"}}}}`))
	}))
	defer srv.Close()

	score, err := testClient(srv).Score(context.Background(), "i know where you live")
	require.NoError(err)
	assert.InDelta(0.87, score, 0.0001)
}

func TestClientRetries(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"attributeScores": {"THREAT": {"summaryScore": {"value": 0.2}}}}`))
	}))
	defer srv.Close()

	score, err := testClient(srv).Score(context.Background(), "hello")
	assert.NoError(err)
	assert.InDelta(0.2, score, 0.0001)
	assert.Equal(int32(3), calls.Load())
}

func TestClientRetryBudget(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv).Score(context.Background(), "hello")
	assert.Error(err)
	assert.True(errors.Is(err, ErrService))
	assert.Equal(int32(3), calls.Load())
}

func TestClientPermanentFailure(t *testing.T) {
	assert := assert.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv).Score(context.Background(), "hello")
	assert.True(errors.Is(err, ErrService))
	assert.Equal(int32(1), calls.Load())

	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"attributeScores": {"TOXICITY": {"summaryScore": {"value": 0.2}}}}`))
	}))
	defer missing.Close()
	_, err = testClient(missing).Score(context.Background(), "hello")
	assert.ErrorContains(err, "missing attribute THREAT")
}

type countingScorer struct {
	calls int
	err   error
}

func (s *countingScorer) Score(ctx context.Context, text string) (float64, error) {
	s.calls++
	return 0.42, s.err
}

func TestCachedScorer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	inner := &countingScorer{}
	cs := &CachedScorer{
		Inner: inner,
		Cache: cachestore.NewMemCacheStore(100, time.Hour),
		Name:  "score-threat",
	}

	for range 3 {
		v, err := cs.Score(ctx, "same text")
		assert.NoError(err)
		assert.InDelta(0.42, v, 0.0001)
	}
	assert.Equal(1, inner.calls)

	_, err := cs.Score(ctx, "other text")
	assert.NoError(err)
	assert.Equal(2, inner.calls)

	// failures aren't cached
	failing := &countingScorer{err: ErrService}
	cs.Inner = failing
	for range 2 {
		_, err := cs.Score(ctx, "new text")
		assert.Error(err)
	}
	assert.Equal(2, failing.calls)
}

func TestStaticScorer(t *testing.T) {
	v, err := StaticScorer{Value: 0.5}.Score(context.Background(), "anything")
	assert.NoError(t, err)
	assert.Equal(t, 0.5, v)
}
