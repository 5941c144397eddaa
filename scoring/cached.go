package scoring

import (
	"context"
	"strconv"

	"github.com/bluesky-social/coercion-labeler/automod/cachestore"
	"github.com/bluesky-social/coercion-labeler/automod/helpers"
	"github.com/bluesky-social/coercion-labeler/labeling"
)

// Caches scores by a hash of the exact text, so that repeated grading runs see the same score for the same post and don't spend API quota. Failures are not cached.
type CachedScorer struct {
	Inner labeling.Scorer
	Cache cachestore.CacheStore
	// cache namespace; should change whenever the upstream attribute or model does
	Name string
}

var _ labeling.Scorer = (*CachedScorer)(nil)

func (s *CachedScorer) Score(ctx context.Context, text string) (float64, error) {
	key := helpers.HashOfString(text)
	if raw, err := s.Cache.Get(ctx, s.Name, key); err == nil && raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			scoreCacheHits.Inc()
			return v, nil
		}
	}
	v, err := s.Inner.Score(ctx, text)
	if err != nil {
		return 0, err
	}
	_ = s.Cache.Set(ctx, s.Name, key, strconv.FormatFloat(v, 'g', -1, 64))
	return v, nil
}

// Returns the same score for every text. Useful for tests and dry runs.
type StaticScorer struct {
	Value float64
	Err   error
}

var _ labeling.Scorer = StaticScorer{}

func (s StaticScorer) Score(ctx context.Context, text string) (float64, error) {
	return s.Value, s.Err
}
