package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/coercion-labeler/automod/cachestore"
	"github.com/bluesky-social/coercion-labeler/fetch"
	"github.com/bluesky-social/coercion-labeler/labeling"
	"github.com/bluesky-social/coercion-labeler/scoring"
	"github.com/bluesky-social/coercion-labeler/util"

	cli "github.com/urfave/cli/v2"
)

var engineFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "score-api-key",
		Usage:   "API key for the external toxicity score service; score rule is skipped if not set",
		EnvVars: []string{"COERCION_SCORE_API_KEY", "PERSPECTIVE_API_KEY"},
	},
	&cli.StringFlag{
		Name:    "score-host",
		Usage:   "base URL of the external toxicity score service",
		Value:   scoring.DefaultHost,
		EnvVars: []string{"COERCION_SCORE_HOST"},
	},
	&cli.StringFlag{
		Name:    "score-attribute",
		Usage:   "score attribute to request (eg, TOXICITY, THREAT)",
		Value:   "TOXICITY",
		EnvVars: []string{"COERCION_SCORE_ATTRIBUTE"},
	},
	&cli.DurationFlag{
		Name:    "score-timeout",
		Usage:   "overall time budget for one external score lookup, including retries",
		Value:   20 * time.Second,
		EnvVars: []string{"COERCION_SCORE_TIMEOUT"},
	},
	&cli.BoolFlag{
		Name:    "ignore-urls",
		Usage:   "strip URLs from post text before matching",
		EnvVars: []string{"COERCION_IGNORE_URLS"},
	},
	&cli.StringFlag{
		Name:    "redis-url",
		Usage:   "redis connection URL for the shared cache (otherwise in-process or file cache)",
		EnvVars: []string{"COERCION_REDIS_URL", "REDIS_URL"},
	},
	&cli.StringFlag{
		Name:    "cache-file",
		Usage:   "JSON file persisting the cache between runs (ignored when redis is configured)",
		EnvVars: []string{"COERCION_CACHE_FILE"},
	},
}

var fetchFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "appview-host",
		Usage:   "method, hostname, and port of public AppView API",
		Value:   fetch.DefaultAppViewHost,
		EnvVars: []string{"COERCION_APPVIEW_HOST", "ATP_APPVIEW_HOST"},
	},
	&cli.Float64Flag{
		Name:    "fetch-rate-limit",
		Usage:   "max AppView requests per second",
		Value:   5,
		EnvVars: []string{"COERCION_FETCH_RATE_LIMIT"},
	},
	&cli.DurationFlag{
		Name:    "fetch-timeout",
		Usage:   "overall time budget for fetching one post, including retries",
		Value:   30 * time.Second,
		EnvVars: []string{"COERCION_FETCH_TIMEOUT"},
	},
	&cli.IntFlag{
		Name:    "fetch-retries",
		Usage:   "retries per AppView request on network errors and 5xx responses",
		Value:   3,
		EnvVars: []string{"COERCION_FETCH_RETRIES"},
	},
}

func concatFlags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Shared collaborators for one CLI invocation.
type services struct {
	rules  *labeling.Rules
	engine *labeling.Engine
	cache  cachestore.CacheStore
	file   *cachestore.FileCacheStore
	logger *slog.Logger
}

func openCache(ctx context.Context, cctx *cli.Context) (cachestore.CacheStore, *cachestore.FileCacheStore, error) {
	if u := cctx.String("redis-url"); u != "" {
		rc, err := cachestore.NewRedisCacheStore(ctx, u, "coercion", 24*time.Hour)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing redis cachestore: %w", err)
		}
		return rc, nil, nil
	}
	if p := cctx.String("cache-file"); p != "" {
		fc, err := cachestore.OpenFileCacheStore(p)
		if err != nil {
			return nil, nil, err
		}
		return fc, fc, nil
	}
	// handles can be reassigned; post CIDs and scores for a given text don't change
	return cachestore.NewMemCacheStore(50_000, 0).WithNamespaceTTL("handle", time.Hour), nil, nil
}

// Loads the rules manifest and builds the labeling engine, with the external scorer if one is configured.
func setupServices(ctx context.Context, cctx *cli.Context) (*services, error) {
	logger := slog.Default()

	rules, err := labeling.LoadRules(cctx.String("rules"))
	if err != nil {
		return nil, err
	}
	logger.Info("loaded rules", "manifest", cctx.String("rules"), "rules", rules.Summary())

	cache, file, err := openCache(ctx, cctx)
	if err != nil {
		return nil, err
	}

	var scorer labeling.Scorer
	if key := cctx.String("score-api-key"); key != "" {
		client := scoring.NewClient(scoring.Config{
			Host:      cctx.String("score-host"),
			APIKey:    key,
			Attribute: cctx.String("score-attribute"),
			Logger:    logger,
		})
		scorer = &scoring.CachedScorer{
			Inner: client,
			Cache: cache,
			Name:  "score/" + client.Attribute,
		}
	}

	engine := labeling.NewEngine(rules, labeling.Config{
		Logger:       logger,
		Scorer:       scorer,
		ScoreTimeout: cctx.Duration("score-timeout"),
		IgnoreURLs:   cctx.Bool("ignore-urls"),
	})

	return &services{
		rules:  rules,
		engine: engine,
		cache:  cache,
		file:   file,
		logger: logger,
	}, nil
}

func (s *services) fetcher(cctx *cli.Context) fetch.Fetcher {
	af := fetch.NewAppViewFetcher(fetch.AppViewConfig{
		Host:      cctx.String("appview-host"),
		Client:    util.RetryingHTTPClient(cctx.Int("fetch-retries"), 15*time.Second, s.logger),
		Cache:     s.cache,
		RateLimit: cctx.Float64("fetch-rate-limit"),
		Logger:    s.logger,
	})
	return fetch.NewTimeoutFetcher(af, cctx.Duration("fetch-timeout"))
}

// Persists the file cache, if one is in use.
func (s *services) Close() {
	if s.file == nil {
		return
	}
	if err := s.file.Flush(); err != nil {
		s.logger.Warn("failed to write cache file", "err", err)
	}
}
