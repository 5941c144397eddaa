package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bluesky-social/coercion-labeler/automod/cachestore"
	"github.com/bluesky-social/coercion-labeler/postref"
	"github.com/bluesky-social/coercion-labeler/util"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("fetch")

const DefaultAppViewHost = "https://public.api.bsky.app"

// cache namespaces
const (
	cacheHandle  = "handle"
	cachePostRef = "postref"
)

type AppViewConfig struct {
	Host   string
	Client *http.Client
	// Optional read-through cache of handle→DID and AT-URI→CID
	Cache cachestore.CacheStore
	// Max requests per second; zero is unlimited.
	RateLimit float64
	Logger    *slog.Logger
}

// Fetches posts from the public (unauthenticated) AppView XRPC API.
type AppViewFetcher struct {
	host    string
	client  *http.Client
	cache   cachestore.CacheStore
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Fetcher = (*AppViewFetcher)(nil)

func NewAppViewFetcher(cfg AppViewConfig) *AppViewFetcher {
	f := &AppViewFetcher{
		host:   strings.TrimSuffix(cfg.Host, "/"),
		client: cfg.Client,
		cache:  cfg.Cache,
		logger: cfg.Logger,
	}
	if f.host == "" {
		f.host = DefaultAppViewHost
	}
	if f.client == nil {
		f.client = util.RobustHTTPClient()
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	f.logger = f.logger.With("component", "fetch")
	if cfg.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return f
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var notFoundErrors = map[string]bool{
	"NotFound":        true,
	"RecordNotFound":  true,
	"HandleNotFound":  true,
	"AccountNotFound": true,
	"RepoNotFound":    true,
}

// The AppView answers an unknown handle with a generic InvalidRequest, so that one is matched on its message.
func (xe xrpcError) isNotFound() bool {
	if notFoundErrors[xe.Error] {
		return true
	}
	return xe.Error == "InvalidRequest" && strings.Contains(xe.Message, "Unable to resolve handle")
}

type getPostsResp struct {
	Posts []postView `json:"posts"`
}

type postView struct {
	URI    string          `json:"uri"`
	CID    string          `json:"cid"`
	Record json.RawMessage `json:"record"`
}

type feedPost struct {
	Text string `json:"text"`
}

type resolveHandleResp struct {
	DID string `json:"did"`
}

func (f *AppViewFetcher) FetchPost(ctx context.Context, locator string) (*Post, error) {
	ctx, span := tracer.Start(ctx, "FetchPost")
	defer span.End()
	span.SetAttributes(attribute.String("locator", locator))

	start := time.Now()
	post, err := f.fetchPost(ctx, locator)
	fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			fetchCount.WithLabelValues("not_found").Inc()
		} else {
			fetchCount.WithLabelValues("error").Inc()
		}
		span.RecordError(err)
		return nil, &FetchError{Locator: locator, Err: err}
	}
	fetchCount.WithLabelValues("ok").Inc()
	return post, nil
}

func (f *AppViewFetcher) fetchPost(ctx context.Context, locator string) (*Post, error) {
	ref, err := postref.Parse(locator)
	if err != nil {
		return nil, err
	}
	if !ref.IsDID() {
		did, err := f.ResolveHandle(ctx, ref.Authority)
		if err != nil {
			return nil, err
		}
		ref = ref.WithAuthority(did)
	}
	uri := ref.URI()

	var resp getPostsResp
	if err := f.get(ctx, "app.bsky.feed.getPosts", url.Values{"uris": []string{uri}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Posts) == 0 {
		return nil, ErrNotFound
	}
	pv := resp.Posts[0]
	var rec feedPost
	if err := json.Unmarshal(pv.Record, &rec); err != nil {
		return nil, fmt.Errorf("parsing post record: %w", err)
	}

	if f.cache != nil && pv.CID != "" {
		if err := f.cache.Set(ctx, cachePostRef, uri, pv.CID); err != nil {
			f.logger.Warn("failed to cache post CID", "uri", uri, "err", err)
		}
	}
	return &Post{
		Locator: locator,
		URI:     pv.URI,
		CID:     pv.CID,
		Text:    rec.Text,
	}, nil
}

// Returns the DID for a handle, consulting the cache first.
func (f *AppViewFetcher) ResolveHandle(ctx context.Context, handle string) (string, error) {
	handle = strings.ToLower(handle)
	if f.cache != nil {
		if did, err := f.cache.Get(ctx, cacheHandle, handle); err == nil && did != "" {
			return did, nil
		}
	}
	var resp resolveHandleResp
	if err := f.get(ctx, "com.atproto.identity.resolveHandle", url.Values{"handle": []string{handle}}, &resp); err != nil {
		return "", fmt.Errorf("resolving handle %s: %w", handle, err)
	}
	if resp.DID == "" {
		return "", fmt.Errorf("resolving handle %s: %w", handle, ErrNotFound)
	}
	if f.cache != nil {
		if err := f.cache.Set(ctx, cacheHandle, handle, resp.DID); err != nil {
			f.logger.Warn("failed to cache handle", "handle", handle, "err", err)
		}
	}
	return resp.DID, nil
}

// Cached CID for an AT-URI from an earlier fetch, or empty.
func (f *AppViewFetcher) CachedCID(ctx context.Context, uri string) string {
	if f.cache == nil {
		return ""
	}
	cid, err := f.cache.Get(ctx, cachePostRef, uri)
	if err != nil {
		return ""
	}
	return cid
}

func (f *AppViewFetcher) get(ctx context.Context, nsid string, params url.Values, out any) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	u := f.host + "/xrpc/" + nsid + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "coercion-labeler/"+versioninfo.Short())

	res, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", nsid, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", nsid, err)
	}
	if res.StatusCode != http.StatusOK {
		var xe xrpcError
		_ = json.Unmarshal(body, &xe)
		if res.StatusCode == http.StatusNotFound || (res.StatusCode == http.StatusBadRequest && xe.isNotFound()) {
			return fmt.Errorf("%w: %s (%s)", ErrNotFound, xe.Error, xe.Message)
		}
		if xe.Error != "" {
			return fmt.Errorf("%s request failed statusCode=%d: %s: %s", nsid, res.StatusCode, xe.Error, xe.Message)
		}
		return fmt.Errorf("%s request failed statusCode=%d", nsid, res.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", nsid, err)
	}
	return nil
}
