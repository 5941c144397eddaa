// Post-fetch collaborator: resolves a post locator (AT-URI or bsky.app URL) to post text.
//
// This is the only place network and API concerns live. The labeling engine and the grader only ever see a [Post] or an error.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bluesky-social/coercion-labeler/postref"
)

// The post (or its author) doesn't exist, was deleted, or isn't visible.
var ErrNotFound = errors.New("post not found")

type Post struct {
	// as given by the caller
	Locator string
	URI     string
	CID     string
	Text    string
}

type Fetcher interface {
	FetchPost(ctx context.Context, locator string) (*Post, error)
}

// A per-post fetch failure. These are recoverable: the grader skips and counts the post.
type FetchError struct {
	Locator string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// In-memory fetcher over known post texts, keyed by locator. Lookups also try the AT-URI and URL forms of the locator, so a gold file using URLs can match texts keyed by URI.
type StaticFetcher struct {
	Texts map[string]string
}

var _ Fetcher = StaticFetcher{}

func (f StaticFetcher) FetchPost(ctx context.Context, locator string) (*Post, error) {
	key := strings.TrimSpace(locator)
	candidates := []string{key}
	if ref, err := postref.Parse(key); err == nil {
		candidates = append(candidates, ref.URI(), ref.URL())
	}
	for _, c := range candidates {
		if text, ok := f.Texts[c]; ok {
			p := &Post{Locator: locator, Text: text}
			if strings.HasPrefix(c, "at://") {
				p.URI = c
			}
			return p, nil
		}
	}
	return nil, &FetchError{Locator: locator, Err: ErrNotFound}
}

type timeoutFetcher struct {
	inner   Fetcher
	timeout time.Duration
}

// Bounds every FetchPost call on inner by timeout. A zero timeout returns inner unchanged.
func NewTimeoutFetcher(inner Fetcher, timeout time.Duration) Fetcher {
	if timeout <= 0 {
		return inner
	}
	return &timeoutFetcher{inner: inner, timeout: timeout}
}

func (f *timeoutFetcher) FetchPost(ctx context.Context, locator string) (*Post, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.inner.FetchPost(ctx, locator)
}
