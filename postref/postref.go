// Post locators: AT-URIs (at://did:plc:abc/app.bsky.feed.post/3k...) and bsky.app web URLs, and conversion between them.
package postref

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"
)

const (
	PostCollection = "app.bsky.feed.post"
	DefaultAppHost = "https://bsky.app"
)

var (
	didRegex       = regexp.MustCompile(`^did:[a-z]+:[a-zA-Z0-9._:%-]*[a-zA-Z0-9._-]$`)
	handleRegex    = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
	nsidRegex      = regexp.MustCompile(`^[a-zA-Z]([a-zA-Z0-9-]{0,62})?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,62})?)+$`)
	recordKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9_~.:-]{1,512}$`)
)

// A reference to a single record. For posts resolved from web URLs, Authority may be a handle rather than a DID.
type Ref struct {
	Authority  string
	Collection string
	RecordKey  string
}

// Parses either an AT-URI or a bsky.app post URL. Surrounding whitespace is ignored.
func Parse(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Ref{}, fmt.Errorf("empty post locator")
	}
	if len(raw) > 8192 {
		return Ref{}, fmt.Errorf("post locator is too long (8192 chars max)")
	}
	if strings.HasPrefix(raw, "at://") {
		return parseATURI(raw)
	}
	if lower := strings.ToLower(raw); strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return parseURL(raw)
	}
	return Ref{}, fmt.Errorf("unrecognized post locator: %s", raw)
}

func parseATURI(raw string) (Ref, error) {
	parts := strings.Split(strings.TrimPrefix(raw, "at://"), "/")
	if len(parts) != 3 {
		return Ref{}, fmt.Errorf("AT-URI must have authority, collection, and record key: %s", raw)
	}
	ref := Ref{Authority: parts[0], Collection: parts[1], RecordKey: parts[2]}
	return ref, ref.validate()
}

func parseURL(raw string) (Ref, error) {
	// tolerate the copy/paste noise that shows up in spreadsheets: fragments, doubled slashes, www. prefix
	clean, err := purell.NormalizeURLString(raw, purell.FlagsSafe|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes|purell.FlagRemoveWWW|purell.FlagRemoveTrailingSlash)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid post URL: %w", err)
	}
	u, err := url.Parse(clean)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid post URL: %w", err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "bsky.app" {
		return Ref{}, fmt.Errorf("post URL is not on bsky.app: %s", raw)
	}
	// /profile/<authority>/post/<rkey>
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "profile" || parts[2] != "post" {
		return Ref{}, fmt.Errorf("not a bsky.app post URL: %s", raw)
	}
	ref := Ref{Authority: parts[1], Collection: PostCollection, RecordKey: parts[3]}
	return ref, ref.validate()
}

func (r Ref) validate() error {
	if !r.IsDID() && !handleRegex.MatchString(r.Authority) {
		return fmt.Errorf("post authority is neither a DID nor a handle: %s", r.Authority)
	}
	if !nsidRegex.MatchString(r.Collection) {
		return fmt.Errorf("post collection is not an NSID: %s", r.Collection)
	}
	if !recordKeyRegex.MatchString(r.RecordKey) || r.RecordKey == "." || r.RecordKey == ".." {
		return fmt.Errorf("invalid record key: %s", r.RecordKey)
	}
	return nil
}

func (r Ref) IsDID() bool {
	return didRegex.MatchString(r.Authority)
}

// Returns a copy with the authority replaced, eg after resolving a handle to a DID.
func (r Ref) WithAuthority(authority string) Ref {
	r.Authority = authority
	return r
}

func (r Ref) URI() string {
	return "at://" + r.Authority + "/" + r.Collection + "/" + r.RecordKey
}

// Web URL for the post on bsky.app.
func (r Ref) URL() string {
	return DefaultAppHost + "/profile/" + r.Authority + "/post/" + r.RecordKey
}

func (r Ref) String() string {
	return r.URI()
}

// Converts an AT-URI to a bsky.app URL. Strings which are already web URLs, or which don't parse, are returned unchanged (trimmed), so this is safe to run over a whole column.
func URIToURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "at://") {
		return raw
	}
	ref, err := Parse(raw)
	if err != nil {
		return raw
	}
	return ref.URL()
}
