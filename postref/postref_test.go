package postref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		raw  string
		uri  string
		url  string
		did  bool
		fail bool
	}{
		{
			raw: "at://did:plc:abc123/app.bsky.feed.post/3xyz",
			uri: "at://did:plc:abc123/app.bsky.feed.post/3xyz",
			url: "https://bsky.app/profile/did:plc:abc123/post/3xyz",
			did: true,
		},
		{
			raw: "  https://bsky.app/profile/alice.example.com/post/3kabc  ",
			uri: "at://alice.example.com/app.bsky.feed.post/3kabc",
			url: "https://bsky.app/profile/alice.example.com/post/3kabc",
		},
		{
			raw: "https://www.bsky.app/profile/did:plc:abc123/post/3kabc/?ref=share",
			uri: "at://did:plc:abc123/app.bsky.feed.post/3kabc",
			url: "https://bsky.app/profile/did:plc:abc123/post/3kabc",
			did: true,
		},
		{
			raw: "HTTPS://bsky.app//profile/alice.example.com/post/3kabc#replies",
			uri: "at://alice.example.com/app.bsky.feed.post/3kabc",
			url: "https://bsky.app/profile/alice.example.com/post/3kabc",
		},
		{raw: "", fail: true},
		{raw: "at://did:plc:abc123", fail: true},
		{raw: "at://did:plc:abc123/app.bsky.feed.post/3xyz/extra", fail: true},
		{raw: "at://not a handle/app.bsky.feed.post/3xyz", fail: true},
		{raw: "at://did:plc:abc123/app.bsky.feed.post/..", fail: true},
		{raw: "https://example.com/profile/alice.test/post/3k", fail: true},
		{raw: "https://bsky.app/profile/alice.test", fail: true},
		{raw: "3kabc", fail: true},
	}

	for _, fix := range fixtures {
		ref, err := Parse(fix.raw)
		if fix.fail {
			assert.Error(err, fix.raw)
			continue
		}
		if !assert.NoError(err, fix.raw) {
			continue
		}
		assert.Equal(fix.uri, ref.URI())
		assert.Equal(fix.url, ref.URL())
		assert.Equal(fix.did, ref.IsDID())
	}
}

func TestWithAuthority(t *testing.T) {
	assert := assert.New(t)

	ref, err := Parse("https://bsky.app/profile/alice.example.com/post/3kabc")
	assert.NoError(err)
	resolved := ref.WithAuthority("did:plc:alice")
	assert.Equal("at://did:plc:alice/app.bsky.feed.post/3kabc", resolved.URI())
	assert.Equal("alice.example.com", ref.Authority)
}

func TestURIToURL(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("https://bsky.app/profile/did:plc:abc123/post/3xyz", URIToURL("at://did:plc:abc123/app.bsky.feed.post/3xyz"))
	assert.Equal("https://bsky.app/profile/x.test/post/1", URIToURL(" https://bsky.app/profile/x.test/post/1 "))
	assert.Equal("at://broken", URIToURL("at://broken"))
	assert.Equal("", URIToURL(""))
}
