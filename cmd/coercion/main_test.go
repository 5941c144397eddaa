package main

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/bluesky-social/coercion-labeler/labeling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = "../../labeler-inputs/rules.json"

func TestCheckRules(t *testing.T) {
	var out bytes.Buffer
	assert.NoError(t, run([]string{"coercion", "--rules", testRules, "check-rules", "--list"}, &out))
	assert.Contains(t, out.String(), "prefixes: severity-level-")
	assert.Contains(t, out.String(), "[score]")

	assert.Error(t, run([]string{"coercion", "--rules", "testdata/missing.json", "check-rules"}, io.Discard))
}

func TestLabelText(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var out bytes.Buffer
	require.NoError(run([]string{"coercion", "--rules", testRules, "label", "--explain", "--json", "pay me or I leak your pics"}, &out))

	var res labelOutput
	require.NoError(json.Unmarshal(out.Bytes(), &res))
	assert.Equal("pay me or I leak your pics", res.Input)
	assert.True(res.Labels.Has("reputational coercion"))
	assert.NotEmpty(res.Matches)
}

func TestGradeOffline(t *testing.T) {
	assert := assert.New(t)

	var out bytes.Buffer
	assert.NoError(run([]string{"coercion", "--rules", testRules, "grade", "--offline", "--verbose", "testdata/gold.csv"}, &out))
	report := out.String()
	assert.Contains(report, "====== RESULTS: testdata/gold.csv ======")
	assert.Regexp(`Total rows:\s+5\n`, report)
	assert.Regexp(`Scored rows:\s+4\n`, report)
	// the gold row with a blank text cell is skipped rather than scored as an empty post
	assert.Regexp(`Skipped rows:\s+1\n`, report)
	assert.Contains(report, "skipped at://did:plc:abc123/app.bsky.feed.post/3keee")

	assert.Error(run([]string{"coercion", "--rules", testRules, "grade", "--offline"}, io.Discard))
}

func TestURI2URL(t *testing.T) {
	var out bytes.Buffer
	assert.NoError(t, run([]string{"coercion", "uri2url", "at://did:plc:abc123/app.bsky.feed.post/3kaaa"}, &out))
	assert.Equal(t, "https://bsky.app/profile/did:plc:abc123/post/3kaaa\n", out.String())

	assert.Error(t, run([]string{"coercion", "uri2url"}, io.Discard))
}

func TestRulesTree(t *testing.T) {
	rules, err := labeling.LoadRules(testRules)
	require.NoError(t, err)

	out := rulesTree(rules).String()
	assert.True(t, strings.HasPrefix(out, "rules\n"))
	for _, label := range rules.Labels() {
		assert.Contains(t, out, label)
	}
	assert.Contains(t, out, "[score]")
	assert.Contains(t, out, "threshold=0.9")
}
