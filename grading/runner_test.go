package grading

import (
	"context"
	"strings"
	"testing"

	"github.com/bluesky-social/coercion-labeler/fetch"
	"github.com/bluesky-social/coercion-labeler/labeling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labels a post "coercion" when its text contains "or else"
type fakeLabeler struct {
	texts []string
}

func (l *fakeLabeler) Label(ctx context.Context, text string) labeling.LabelSet {
	l.texts = append(l.texts, text)
	out := labeling.NewLabelSet()
	if strings.Contains(text, "or else") {
		out.Add("coercion", "meta:needs-human-review")
	}
	return out
}

func testRows() []GoldRow {
	return []GoldRow{
		{Line: 2, Locator: "at://did:plc:abc123/app.bsky.feed.post/1", Labels: ls("coercion"), Text: "gold text or else", HasText: true},
		{Line: 3, Locator: "at://did:plc:abc123/app.bsky.feed.post/2", Labels: ls()},
		{Line: 4, Locator: "at://did:plc:abc123/app.bsky.feed.post/missing", Labels: ls("threat")},
	}
}

func TestRunner(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	lab := &fakeLabeler{}
	r := Runner{
		Fetcher: fetch.StaticFetcher{Texts: map[string]string{
			"at://did:plc:abc123/app.bsky.feed.post/1": "pay up or else",
			"at://did:plc:abc123/app.bsky.feed.post/2": "nice day",
		}},
		Labeler: lab,
	}
	rep, err := r.Run(context.Background(), "test", testRows())
	require.NoError(err)
	assert.Equal("test", rep.Name)
	assert.Equal(2, rep.Scored)
	assert.Equal(1, rep.Skipped)
	assert.Equal(2, rep.ExactMatches)
	assert.Equal(1.0, rep.Precision())
	assert.Equal("at://did:plc:abc123/app.bsky.feed.post/missing", rep.Skips[0].Locator)
	assert.Contains(rep.Skips[0].Reason, "not found")
	// fetched text, not gold text
	assert.Equal([]string{"pay up or else", "nice day"}, lab.texts)
}

func TestRunnerPreferGoldText(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	lab := &fakeLabeler{}
	r := Runner{
		Fetcher:        fetch.StaticFetcher{Texts: map[string]string{}},
		Labeler:        lab,
		PreferGoldText: true,
	}
	rep, err := r.Run(context.Background(), "offline", testRows())
	require.NoError(err)
	// only the first row carries text
	assert.Equal(1, rep.Scored)
	assert.Equal(2, rep.Skipped)
	assert.Equal([]string{"gold text or else"}, lab.texts)
}

func TestRunnerBlankGoldText(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	gold := "URL,Labels,Text\n" +
		"at://did:plc:abc123/app.bsky.feed.post/1,coercion,pay up or else\n" +
		"at://did:plc:abc123/app.bsky.feed.post/2,threat,\n" +
		"at://did:plc:abc123/app.bsky.feed.post/3,threat,   \n"
	rows, rejected, err := ParseGoldCSV(strings.NewReader(gold), "blank.csv")
	require.NoError(err)
	require.Empty(rejected)
	require.Len(rows, 3)
	assert.True(rows[0].HasText)
	assert.False(rows[1].HasText)
	assert.False(rows[2].HasText)

	lab := &fakeLabeler{}
	r := Runner{
		Fetcher:        fetch.StaticFetcher{},
		Labeler:        lab,
		PreferGoldText: true,
	}
	rep, err := r.Run(context.Background(), "blank", rows)
	require.NoError(err)
	assert.Equal(1, rep.Scored)
	assert.Equal(2, rep.Skipped)
	assert.Equal(0, rep.FN)
	assert.Equal(1.0, rep.Recall())
	assert.Equal([]string{"pay up or else"}, lab.texts)
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := Runner{
		Fetcher: fetch.StaticFetcher{},
		Labeler: &fakeLabeler{},
	}
	rep, err := r.Run(ctx, "cancelled", testRows())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, rep.Scored+rep.Skipped)
}
