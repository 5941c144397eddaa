package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Hello, โลก!", out: []string{"hello", "โลก"}},
		{text: "Gdańsk", out: []string{"gdansk"}},
		{text: "Send it\nNOW or else", out: []string{"send", "it", "now", "or", "else"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TokenizeText(fix.text))
	}
}

func TestTokenizeTextCaseSensitive(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"Send", "it", "NOW"}, TokenizeTextCaseSensitive("Send it, NOW!"))
}

func TestNormalizeText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  string
	}{
		{text: "", out: ""},
		{text: "  Do   it\n\nNOW!  ", out: "do it now!"},
		{text: "Gdańsk", out: "gdansk"},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, NormalizeText(fix.text))
	}

	orig := "Keep ME"
	_ = NormalizeText(orig)
	assert.Equal("Keep ME", orig)
}

func TestCollapseWhitespace(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Do it NOW", CollapseWhitespace(" Do\tit \n NOW "))
}

func TestSlugify(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("killyou", Slugify("K.I.L.L  yoü"))
	assert.Equal("", Slugify("?!"))
}
