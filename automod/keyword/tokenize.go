package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// removes combining marks (accents), so "Gdańsk" folds to "Gdansk". Case is not changed.
func foldMarks(text string) string {
	// this needs to be re-defined in every function call to prevent a race condition
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(normFunc, text)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return text
	}
	return out
}

// Collapses all runs of whitespace to a single space, and trims the ends. Case and punctuation are preserved.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// Returns a lower-case, accent-folded, whitespace-collapsed copy of free-form text. Punctuation is kept, so regex patterns can still see it.
func NormalizeText(text string) string {
	return CollapseWhitespace(foldMarks(strings.ToLower(text)))
}

// Splits free-form text in to tokens, including lower-case, unicode normalization, and some unicode folding.
//
// The intent is for this to work similarly to an NLP tokenizer, as might be used in a fulltext search engine, and enable fast matching to a list of known tokens.
func TokenizeText(text string) []string {
	return tokenize(text, true)
}

// Like [TokenizeText], but keeps the original case of each token.
func TokenizeTextCaseSensitive(text string) []string {
	return tokenize(text, false)
}

func tokenize(text string, lower bool) []string {
	bare := nonTokenChars.ReplaceAllString(text, " ")
	if lower {
		bare = strings.ToLower(bare)
	}
	return strings.Fields(foldMarks(bare))
}
