package keyword

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// Takes arbitrary free-form text and returns a version with accents folded, all non-letter, non-digit characters removed, and all lower-case.
//
// For example, "K.I.L.L  yoü" becomes "killyou".
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(foldMarks(orig), ""))
}
