package keyword

import (
	"slices"
	"strings"
)

// Checks whether the token sequence phrase appears contiguously within tokens. An empty phrase never matches.
func ContainsTokens(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		if slices.Equal(tokens[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

// Whole-word containment: "threat" matches "a threat!" but not "threatening". Multi-word terms must appear as adjacent words.
func ContainsWord(text, term string) bool {
	return ContainsTokens(TokenizeText(text), TokenizeText(term))
}

// Plain substring containment after normalization on both sides; "threat" does match "threatening".
func ContainsSubstring(text, term string) bool {
	t := NormalizeText(term)
	if t == "" {
		return false
	}
	return strings.Contains(NormalizeText(text), t)
}

// Containment after stripping everything but letters and digits from both sides, which catches spaced-out or punctuated evasions like "k.i.l.l".
func ContainsSlug(text, term string) bool {
	t := Slugify(term)
	if t == "" {
		return false
	}
	return strings.Contains(Slugify(text), t)
}
