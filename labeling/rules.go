package labeling

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bluesky-social/coercion-labeler/automod/keyword"
)

type RuleKind string

const (
	KindTerm      RuleKind = "term"
	KindRegex     RuleKind = "regex"
	KindIndicator RuleKind = "indicator"
	KindScore     RuleKind = "score"

	// Not a rule: a review meta label raised by a trigger string. Only appears in [Match].
	KindReview RuleKind = "review"
)

// How a term is located inside post text.
type Boundary string

const (
	// term must appear as whole words (adjacent words, for multi-word terms)
	BoundaryWord Boundary = "word"
	// term may appear anywhere, including inside other words
	BoundarySubstring Boundary = "substring"
	// like substring, but punctuation and spaces are stripped from both sides first
	BoundarySlug Boundary = "slug"
)

// An empty string is [BoundaryWord].
func ParseBoundary(raw string) (Boundary, error) {
	switch Boundary(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BoundaryWord:
		return BoundaryWord, nil
	case BoundarySubstring:
		return BoundarySubstring, nil
	case BoundarySlug:
		return BoundarySlug, nil
	}
	return "", fmt.Errorf("unknown boundary policy: %q", raw)
}

// A single labeling rule. The set of implementations is closed: [TermRule], [RegexRule], [IndicatorRule] and [ScoreRule].
type Rule interface {
	RuleKind() RuleKind
	RuleLabel() string
	isRule()
}

// One lexicon entry: a term or phrase mapped to a label.
type TermRule struct {
	Term          string
	Label         string
	CaseSensitive bool
	Boundary      Boundary
	Source        string
}

// Pattern is compiled at load time; case-insensitive patterns are compiled with the (?i) flag.
type RegexRule struct {
	Pattern       *regexp.Regexp
	Label         string
	CaseSensitive bool
	Source        string
}

// A named flat list of trigger terms, all mapping to one label.
type IndicatorRule struct {
	List     string
	Label    string
	Terms    []string
	Boundary Boundary
}

// Adds Label when the external score service returns a score strictly above Threshold.
type ScoreRule struct {
	Label     string
	Threshold float64
}

func (r TermRule) RuleKind() RuleKind      { return KindTerm }
func (r RegexRule) RuleKind() RuleKind     { return KindRegex }
func (r IndicatorRule) RuleKind() RuleKind { return KindIndicator }
func (r ScoreRule) RuleKind() RuleKind     { return KindScore }

func (r TermRule) RuleLabel() string      { return r.Label }
func (r RegexRule) RuleLabel() string     { return r.Label }
func (r IndicatorRule) RuleLabel() string { return r.Label }
func (r ScoreRule) RuleLabel() string     { return r.Label }

func (TermRule) isRule()      {}
func (RegexRule) isRule()     {}
func (IndicatorRule) isRule() {}
func (ScoreRule) isRule()     {}

// Compiles a pattern for a [RegexRule].
func CompilePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty regex pattern")
	}
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

// The loaded, immutable rule tables that an [Engine] evaluates.
type Rules struct {
	Rules []Rule
	Meta  *MetaTable

	// Concrete label → severity level. The highest level among matched labels is emitted as a "severity-level-N" label.
	Severity map[string]int

	// Escalates severity by the number of distinct rules that matched, sorted by MinMatches.
	SeveritySteps []SeverityStep
}

type SeverityStep struct {
	MinMatches int `json:"min_matches"`
	Level      int `json:"level"`
}

// Sorted set of concrete labels that the rules can produce.
func (r *Rules) Labels() []string {
	s := NewLabelSet()
	for _, rule := range r.Rules {
		s.Add(rule.RuleLabel())
	}
	return s.Sorted()
}

// Number of rules of each kind.
func (r *Rules) Counts() map[RuleKind]int {
	out := make(map[RuleKind]int)
	for _, rule := range r.Rules {
		out[rule.RuleKind()]++
	}
	return out
}

// Human-readable one-line summary, for logs and the check-rules command.
func (r *Rules) Summary() string {
	counts := r.Counts()
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[RuleKind(k)]))
	}
	return strings.Join(parts, " ")
}

// Pre-computed views of one post's text, shared by every rule in a single labeling pass.
type postText struct {
	// whitespace-collapsed, original case
	raw        string
	norm       string
	tokens     []string
	caseTokens []string
	slug       string
}

func newPostText(text string) *postText {
	return &postText{
		raw:        keyword.CollapseWhitespace(text),
		norm:       keyword.NormalizeText(text),
		tokens:     keyword.TokenizeText(text),
		caseTokens: keyword.TokenizeTextCaseSensitive(text),
		slug:       keyword.Slugify(text),
	}
}

func (pt *postText) containsTerm(term string, caseSensitive bool, b Boundary) bool {
	switch b {
	case BoundarySubstring:
		if caseSensitive {
			t := keyword.CollapseWhitespace(term)
			return t != "" && strings.Contains(pt.raw, t)
		}
		t := keyword.NormalizeText(term)
		return t != "" && strings.Contains(pt.norm, t)
	case BoundarySlug:
		t := keyword.Slugify(term)
		return t != "" && strings.Contains(pt.slug, t)
	default:
		if caseSensitive {
			return keyword.ContainsTokens(pt.caseTokens, keyword.TokenizeTextCaseSensitive(term))
		}
		return keyword.ContainsTokens(pt.tokens, keyword.TokenizeText(term))
	}
}

// Returns the matched span, if any.
func (pt *postText) matchRegex(r RegexRule) (string, bool) {
	text := pt.norm
	if r.CaseSensitive {
		text = pt.raw
	}
	loc := r.Pattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return text[loc[0]:loc[1]], true
}
