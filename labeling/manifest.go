package labeling

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bluesky-social/coercion-labeler/automod/setstore"
)

// Higher Priority wins when sources disagree about a term.
type LexiconSource struct {
	Path     string `json:"path"`
	Priority int    `json:"priority"`
	Boundary string `json:"boundary,omitempty"`
}

type RegexSource struct {
	Path string `json:"path"`
}

// Path is either a CSV file (one list) or a JSON object of lists, in which case the list with this Name is used.
type IndicatorSource struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Label    string `json:"label"`
	Boundary string `json:"boundary,omitempty"`
}

type ScoreRuleConfig struct {
	Label     string  `json:"label"`
	Threshold float64 `json:"threshold"`
}

// JSON rules manifest, describing every rule source the engine loads. Relative paths are resolved against the manifest's directory.
//
// When Labels is non-empty, it is the closed vocabulary of concrete labels: any rule or meta member using another label is a config error.
type Manifest struct {
	Labels          []string          `json:"labels,omitempty"`
	Lexicons        []LexiconSource   `json:"lexicons"`
	Regexes         []RegexSource     `json:"regexes"`
	Indicators      []IndicatorSource `json:"indicators"`
	Meta            []MetaEntry       `json:"meta"`
	MetaPrefixes    []string          `json:"meta_prefixes"`
	Severity        map[string]int    `json:"severity"`
	SeverityByCount []SeverityStep    `json:"severity_by_count,omitempty"`
	ExternalScore   *ScoreRuleConfig  `json:"external_score,omitempty"`
}

// Reads a manifest and every source it names. Any problem is returned as a [*ConfigError].
func LoadRules(manifestPath string) (*Rules, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ConfigError{Source: manifestPath, Err: err}
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &ConfigError{Source: manifestPath, Err: fmt.Errorf("parsing manifest JSON: %w", err)}
	}
	return m.Build(filepath.Dir(manifestPath))
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Loads all sources named by the manifest, relative to baseDir.
func (m *Manifest) Build(baseDir string) (*Rules, error) {
	var rules []Rule

	// lexicons: merged across sources by explicit priority, each keeping its own boundary policy
	var lexicons [][]LexiconEntry
	boundaries := make(map[string]Boundary)
	for _, src := range m.Lexicons {
		p := resolvePath(baseDir, src.Path)
		b, err := ParseBoundary(src.Boundary)
		if err != nil {
			return nil, &ConfigError{Source: p, Err: err}
		}
		boundaries[p] = b
		entries, err := readCSVFile(p, func(r io.Reader) ([]LexiconEntry, error) {
			return ReadLexiconCSV(r, p, src.Priority)
		})
		if err != nil {
			return nil, err
		}
		lexicons = append(lexicons, entries)
	}
	merged, err := MergeLexicons(lexicons...)
	if err != nil {
		return nil, err
	}
	for _, e := range merged {
		rules = append(rules, TermRule{
			Term:          e.Term,
			Label:         e.Label,
			CaseSensitive: e.CaseSensitive,
			Boundary:      boundaries[e.Source],
			Source:        e.Source,
		})
	}

	for _, src := range m.Regexes {
		p := resolvePath(baseDir, src.Path)
		regexes, err := readCSVFile(p, func(r io.Reader) ([]RegexRule, error) {
			return ReadRegexCSV(r, p)
		})
		if err != nil {
			return nil, err
		}
		for _, re := range regexes {
			rules = append(rules, re)
		}
	}

	sets := setstore.NewMemSetStore()
	for _, src := range m.Indicators {
		p := resolvePath(baseDir, src.Path)
		if src.Name == "" || src.Label == "" {
			return nil, configErrorf(p, 0, "indicator list needs a name and a label")
		}
		if slices.Contains(sets.Names(), src.Name) {
			return nil, configErrorf(p, 0, "duplicate indicator list name %q", src.Name)
		}
		b, err := ParseBoundary(src.Boundary)
		if err != nil {
			return nil, &ConfigError{Source: p, Err: err}
		}
		if strings.HasSuffix(strings.ToLower(p), ".json") {
			all := setstore.NewMemSetStore()
			if err := all.LoadFromFileJSON(p); err != nil {
				return nil, &ConfigError{Source: p, Err: err}
			}
			sets.Add(src.Name, all.Members(src.Name)...)
		} else if err := sets.LoadFromFileCSV(p, src.Name); err != nil {
			return nil, &ConfigError{Source: p, Err: err}
		}
		terms := sets.Members(src.Name)
		if len(terms) == 0 {
			return nil, configErrorf(p, 0, "indicator list %q is empty", src.Name)
		}
		rules = append(rules, IndicatorRule{
			List:     src.Name,
			Label:    src.Label,
			Terms:    terms,
			Boundary: b,
		})
	}

	if sc := m.ExternalScore; sc != nil {
		if sc.Label == "" {
			return nil, configErrorf("external_score", 0, "external score rule has no label")
		}
		if math.IsNaN(sc.Threshold) || sc.Threshold < 0 || sc.Threshold > 1 {
			return nil, configErrorf("external_score", 0, "threshold must be within [0, 1], got %v", sc.Threshold)
		}
		rules = append(rules, ScoreRule{Label: sc.Label, Threshold: sc.Threshold})
	}

	prefixes := m.MetaPrefixes
	hasSeverity := len(m.Severity) > 0 || len(m.SeverityByCount) > 0
	if hasSeverity && !slices.Contains(prefixes, SeverityPrefix) {
		prefixes = append(prefixes, SeverityPrefix)
	}
	meta, err := NewMetaTable(m.Meta, prefixes)
	if err != nil {
		return nil, &ConfigError{Source: "meta", Err: err}
	}
	for label, level := range m.Severity {
		if level <= 0 {
			return nil, configErrorf("severity", 0, "severity for %q must be positive, got %d", label, level)
		}
	}
	steps := slices.Clone(m.SeverityByCount)
	for _, st := range steps {
		if st.MinMatches < 1 || st.Level <= 0 {
			return nil, configErrorf("severity_by_count", 0, "step needs min_matches >= 1 and a positive level, got %+v", st)
		}
	}
	slices.SortFunc(steps, func(a, b SeverityStep) int { return a.MinMatches - b.MinMatches })

	out := &Rules{
		Rules:         rules,
		Meta:          meta,
		Severity:      m.Severity,
		SeveritySteps: steps,
	}
	if len(m.Labels) > 0 {
		if err := checkVocabulary(out, m.Labels, m.Meta); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkVocabulary(r *Rules, vocab []string, meta []MetaEntry) error {
	allowed := NewLabelSet(vocab...)
	for _, rule := range r.Rules {
		if !allowed.Has(rule.RuleLabel()) {
			return configErrorf("labels", 0, "%s rule uses label %q, which is not in the label vocabulary", rule.RuleKind(), rule.RuleLabel())
		}
	}
	for _, e := range meta {
		for _, mem := range e.Members {
			if !allowed.Has(mem) {
				return configErrorf("labels", 0, "meta label %s has member %q, which is not in the label vocabulary", e.Name, mem)
			}
		}
	}
	for l := range r.Severity {
		if !allowed.Has(l) {
			return configErrorf("labels", 0, "severity configured for %q, which is not in the label vocabulary", l)
		}
	}
	return nil
}
