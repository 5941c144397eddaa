package labeling

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Prefix of the severity labels emitted by the engine, eg "severity-level-3".
const SeverityPrefix = "severity-level-"

func SeverityLabel(level int) string {
	return SeverityPrefix + strconv.Itoa(level)
}

// Parses the level out of a "severity-level-N" label.
func ParseSeverityLabel(label string) (int, bool) {
	if !strings.HasPrefix(label, SeverityPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(label, SeverityPrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

// A meta label and the concrete labels which trigger it.
//
// A ReviewOnly entry with no Members is an administrative flag (eg, "needs-human-review"). With Triggers, it is raised when any trigger string appears in the normalized post text, whether or not concrete labels matched. Without Triggers, it is raised whenever any concrete label is present.
type MetaEntry struct {
	Name       string   `json:"name"`
	Members    []string `json:"members,omitempty"`
	ReviewOnly bool     `json:"review_only,omitempty"`
	Triggers   []string `json:"triggers,omitempty"`
}

// Aggregate and administrative labels. These are added on top of concrete labels, never in place of them, and are excluded from scoring.
type MetaTable struct {
	entries  []MetaEntry
	names    map[string]bool
	prefixes []string
}

func NewMetaTable(entries []MetaEntry, prefixes []string) (*MetaTable, error) {
	t := &MetaTable{
		names: make(map[string]bool, len(entries)),
	}
	for _, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			return nil, fmt.Errorf("meta label with empty name")
		}
		if t.names[e.Name] {
			return nil, fmt.Errorf("duplicate meta label: %s", e.Name)
		}
		if len(e.Members) == 0 && !e.ReviewOnly {
			return nil, fmt.Errorf("meta label %s has no members and is not review-only", e.Name)
		}
		if len(e.Triggers) > 0 && (!e.ReviewOnly || len(e.Members) > 0) {
			return nil, fmt.Errorf("meta label %s: only member-less review-only labels can have triggers", e.Name)
		}
		for _, m := range e.Members {
			if m == e.Name {
				return nil, fmt.Errorf("meta label %s lists itself as a member", e.Name)
			}
		}
		t.names[e.Name] = true
		t.entries = append(t.entries, e)
	}
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			t.prefixes = append(t.prefixes, p)
		}
	}
	return t, nil
}

// Whether a label is a meta label, by name or by prefix. Safe on a nil table.
func (t *MetaTable) IsMeta(label string) bool {
	if t == nil {
		return false
	}
	if t.names[label] {
		return true
	}
	for _, p := range t.prefixes {
		if strings.HasPrefix(label, p) {
			return true
		}
	}
	return false
}

// Returns the sorted meta labels triggered by a set of concrete labels. Meta labels already present in the input don't count as triggers.
func (t *MetaTable) Resolve(labels LabelSet) []string {
	if t == nil {
		return nil
	}
	concrete := labels.Filter(func(v string) bool { return !t.IsMeta(v) })
	if concrete.Len() == 0 {
		return nil
	}
	var out []string
	for _, e := range t.entries {
		if len(e.Triggers) > 0 {
			continue
		}
		if len(e.Members) == 0 {
			out = append(out, e.Name)
			continue
		}
		for _, m := range e.Members {
			if concrete.Has(m) {
				out = append(out, e.Name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Review labels raised by trigger strings in the text, one match per label.
func (t *MetaTable) triggered(pt *postText) []Match {
	if t == nil {
		return nil
	}
	var out []Match
	for _, e := range t.entries {
		for _, trig := range e.Triggers {
			if pt.containsTerm(trig, false, BoundarySubstring) {
				out = append(out, Match{Kind: KindReview, Label: e.Name, Detail: trig})
				break
			}
		}
	}
	return out
}

func (t *MetaTable) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.names))
	for n := range t.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (t *MetaTable) Prefixes() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.prefixes...)
}
