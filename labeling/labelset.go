package labeling

import (
	"encoding/json"
	"sort"
	"strings"
)

// Unordered set of label values. Iterate with [LabelSet.Sorted] when output needs to be reproducible.
//
// A nil LabelSet can be read from (it is empty), but not added to; use [NewLabelSet].
type LabelSet map[string]struct{}

func NewLabelSet(vals ...string) LabelSet {
	s := make(LabelSet, len(vals))
	s.Add(vals...)
	return s
}

// Blank values are ignored.
func (s LabelSet) Add(vals ...string) {
	for _, v := range vals {
		if v != "" {
			s[v] = struct{}{}
		}
	}
}

func (s LabelSet) Has(val string) bool {
	_, ok := s[val]
	return ok
}

func (s LabelSet) Remove(val string) {
	delete(s, val)
}

func (s LabelSet) Len() int {
	return len(s)
}

// Members in lexical order. Never returns nil.
func (s LabelSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s LabelSet) Equal(other LabelSet) bool {
	if len(s) != len(other) {
		return false
	}
	for v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

func (s LabelSet) Clone() LabelSet {
	out := make(LabelSet, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Returns a new set with only the members for which keep returns true.
func (s LabelSet) Filter(keep func(string) bool) LabelSet {
	out := make(LabelSet, len(s))
	for v := range s {
		if keep(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

// Members of s which are also in other, sorted.
func (s LabelSet) Intersect(other LabelSet) []string {
	return s.Filter(other.Has).Sorted()
}

// Members of s which are not in other, sorted.
func (s LabelSet) Difference(other LabelSet) []string {
	return s.Filter(func(v string) bool { return !other.Has(v) }).Sorted()
}

func (s LabelSet) String() string {
	return "[" + strings.Join(s.Sorted(), ", ") + "]"
}

// Serializes as a sorted JSON array of strings.
func (s LabelSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *LabelSet) UnmarshalJSON(raw []byte) error {
	var vals []string
	if err := json.Unmarshal(raw, &vals); err != nil {
		return err
	}
	*s = NewLabelSet(vals...)
	return nil
}
