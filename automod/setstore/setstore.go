package setstore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

// In-process named string sets. Sets are written at load time and only read afterwards, so no locking is done.
type MemSetStore struct {
	Sets map[string]map[string]bool
}

var _ SetStore = MemSetStore{}

func NewMemSetStore() MemSetStore {
	return MemSetStore{
		Sets: make(map[string]map[string]bool),
	}
}

func (s MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	set, ok := s.Sets[name]
	if !ok {
		// NOTE: currently returns false when entire set isn't found
		return false, nil
	}
	_, ok = set[val]
	return ok, nil
}

// Returns the members of a named set in sorted order, or nil if the set doesn't exist.
func (s MemSetStore) Members(name string) []string {
	set, ok := s.Sets[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Sorted names of all loaded sets.
func (s MemSetStore) Names() []string {
	out := make([]string, 0, len(s.Sets))
	for name := range s.Sets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Adds values to a named set, creating it if needed. Blank values are ignored.
func (s MemSetStore) Add(name string, vals ...string) {
	set, ok := s.Sets[name]
	if !ok {
		set = make(map[string]bool, len(vals))
		s.Sets[name] = set
	}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = true
		}
	}
}

// Loads a JSON object mapping set names to arrays of strings.
func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return fmt.Errorf("parsing set file %s: %w", p, err)
	}

	for name, l := range sets {
		s.Add(name, l...)
	}
	return nil
}

// Loads a single named set from a CSV file with a header row. Values are read from the "term" column if present, otherwise from the first column.
func (s *MemSetStore) LoadFromFileCSV(p, name string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("set file %s is empty", p)
	}
	if err != nil {
		return fmt.Errorf("reading set file %s: %w", p, err)
	}
	col := 0
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "term") {
			col = i
		}
	}

	var vals []string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading set file %s: %w", p, err)
		}
		if col < len(row) {
			vals = append(vals, row[col])
		}
	}
	s.Add(name, vals...)
	return nil
}
