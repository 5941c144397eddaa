package labeling

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bluesky-social/coercion-labeler/automod/keyword"
)

type LexiconEntry struct {
	Term          string
	Label         string
	CaseSensitive bool

	Source   string
	Priority int
	Row      int
}

// Identity of a term for conflict detection: case-insensitive entries compare normalized, case-sensitive ones compare as written.
func (e LexiconEntry) key() string {
	if e.CaseSensitive {
		return "cs:" + keyword.CollapseWhitespace(e.Term)
	}
	return "ci:" + keyword.NormalizeText(e.Term)
}

// Reads a CSV lexicon with a header row containing at least "term" and "label" columns, and optionally "case_sensitive".
//
// Within a single source a term may only map to one label; repeating the same term→label row is allowed.
func ReadLexiconCSV(r io.Reader, source string, priority int) ([]LexiconEntry, error) {
	rows, cols, err := readTable(r, source, "term", "label")
	if err != nil {
		return nil, err
	}
	csCol, hasCS := cols["case_sensitive"]

	seen := make(map[string]LexiconEntry)
	var out []LexiconEntry
	for _, row := range rows {
		e := LexiconEntry{
			Term:     strings.TrimSpace(row.get(cols["term"])),
			Label:    strings.TrimSpace(row.get(cols["label"])),
			Source:   source,
			Priority: priority,
			Row:      row.line,
		}
		if e.Term == "" || e.Label == "" {
			return nil, configErrorf(source, row.line, "lexicon row needs both a term and a label")
		}
		if hasCS {
			e.CaseSensitive, err = parseFlag(row.get(csCol))
			if err != nil {
				return nil, &ConfigError{Source: source, Row: row.line, Err: err}
			}
		}
		if prev, ok := seen[e.key()]; ok {
			if prev.Label != e.Label {
				return nil, configErrorf(source, row.line, "term %q maps to both %q (line %d) and %q", e.Term, prev.Label, prev.Row, e.Label)
			}
			continue
		}
		seen[e.key()] = e
		out = append(out, e)
	}
	return out, nil
}

// Combines lexicon sources. When the same term appears in several sources with different labels, the entry from the source with the higher priority wins; equal priorities with different labels are a configuration error. Load order never decides.
//
// Output is sorted by term, for reproducible rule order.
func MergeLexicons(sources ...[]LexiconEntry) ([]LexiconEntry, error) {
	merged := make(map[string]LexiconEntry)
	for _, src := range sources {
		for _, e := range src {
			prev, ok := merged[e.key()]
			if !ok || e.Priority > prev.Priority {
				merged[e.key()] = e
				continue
			}
			if e.Priority == prev.Priority && e.Label != prev.Label {
				return nil, configErrorf(e.Source, e.Row, "term %q maps to %q here but %q in %s, at the same priority (%d)", e.Term, e.Label, prev.Label, prev.Source, e.Priority)
			}
		}
	}
	out := make([]LexiconEntry, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Term != out[j].Term {
			return out[i].Term < out[j].Term
		}
		return out[i].key() < out[j].key()
	})
	return out, nil
}

// Reads a CSV of regex rules with "pattern" and "label" columns, and optionally "case_sensitive". Patterns are compiled here; any invalid pattern fails the whole source.
func ReadRegexCSV(r io.Reader, source string) ([]RegexRule, error) {
	rows, cols, err := readTable(r, source, "pattern", "label")
	if err != nil {
		return nil, err
	}
	csCol, hasCS := cols["case_sensitive"]

	var out []RegexRule
	for _, row := range rows {
		pattern := row.get(cols["pattern"])
		label := strings.TrimSpace(row.get(cols["label"]))
		if label == "" {
			return nil, configErrorf(source, row.line, "regex row has no label")
		}
		cs := false
		if hasCS {
			cs, err = parseFlag(row.get(csCol))
			if err != nil {
				return nil, &ConfigError{Source: source, Row: row.line, Err: err}
			}
		}
		re, err := CompilePattern(pattern, cs)
		if err != nil {
			return nil, configErrorf(source, row.line, "invalid pattern %q: %w", pattern, err)
		}
		out = append(out, RegexRule{
			Pattern:       re,
			Label:         label,
			CaseSensitive: cs,
			Source:        source,
		})
	}
	return out, nil
}

func readCSVFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, &ConfigError{Source: path, Err: err}
	}
	defer func() { _ = f.Close() }()
	return read(f)
}

type tableRow struct {
	line   int
	fields []string
}

func (r tableRow) get(col int) string {
	if col < 0 || col >= len(r.fields) {
		return ""
	}
	return r.fields[col]
}

// Reads a CSV with a header row, returning data rows and a lower-cased column index. Blank lines and lines starting with "#" are skipped.
func readTable(r io.Reader, source string, required ...string) ([]tableRow, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, configErrorf(source, 0, "empty file, expected a header row")
	}
	if err != nil {
		return nil, nil, &ConfigError{Source: source, Err: err}
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range required {
		if _, ok := cols[req]; !ok {
			return nil, nil, configErrorf(source, 1, "missing required column %q", req)
		}
	}

	var rows []tableRow
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, &ConfigError{Source: source, Err: err}
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, tableRow{line: line, fields: fields})
	}
	return rows, cols, nil
}

// Blank is false.
func parseFlag(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
	return v, nil
}
