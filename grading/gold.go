package grading

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/bluesky-social/coercion-labeler/labeling"
)

// One human-labeled post from a gold file.
type GoldRow struct {
	File string
	// 1-based line in the gold file
	Line    int
	Locator string
	Labels  labeling.LabelSet
	// nil when the file has no severity column, or the cell is blank
	Severity *int
	// post text carried in the gold file itself; HasText is false when the column is missing or the cell is blank
	Text    string
	HasText bool
}

// A gold row rejected at load time because a cell could not be parsed. The rest of the file still loads.
type RowError struct {
	File    string
	Line    int
	Locator string
	Err     error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.File, e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

var (
	ErrNoValidRows = errors.New("gold file has no valid rows")

	labelSyntax = regexp.MustCompile(`^[\pL\pN][\pL\pN:_ .-]*$`)
	labelSplit  = regexp.MustCompile(`[,;|]`)
)

// accepted header names (case-insensitive) for each gold column
var (
	locatorColumns  = []string{"url", "uri", "post", "locator"}
	labelsColumns   = []string{"labels", "label"}
	severityColumns = []string{"severity_level", "severity"}
	textColumns     = []string{"text"}
)

// Parses a gold Labels cell: either a JSON array of strings, or a list delimited by commas, semicolons, or pipes. A blank cell is the empty set.
func ParseLabelCell(cell string) (labeling.LabelSet, error) {
	cell = strings.TrimSpace(cell)
	out := labeling.NewLabelSet()
	if cell == "" {
		return out, nil
	}
	var vals []string
	if strings.HasPrefix(cell, "[") {
		if err := json.Unmarshal([]byte(cell), &vals); err != nil {
			return nil, fmt.Errorf("labels cell is not a JSON list of strings: %w", err)
		}
	} else {
		vals = labelSplit.Split(cell, -1)
	}
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !labelSyntax.MatchString(v) {
			return nil, fmt.Errorf("invalid label %q", v)
		}
		out.Add(v)
	}
	return out, nil
}

func parseSeverityCell(cell string) (*int, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	// spreadsheets sometimes export integers as "3.0"
	cell = strings.TrimSuffix(cell, ".0")
	n, err := strconv.Atoi(cell)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid severity level %q", cell)
	}
	return &n, nil
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

// Reads a gold CSV. The header must name a locator column (URL or URI) and a Labels column; Severity_level and Text columns are optional.
//
// Rows with unparseable cells are returned as RowErrors rather than failing the load. The returned error is only for problems with the file as a whole.
func ParseGoldCSV(r io.Reader, name string) ([]GoldRow, []*RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s: empty gold file", name)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: reading header: %w", name, err)
	}
	locCol := findColumn(header, locatorColumns)
	labelsCol := findColumn(header, labelsColumns)
	if locCol < 0 || labelsCol < 0 {
		return nil, nil, fmt.Errorf("%s: header needs a URL/URI column and a Labels column, got %v", name, header)
	}
	sevCol := findColumn(header, severityColumns)
	textCol := findColumn(header, textColumns)

	var rows []GoldRow
	var rejected []*RowError
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, nil, fmt.Errorf("%s: %w", name, err)
			}
			rejected = append(rejected, &RowError{File: name, Line: perr.StartLine, Err: perr.Err})
			continue
		}
		line, _ := cr.FieldPos(0)
		get := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		row := GoldRow{
			File:    name,
			Line:    line,
			Locator: strings.TrimSpace(get(locCol)),
		}
		if row.Locator == "" {
			if strings.TrimSpace(strings.Join(rec, "")) == "" {
				// blank line
				continue
			}
			rejected = append(rejected, &RowError{File: name, Line: line, Err: fmt.Errorf("row has no post locator")})
			continue
		}
		row.Labels, err = ParseLabelCell(get(labelsCol))
		if err != nil {
			rejected = append(rejected, &RowError{File: name, Line: line, Locator: row.Locator, Err: err})
			continue
		}
		if sevCol >= 0 {
			row.Severity, err = parseSeverityCell(get(sevCol))
			if err != nil {
				rejected = append(rejected, &RowError{File: name, Line: line, Locator: row.Locator, Err: err})
				continue
			}
		}
		if textCol >= 0 {
			row.Text = get(textCol)
			row.HasText = strings.TrimSpace(row.Text) != ""
		}
		rows = append(rows, row)
	}
	return rows, rejected, nil
}

// Opens and parses a gold CSV file. See [ParseGoldCSV].
func LoadGoldCSV(path string) ([]GoldRow, []*RowError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ParseGoldCSV(f, path)
}
