package grading

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bluesky-social/coercion-labeler/postref"
)

// Rewrites an annotation export (columns "uri", "Labels", optionally "cid") in to gold-file shape: "URL", "Labels" as a JSON list, then the original "uri" and "cid". Any other columns are carried through after those. Returns the number of data rows written.
//
// Labels are split on commas only; the output is always a JSON list, so it round-trips through [ParseLabelCell].
func ConvertLocatorCSV(r io.Reader, w io.Writer) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	uriCol := findColumn(header, []string{"uri"})
	labelsCol := findColumn(header, labelsColumns)
	cidCol := findColumn(header, []string{"cid"})
	if uriCol < 0 {
		return 0, fmt.Errorf("input needs a \"uri\" column, got %v", header)
	}
	var extraCols []int
	for i := range header {
		if i != uriCol && i != labelsCol && i != cidCol {
			extraCols = append(extraCols, i)
		}
	}

	cw := csv.NewWriter(w)
	outHeader := []string{"URL", "Labels", "uri", "cid"}
	for _, i := range extraCols {
		outHeader = append(outHeader, header[i])
	}
	if err := cw.Write(outHeader); err != nil {
		return 0, err
	}

	n := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		get := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		uri := get(uriCol)
		labels, err := commaLabelsJSON(get(labelsCol))
		if err != nil {
			return n, err
		}
		out := []string{postref.URIToURL(uri), labels, uri, get(cidCol)}
		for _, i := range extraCols {
			out = append(out, get(i))
		}
		if err := cw.Write(out); err != nil {
			return n, err
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}

func commaLabelsJSON(cell string) (string, error) {
	vals := []string{}
	for _, v := range strings.Split(cell, ",") {
		if v = strings.TrimSpace(v); v != "" {
			vals = append(vals, v)
		}
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
