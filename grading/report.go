package grading

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// Final totals of an evaluation run. Scored and Skipped are always reported side by side, so rates are never silently computed over a different population.
type Report struct {
	Name string `json:"name,omitempty"`

	Scored          int `json:"scored"`
	Skipped         int `json:"skipped"`
	ExactMatches    int `json:"exact_matches"`
	LenientMatches  int `json:"lenient_matches"`
	TP              int `json:"tp"`
	FP              int `json:"fp"`
	FN              int `json:"fn"`
	SeverityTotal   int `json:"severity_total"`
	SeverityCorrect int `json:"severity_correct"`

	PerLabel   map[string]LabelCounts `json:"per_label,omitempty"`
	Posts      []PostResult           `json:"posts,omitempty"`
	Mismatches []PostResult           `json:"mismatches,omitempty"`
	Skips      []SkippedPost          `json:"skips,omitempty"`
	// gold rows rejected at load time; these never reach scoring
	Rejected []*RowError `json:"-"`
}

func ratio(num, denom int) float64 {
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

func (r *Report) ExactMatchAccuracy() float64 {
	return ratio(r.ExactMatches, r.Scored)
}

func (r *Report) LenientAccuracy() float64 {
	return ratio(r.LenientMatches, r.Scored)
}

// Pooled over every label decision in the run; zero when nothing was predicted.
func (r *Report) Precision() float64 {
	return ratio(r.TP, r.TP+r.FP)
}

// Pooled over every label decision in the run; zero when the gold set had no labels.
func (r *Report) Recall() float64 {
	return ratio(r.TP, r.TP+r.FN)
}

func (r *Report) SeverityAccuracy() float64 {
	return ratio(r.SeverityCorrect, r.SeverityTotal)
}

// Combines per-file reports in to overall totals. Per-post lists are concatenated in order.
func MergeReports(name string, reports ...*Report) *Report {
	out := &Report{
		Name:     name,
		PerLabel: make(map[string]LabelCounts),
	}
	for _, r := range reports {
		out.Scored += r.Scored
		out.Skipped += r.Skipped
		out.ExactMatches += r.ExactMatches
		out.LenientMatches += r.LenientMatches
		out.TP += r.TP
		out.FP += r.FP
		out.FN += r.FN
		out.SeverityTotal += r.SeverityTotal
		out.SeverityCorrect += r.SeverityCorrect
		for l, c := range r.PerLabel {
			acc := out.PerLabel[l]
			acc.TP += c.TP
			acc.FP += c.FP
			acc.FN += c.FN
			out.PerLabel[l] = acc
		}
		out.Posts = append(out.Posts, r.Posts...)
		out.Mismatches = append(out.Mismatches, r.Mismatches...)
		out.Skips = append(out.Skips, r.Skips...)
		out.Rejected = append(out.Rejected, r.Rejected...)
	}
	return out
}

func fmtSeverity(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func writePost(w io.Writer, p PostResult) {
	status := "MISMATCH"
	if p.Exact {
		status = "ok"
	} else if p.Lenient {
		status = "lenient"
	}
	fmt.Fprintf(w, "%s [%s]\n", p.Locator, status)
	fmt.Fprintf(w, "  predicted: %s\n", strings.Join(p.Predicted, ", "))
	fmt.Fprintf(w, "  gold:      %s\n", strings.Join(p.Gold, ", "))
	fmt.Fprintf(w, "  overlap:   %s\n", strings.Join(p.Overlap, ", "))
	if len(p.Missing) > 0 {
		fmt.Fprintf(w, "  missing:   %s\n", strings.Join(p.Missing, ", "))
	}
	if len(p.Extra) > 0 {
		fmt.Fprintf(w, "  extra:     %s\n", strings.Join(p.Extra, ", "))
	}
	if p.GoldSeverity != nil || p.PredictedSeverity != nil {
		fmt.Fprintf(w, "  severity:  predicted %s, gold %s\n", fmtSeverity(p.PredictedSeverity), fmtSeverity(p.GoldSeverity))
	}
}

// Renders the human-readable summary. With verbose, the per-post dump (every post if a breakdown was kept, otherwise only mismatches) and the per-label table are included.
func (r *Report) WriteText(w io.Writer, verbose bool) error {
	if verbose {
		posts := r.Posts
		if len(posts) == 0 {
			posts = r.Mismatches
		}
		for _, p := range posts {
			writePost(w, p)
		}
		if len(posts) > 0 {
			fmt.Fprintln(w)
		}
	}
	for _, s := range r.Skips {
		fmt.Fprintf(w, "skipped %s: %s\n", s.Locator, s.Reason)
	}
	for _, e := range r.Rejected {
		fmt.Fprintf(w, "rejected %s\n", e.Error())
	}

	title := "RESULTS"
	if r.Name != "" {
		title = "RESULTS: " + r.Name
	}
	fmt.Fprintf(w, "\n====== %s ======\n", title)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total rows:\t%d\n", r.Scored+r.Skipped)
	fmt.Fprintf(tw, "Skipped rows:\t%d\n", r.Skipped)
	fmt.Fprintf(tw, "Scored rows:\t%d\n", r.Scored)
	if len(r.Rejected) > 0 {
		fmt.Fprintf(tw, "Rejected gold rows:\t%d\n", len(r.Rejected))
	}
	fmt.Fprintf(tw, "\t\n")
	fmt.Fprintf(tw, "Exact match:\t%d/%d (%.3f)\n", r.ExactMatches, r.Scored, r.ExactMatchAccuracy())
	fmt.Fprintf(tw, "Lenient match:\t%d/%d (%.3f)\n", r.LenientMatches, r.Scored, r.LenientAccuracy())
	fmt.Fprintf(tw, "Label precision:\t%.3f (tp=%d fp=%d)\n", r.Precision(), r.TP, r.FP)
	fmt.Fprintf(tw, "Label recall:\t%.3f (tp=%d fn=%d)\n", r.Recall(), r.TP, r.FN)
	if r.SeverityTotal > 0 {
		fmt.Fprintf(tw, "Severity accuracy:\t%d/%d (%.3f)\n", r.SeverityCorrect, r.SeverityTotal, r.SeverityAccuracy())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if verbose && len(r.PerLabel) > 0 {
		labels := make([]string, 0, len(r.PerLabel))
		for l := range r.PerLabel {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "LABEL\tTP\tFP\tFN\tPRECISION\tRECALL\n")
		for _, l := range labels {
			c := r.PerLabel[l]
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.3f\t%.3f\n", l, c.TP, c.FP, c.FN, ratio(c.TP, c.TP+c.FP), ratio(c.TP, c.TP+c.FN))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
