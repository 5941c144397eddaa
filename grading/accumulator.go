package grading

import (
	"strings"

	"github.com/bluesky-social/coercion-labeler/labeling"
)

const DefaultReviewLabel = "meta:needs-human-review"

type Config struct {
	// Labels excluded from scoring on both sides. Defaults to [DefaultReviewLabel].
	MetaLabels []string
	// Label prefixes excluded from scoring. Defaults to the severity label prefix.
	MetaPrefixes []string
	// Optional rules meta table; anything it marks as meta is excluded too.
	Meta *labeling.MetaTable

	// Keep a per-post breakdown of every scored post, not only mismatches.
	KeepBreakdown bool
}

// One (predicted, gold) comparison for [Evaluate]. Skipped pairs count only towards the skipped total.
type Pair struct {
	Locator      string
	Predicted    labeling.LabelSet
	Gold         labeling.LabelSet
	GoldSeverity *int
	Skipped      bool
	SkipReason   string
}

// Per-post comparison of concrete labels.
type PostResult struct {
	Locator   string   `json:"locator"`
	Predicted []string `json:"predicted"`
	Gold      []string `json:"gold"`
	Overlap   []string `json:"overlap"`
	Missing   []string `json:"missing"`
	Extra     []string `json:"extra"`
	Exact     bool     `json:"exact"`
	// no missing labels, and at most one extra
	Lenient           bool `json:"lenient"`
	PredictedSeverity *int `json:"predicted_severity,omitempty"`
	GoldSeverity      *int `json:"gold_severity,omitempty"`
}

type SkippedPost struct {
	Locator string `json:"locator"`
	Reason  string `json:"reason"`
}

type LabelCounts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Running totals for one evaluation run. Not safe for concurrent use; posts are added in order by a single loop.
type Accumulator struct {
	cfg        Config
	metaLabels labeling.LabelSet

	scored          int
	exact           int
	lenient         int
	tp, fp, fn      int
	severityTotal   int
	severityCorrect int
	perLabel        map[string]*LabelCounts
	posts           []PostResult
	mismatches      []PostResult
	skips           []SkippedPost
}

func NewAccumulator(cfg Config) *Accumulator {
	if cfg.MetaLabels == nil {
		cfg.MetaLabels = []string{DefaultReviewLabel}
	}
	if cfg.MetaPrefixes == nil {
		cfg.MetaPrefixes = []string{labeling.SeverityPrefix}
	}
	return &Accumulator{
		cfg:        cfg,
		metaLabels: labeling.NewLabelSet(cfg.MetaLabels...),
		perLabel:   make(map[string]*LabelCounts),
	}
}

func (a *Accumulator) isMeta(label string) bool {
	if a.metaLabels.Has(label) || a.cfg.Meta.IsMeta(label) {
		return true
	}
	for _, p := range a.cfg.MetaPrefixes {
		if strings.HasPrefix(label, p) {
			return true
		}
	}
	return false
}

func (a *Accumulator) core(s labeling.LabelSet) labeling.LabelSet {
	return s.Filter(func(l string) bool { return !a.isMeta(l) })
}

func (a *Accumulator) counts(label string) *LabelCounts {
	c, ok := a.perLabel[label]
	if !ok {
		c = &LabelCounts{}
		a.perLabel[label] = c
	}
	return c
}

// Scores one post. Meta labels are removed from both sides before comparing.
func (a *Accumulator) Add(locator string, predicted, gold labeling.LabelSet, goldSeverity *int) PostResult {
	pred := a.core(predicted)
	want := a.core(gold)

	res := PostResult{
		Locator:           locator,
		Predicted:         pred.Sorted(),
		Gold:              want.Sorted(),
		Overlap:           pred.Intersect(want),
		Missing:           want.Difference(pred),
		Extra:             pred.Difference(want),
		PredictedSeverity: predictedSeverity(predicted),
		GoldSeverity:      goldSeverity,
	}
	res.Exact = pred.Equal(want)
	res.Lenient = len(res.Missing) == 0 && len(res.Extra) <= 1

	a.scored++
	if res.Exact {
		a.exact++
	}
	if res.Lenient {
		a.lenient++
	}
	a.tp += len(res.Overlap)
	a.fp += len(res.Extra)
	a.fn += len(res.Missing)
	for _, l := range res.Overlap {
		a.counts(l).TP++
	}
	for _, l := range res.Extra {
		a.counts(l).FP++
	}
	for _, l := range res.Missing {
		a.counts(l).FN++
	}
	if goldSeverity != nil {
		a.severityTotal++
		if res.PredictedSeverity != nil && *res.PredictedSeverity == *goldSeverity {
			a.severityCorrect++
		}
	}

	if a.cfg.KeepBreakdown {
		a.posts = append(a.posts, res)
	}
	if !res.Exact {
		a.mismatches = append(a.mismatches, res)
		postsGraded.WithLabelValues("mismatch").Inc()
	} else {
		postsGraded.WithLabelValues("exact").Inc()
	}
	return res
}

// Records a post that could not be scored. It contributes to no other total.
func (a *Accumulator) Skip(locator, reason string) {
	a.skips = append(a.skips, SkippedPost{Locator: locator, Reason: reason})
	postsGraded.WithLabelValues("skipped").Inc()
}

// Finalizes the totals into a report. The accumulator may keep being used; the report is a snapshot.
func (a *Accumulator) Report() *Report {
	rep := &Report{
		Scored:          a.scored,
		Skipped:         len(a.skips),
		ExactMatches:    a.exact,
		LenientMatches:  a.lenient,
		TP:              a.tp,
		FP:              a.fp,
		FN:              a.fn,
		SeverityTotal:   a.severityTotal,
		SeverityCorrect: a.severityCorrect,
		PerLabel:        make(map[string]LabelCounts, len(a.perLabel)),
		Posts:           append([]PostResult(nil), a.posts...),
		Mismatches:      append([]PostResult(nil), a.mismatches...),
		Skips:           append([]SkippedPost(nil), a.skips...),
	}
	for l, c := range a.perLabel {
		rep.PerLabel[l] = *c
	}
	return rep
}

// Scores a batch of pairs in order.
func Evaluate(pairs []Pair, cfg Config) *Report {
	acc := NewAccumulator(cfg)
	for _, p := range pairs {
		if p.Skipped {
			acc.Skip(p.Locator, p.SkipReason)
			continue
		}
		acc.Add(p.Locator, p.Predicted, p.Gold, p.GoldSeverity)
	}
	return acc.Report()
}

// Highest severity level among "severity-level-N" labels, if any.
func predictedSeverity(labels labeling.LabelSet) *int {
	var out *int
	for l := range labels {
		if n, ok := labeling.ParseSeverityLabel(l); ok && (out == nil || n > *out) {
			v := n
			out = &v
		}
	}
	return out
}
