package labeling

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bluesky-social/coercion-labeler/automod/helpers"
)

// Capability for an external toxicity or coercion score service. Scores are expected in [0, 1].
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

type Config struct {
	Logger *slog.Logger

	// Optional. When nil, any score rule is skipped.
	Scorer       Scorer
	ScoreTimeout time.Duration

	// Drop URLs from the text before term, indicator, and regex matching.
	IgnoreURLs bool
}

// Maps post text to a set of policy labels. An Engine is immutable after construction and safe for concurrent use, as long as the Scorer is.
type Engine struct {
	rules        *Rules
	scorer       Scorer
	scoreTimeout time.Duration
	ignoreURLs   bool
	logger       *slog.Logger
}

func NewEngine(rules *Rules, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "labeling")
	timeout := cfg.ScoreTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if cfg.Scorer == nil && rules.Counts()[KindScore] > 0 {
		logger.Info("no external scorer configured, score rule will be skipped")
	}
	return &Engine{
		rules:        rules,
		scorer:       cfg.Scorer,
		scoreTimeout: timeout,
		ignoreURLs:   cfg.IgnoreURLs,
		logger:       logger,
	}
}

func (e *Engine) Rules() *Rules {
	return e.rules
}

// Why a label was applied.
type Match struct {
	Kind   RuleKind `json:"kind"`
	Label  string   `json:"label"`
	Source string   `json:"source,omitempty"`
	Detail string   `json:"detail,omitempty"`
}

// Evaluates every rule against the text and returns the matches, in rule order. Overlapping matches are all kept; nothing is mutually exclusive.
func (e *Engine) Matches(ctx context.Context, text string) []Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	matchText := text
	if e.ignoreURLs {
		matchText = helpers.StripTextURLs(text)
	}
	pt := newPostText(matchText)

	var out []Match
	for _, rule := range e.rules.Rules {
		switch r := rule.(type) {
		case TermRule:
			if pt.containsTerm(r.Term, r.CaseSensitive, r.Boundary) {
				out = append(out, Match{Kind: KindTerm, Label: r.Label, Source: r.Source, Detail: r.Term})
			}
		case RegexRule:
			if span, ok := pt.matchRegex(r); ok {
				out = append(out, Match{Kind: KindRegex, Label: r.Label, Source: r.Source, Detail: span})
			}
		case IndicatorRule:
			for _, term := range r.Terms {
				if pt.containsTerm(term, false, r.Boundary) {
					out = append(out, Match{Kind: KindIndicator, Label: r.Label, Source: r.List, Detail: term})
					break
				}
			}
		case ScoreRule:
			if e.scorer == nil {
				continue
			}
			score, ok := e.score(ctx, text)
			if ok && score > r.Threshold {
				out = append(out, Match{Kind: KindScore, Label: r.Label, Detail: formatScore(score)})
			}
		}
	}
	out = append(out, e.rules.Meta.triggered(pt)...)
	for _, m := range out {
		ruleMatches.WithLabelValues(string(m.Kind)).Inc()
	}
	return out
}

// Fetches the external score. Failures are logged and reported as !ok; they never fail labeling.
func (e *Engine) score(ctx context.Context, text string) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.scoreTimeout)
	defer cancel()
	score, err := e.scorer.Score(ctx, text)
	if err != nil {
		scoreSignalsSkipped.Inc()
		e.logger.Warn("external score unavailable, skipping signal", "err", err)
		return 0, false
	}
	return score, true
}

// Returns the labels for a post's text: the union of all concrete rule matches, plus any triggered meta labels and the severity label. Empty text gives an empty set.
func (e *Engine) Label(ctx context.Context, text string) LabelSet {
	return e.LabelMatches(e.Matches(ctx, text))
}

// Turns rule matches in to a final label set. Meta and severity labels are added alongside the concrete labels that triggered them.
func (e *Engine) LabelMatches(matches []Match) LabelSet {
	concrete := NewLabelSet()
	review := NewLabelSet()
	ruleHits := 0
	for _, m := range matches {
		if m.Kind == KindReview {
			review.Add(m.Label)
			continue
		}
		concrete.Add(m.Label)
		ruleHits++
	}
	out := concrete.Clone()
	out.Add(review.Sorted()...)
	out.Add(e.rules.Meta.Resolve(concrete)...)
	if level := e.severity(concrete, ruleHits); level > 0 {
		out.Add(SeverityLabel(level))
	}

	postsLabeled.Inc()
	for _, l := range out.Sorted() {
		labelsApplied.WithLabelValues(l).Inc()
	}
	return out
}

// Zero when no concrete label matched.
func (e *Engine) severity(concrete LabelSet, ruleHits int) int {
	if concrete.Len() == 0 {
		return 0
	}
	level := 0
	for l := range concrete {
		if sev := e.rules.Severity[l]; sev > level {
			level = sev
		}
	}
	for _, step := range e.rules.SeveritySteps {
		if ruleHits >= step.MinMatches && step.Level > level {
			level = step.Level
		}
	}
	return level
}
