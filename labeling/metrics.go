package labeling

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postsLabeled = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coercion_posts_labeled",
	Help: "Number of post texts run through the labeling engine",
})

var labelsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coercion_labels_applied",
	Help: "Number of labels applied, by label value",
}, []string{"val"})

var ruleMatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coercion_rule_matches",
	Help: "Number of rule matches, by rule kind",
}, []string{"kind"})

var scoreSignalsSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coercion_score_signals_skipped",
	Help: "Number of times the external score signal was skipped because the service failed",
})

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 3, 64)
}
