package grading

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var postsGraded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coercion_posts_graded",
	Help: "Number of gold posts graded, by outcome",
}, []string{"outcome"})

var gradeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "coercion_grade_post_duration_sec",
	Help:    "Time to fetch, label, and score one gold post",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
})
