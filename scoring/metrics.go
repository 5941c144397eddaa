package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scoreAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "coercion_score_api_duration_sec",
	Help: "Duration of external text score API calls",
})

var scoreAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coercion_score_api_count",
	Help: "Number of external text score API calls, by HTTP status code",
}, []string{"status"})

var scoreCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "coercion_score_cache_hits",
	Help: "Number of external scores served from cache",
})
