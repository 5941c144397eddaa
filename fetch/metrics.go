package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fetchCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coercion_post_fetches",
	Help: "Number of post fetches from the AppView, by outcome",
}, []string{"outcome"})

var fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "coercion_post_fetch_duration_sec",
	Help: "Duration of post fetches, including handle resolution",
})
