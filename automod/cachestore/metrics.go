package cachestore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coercion_cache_lookups",
	Help: "Number of cache lookups, by backend, namespace, and hit or miss",
}, []string{"backend", "namespace", "result"})

func observeLookup(backend, name string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(backend, name, result).Inc()
}
