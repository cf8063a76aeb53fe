package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calendar_session_cache_hits_total",
			Help: "Total number of session lookups served from cache",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calendar_session_cache_misses_total",
			Help: "Total number of session lookups that required a bootstrap",
		},
	)

	bootstrapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_session_bootstraps_total",
			Help: "Total number of landing page bootstraps by result",
		},
		[]string{"result"}, // "success", "error"
	)

	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calendar_session_store_errors_total",
			Help: "Total number of session store operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
