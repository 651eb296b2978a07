package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMergesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Total number of guest-to-account cart merges executed",
	})

	CartMergeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_merge_failures_total",
		Help: "Total number of cart merges that fell back to the guest cart",
	})

	CartMergeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_merge_latency_seconds",
		Help:    "Latency of cart merge calls",
		Buckets: prometheus.DefBuckets,
	})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"op"})

	CartSyncFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_failures_total",
		Help: "Total number of failed account cart syncs",
	})

	GuestCartSaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guest_cart_save_failures_total",
		Help: "Total number of failed guest cart persistence writes",
	})

	PreferenceEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preference_events_total",
		Help: "Total number of tracked preference events",
	}, []string{"kind"})

	PreferenceSaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "preference_save_failures_total",
		Help: "Total number of failed preference state writes",
	})

	RecommendationsServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendations_served_total",
		Help: "Total number of recommendation lists served",
	}, []string{"source"})

	TrendingPromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trending_promotions_total",
		Help: "Total number of trending flag refresh passes",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
