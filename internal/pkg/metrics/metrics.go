package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 采集侧指标。
//
// source 标签取值: reddit / imgur / zappos。
// status 标签取值: success / throttled / fatal / not_found / error。
var (
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewhunter",
		Name:      "upstream_requests_total",
		Help:      "Total upstream HTTP requests by source and outcome.",
	}, []string{"source", "status"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reviewhunter",
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream HTTP request latency by source.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})

	ThrottleSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewhunter",
		Name:      "throttle_signals_total",
		Help:      "Throttling signals raised, by source.",
	}, []string{"source"})

	BackoffSleepSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewhunter",
		Name:      "backoff_sleep_seconds_total",
		Help:      "Seconds slept for reactive and preemptive backoff, by source.",
	}, []string{"source"})

	RowsInsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewhunter",
		Name:      "rows_inserted_total",
		Help:      "Rows actually inserted (duplicates ignored), by table.",
	}, []string{"table"})

	RowsIgnoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewhunter",
		Name:      "rows_ignored_total",
		Help:      "Insert-or-ignore no-ops, by table.",
	}, []string{"table"})

	PagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewhunter",
		Name:      "pages_fetched_total",
		Help:      "Search result pages fetched, by source.",
	}, []string{"source"})
)
