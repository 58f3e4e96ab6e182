package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcr_http_requests_total",
		Help: "HTTP requests by method, path and status code",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dcr_http_request_duration_seconds",
		Help:    "HTTP request latency by method and path",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	DraftSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcr_draft_saves_total",
		Help: "Draft store writes by trigger (autosave, explicit, dateswitch) and result",
	}, []string{"trigger", "result"})

	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dcr_submissions_total",
		Help: "Report submission attempts by result (ok, validation, remote)",
	}, []string{"result"})

	CarryForwardsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcr_carry_forwards_total",
		Help: "Carry-forward transforms applied on date switch or submit",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dcr_active_sessions",
		Help: "Currently open report editing sessions",
	})
)
