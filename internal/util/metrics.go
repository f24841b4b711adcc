package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_recorded_total",
		Help: "Total number of sales recorded with a durable receipt",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed sale attempts",
	}, []string{"reason"})

	ReceiptsAppendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "receipts_appended_total",
		Help: "Total number of receipts appended to the ledger",
	})

	CatalogueSyncFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogue_sync_failed_total",
		Help: "Sales whose receipt committed but the catalogue status update failed",
	})

	CatalogueRefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogue_refresh_total",
		Help: "Total number of catalogue refresh passes",
	})

	RefreshDeferredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalogue_refresh_deferred_total",
		Help: "Refresh ticks deferred because an exclusive edit was in progress",
	})

	LedgerInconsistencies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ledger_catalogue_inconsistencies",
		Help: "Current count of catalogue/ledger inconsistencies by kind",
	}, []string{"kind"})

	ReceiptAppendLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "receipt_append_latency_seconds",
		Help:    "Latency of ledger receipt appends",
		Buckets: prometheus.DefBuckets,
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
