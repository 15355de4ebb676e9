package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsProcessed tracks processed OBJCLASS rows by terminal status
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_import_rows_total",
			Help: "Total number of processed OBJCLASS rows",
		},
		[]string{"status"},
	)

	// OutlaysWritten tracks fact rows emitted by the ingestion pipeline
	OutlaysWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "budget_import_outlays_total",
			Help: "Total number of outlay fact rows written",
		},
	)

	// DimensionsCreated tracks lazily created dimension entities by kind
	DimensionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_import_dimensions_created_total",
			Help: "Total number of dimension rows created during imports",
		},
		[]string{"kind"},
	)

	// ImportDuration tracks whole-file import run duration
	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "budget_import_duration_seconds",
			Help:    "OBJCLASS import run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// QueryRequestsTotal tracks read API requests
	QueryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_api_requests_total",
			Help: "Total number of read API requests",
		},
		[]string{"route", "code"},
	)
)
