// Package metrics exposes the prometheus collectors shared by the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsIngested counts unified rows committed to the store, per source.
	RowsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donorflow",
		Name:      "rows_ingested_total",
		Help:      "Number of spreadsheet rows ingested into the CRM store.",
	}, []string{"source"})

	// IngestErrors counts rows rejected during parsing or unification.
	IngestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "donorflow",
		Name:      "ingest_errors_total",
		Help:      "Number of rows that failed parsing during ingestion.",
	})

	// QueriesServed counts CRM query operations by kind.
	QueriesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "donorflow",
		Name:      "queries_served_total",
		Help:      "Number of CRM query operations served.",
	}, []string{"operation"})
)
