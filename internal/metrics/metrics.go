package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsMarked counts attendance records written, by status.
	RecordsMarked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_records_marked_total",
		Help: "Attendance records written, by status.",
	}, []string{"status"})

	// Recomputes counts attendance percentage recomputations.
	Recomputes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_recomputes_total",
		Help: "Attendance percentage recomputations.",
	})

	// ImportRuns counts bulk import runs by entity kind and outcome.
	ImportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_runs_total",
		Help: "Bulk CSV import runs, by entity kind and outcome.",
	}, []string{"kind", "outcome"})

	// ImportRowsCreated counts rows created by bulk imports.
	ImportRowsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_created_total",
		Help: "Rows created by bulk CSV imports, by entity kind.",
	}, []string{"kind"})

	// DefaulterAlerts counts students newly flagged below the attendance threshold.
	DefaulterAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "defaulter_alerts_total",
		Help: "Students newly flagged below the attendance threshold.",
	})
)
