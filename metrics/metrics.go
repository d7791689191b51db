package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// - Version information of this binary
var Version = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "version",
		Help: "Version information of this binary",
	},
	[]string{"started_at", "tag", "commit", "compiler", "goarch", "goos", "goamd64", "vcs", "vcs_revision", "vcs_time", "vcs_modified"},
)

var WritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caskade_writes_total",
		Help: "write_bytes/set_link calls by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

var BytesWrittenTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caskade_bytes_written_total",
		Help: "DATA payload bytes appended to disk",
	},
	[]string{"origin"},
)

var CheckpointsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caskade_checkpoints_total",
		Help: "Checkpoints written, by type",
	},
	[]string{"origin", "type"},
)

var RolloversTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caskade_rollovers_total",
		Help: "Cask file rollovers",
	},
	[]string{"origin"},
)

var RecoveryRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caskade_recovery_runs_total",
		Help: "recover() invocations by outcome",
	},
	[]string{"origin", "outcome"},
)

var ActiveCaskIndex = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "caskade_active_cask_idx",
		Help: "Sequence index of the currently active cask file",
	},
	[]string{"origin"},
)

// OutstandingWrites counts write_bytes/set_link calls that have entered the
// single-writer critical section but not yet returned, the way
// store.Store.flushTick tracks pending commit work.
var OutstandingWrites = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "caskade_outstanding_writes",
		Help: "write_bytes/set_link calls currently holding the writer lock",
	},
	[]string{"origin"},
)

var WriteLatencyHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "caskade_write_latency_histogram",
		Help:    "write_bytes/set_link latency",
		Buckets: prometheus.ExponentialBuckets(0.000001, 10, 10),
	},
	[]string{"origin", "kind"},
)

var ReadLatencyHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "caskade_read_latency_histogram",
		Help:    "read_bytes latency",
		Buckets: prometheus.ExponentialBuckets(0.000001, 10, 10),
	},
	[]string{"origin", "source"},
)
