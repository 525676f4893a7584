package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

var Module = fx.Module("metrics",
	fx.Provide(NewRegistry),
)

type Registry struct {
	reg *prometheus.Registry

	Runs            *prometheus.CounterVec
	FactRows        prometheus.Gauge
	Lines           *prometheus.CounterVec
	DroppedLines    *prometheus.CounterVec
	Discrepancies   prometheus.Gauge
	Overshoots      prometheus.Gauge
	NegativePaid    prometheus.Gauge
	RunDurationSec  prometheus.Histogram
	LastSuccessUnix prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderrecon_runs_total",
		Help: "Reconciliation runs by outcome.",
	}, []string{"status"})
	factRows := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orderrecon_fact_rows",
		Help: "Rows written by the last successful run.",
	})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderrecon_allocated_lines_total",
		Help: "Allocated order lines by pricing source.",
	}, []string{"source"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderrecon_dropped_lines_total",
		Help: "Order lines dropped for unresolved references.",
	}, []string{"reason"})
	discrepancies := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orderrecon_discrepancy_rows",
		Help: "Rows outside tolerance in the last run.",
	})
	overshoots := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orderrecon_overshoot_rows",
		Help: "Rows whose vouchers exceed the original price in the last run.",
	})
	negative := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orderrecon_negative_paid_rows",
		Help: "Rows with a negative paid price in the last run.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderrecon_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orderrecon_last_success_timestamp_seconds",
	})

	r.MustRegister(runs, factRows, lines, dropped, discrepancies, overshoots, negative, duration, lastSuccess)
	return &Registry{
		reg:             r,
		Runs:            runs,
		FactRows:        factRows,
		Lines:           lines,
		DroppedLines:    dropped,
		Discrepancies:   discrepancies,
		Overshoots:      overshoots,
		NegativePaid:    negative,
		RunDurationSec:  duration,
		LastSuccessUnix: lastSuccess,
	}
}

// RunStats is the per-run input to Observe.
type RunStats struct {
	Succeeded     bool
	Duration      time.Duration
	FinishedAt    time.Time
	FactRows      int
	LinesBySource map[string]int
	DroppedLines  map[string]int
	Discrepancies int
	Overshoots    int
	NegativePaid  int
}

func (r *Registry) Observe(s RunStats) {
	r.RunDurationSec.Observe(s.Duration.Seconds())
	if !s.Succeeded {
		r.Runs.WithLabelValues("failed").Inc()
		return
	}
	r.Runs.WithLabelValues("succeeded").Inc()
	r.FactRows.Set(float64(s.FactRows))
	for source, n := range s.LinesBySource {
		r.Lines.WithLabelValues(source).Add(float64(n))
	}
	for reason, n := range s.DroppedLines {
		r.DroppedLines.WithLabelValues(reason).Add(float64(n))
	}
	r.Discrepancies.Set(float64(s.Discrepancies))
	r.Overshoots.Set(float64(s.Overshoots))
	r.NegativePaid.Set(float64(s.NegativePaid))
	r.LastSuccessUnix.Set(float64(s.FinishedAt.Unix()))
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	return prometheus.WriteToTextfile(path, r.reg)
}
