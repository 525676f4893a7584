package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSuccessfulRun(t *testing.T) {
	r := NewRegistry()
	finished := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	r.Observe(RunStats{
		Succeeded:     true,
		Duration:      2 * time.Second,
		FinishedAt:    finished,
		FactRows:      42,
		LinesBySource: map[string]int{"payment_detail": 3, "list_price": 1},
		DroppedLines:  map[string]int{"unknown_product": 2},
		Discrepancies: 1,
		Overshoots:    2,
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(r.Runs.WithLabelValues("succeeded")))
	assert.Equal(t, float64(42), testutil.ToFloat64(r.FactRows))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.Lines.WithLabelValues("payment_detail")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.DroppedLines.WithLabelValues("unknown_product")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.Overshoots))
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(r.LastSuccessUnix))
}

func TestObserveFailedRunKeepsLastGauges(t *testing.T) {
	r := NewRegistry()
	r.Observe(RunStats{Succeeded: true, FactRows: 10})
	r.Observe(RunStats{Succeeded: false})

	assert.Equal(t, float64(1), testutil.ToFloat64(r.Runs.WithLabelValues("failed")))
	assert.Equal(t, float64(10), testutil.ToFloat64(r.FactRows))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.Observe(RunStats{Succeeded: true, FactRows: 7})

	path := filepath.Join(t.TempDir(), "prom", "orderrecon.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "orderrecon_fact_rows 7")
	assert.Contains(t, string(data), `orderrecon_runs_total{status="succeeded"} 1`)
}
