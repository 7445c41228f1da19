package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("metric_probes", "save", "ok"))
	ObserveOperation("metric_probes", "save", "ok", 3*time.Millisecond)
	ObserveOperation("metric_probes", "save", "ok", time.Millisecond)
	require.Equal(t, before+2, testutil.ToFloat64(OperationsTotal.WithLabelValues("metric_probes", "save", "ok")))
	require.Equal(t, 0.0, testutil.ToFloat64(OperationsTotal.WithLabelValues("metric_probes", "save", "duplicate_key")))
}

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)
	ObserveOperation("metric_registry", "count", "ok", time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["mongomodel_operations_total"])
	require.True(t, names["mongomodel_operation_duration_seconds"])
}
