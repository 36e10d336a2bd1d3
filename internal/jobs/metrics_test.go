package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger:integrity:check").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:integrity:check").End(boom), boom)

	require.Equal(t, 1.0, value(t, m.runs.WithLabelValues("ledger:integrity:check", "success")))
	require.Equal(t, 1.0, value(t, m.runs.WithLabelValues("ledger:integrity:check", "failure")))
	require.Equal(t, 1.0, value(t, m.failures.WithLabelValues("ledger:integrity:check")))
}

func TestGauges(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetUnbalancedGroups(3)
	m.SetDriftedAccounts(2)

	require.Equal(t, 3.0, value(t, m.unbalanced))
	require.Equal(t, 2.0, value(t, m.drifted))

	var nilMetrics *Metrics
	nilMetrics.SetUnbalancedGroups(1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}

func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}
