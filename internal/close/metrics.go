package close

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Metrics counts period lifecycle operations.
type Metrics struct {
	closings *prometheus.CounterVec
}

// NewMetrics registers the closing collectors.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	closings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_period_closings_total",
		Help: "Period close and reopen attempts partitioned by result.",
	}, []string{"action", "result"})
	registerer.MustRegister(closings)
	return &Metrics{closings: closings}
}

func (m *Metrics) observe(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrCloseInProgress):
		result = "locked"
	case errors.Is(err, shared.ErrTrialBalanceOff):
		result = "unbalanced"
	default:
		result = "failed"
	}
	m.closings.WithLabelValues(action, result).Inc()
}
