package accounting

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts ledger postings.
type Metrics struct {
	postings *prometheus.CounterVec
	lines    *prometheus.CounterVec
}

// NewMetrics registers the posting collectors.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_postings_total",
		Help: "Posting attempts partitioned by transaction prefix and result.",
	}, []string{"prefix", "result"})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_journal_lines_total",
		Help: "Journal lines written partitioned by transaction prefix.",
	}, []string{"prefix"})
	registerer.MustRegister(postings, lines)
	return &Metrics{postings: postings, lines: lines}
}

func (m *Metrics) observe(prefix Prefix, lines int, err error) {
	if m == nil {
		return
	}
	result := "posted"
	if err != nil {
		result = "rejected"
	}
	m.postings.WithLabelValues(string(prefix), result).Inc()
	if err == nil {
		m.lines.WithLabelValues(string(prefix)).Add(float64(lines))
	}
}
