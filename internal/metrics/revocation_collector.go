package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// RevocationStatsSource reports revocation store statistics at scrape time.
type RevocationStatsSource interface {
	Stats(ctx context.Context) domain.RevocationStats
}

type revocationCollector struct {
	src RevocationStatsSource

	activeDesc    *prometheus.Desc
	memoryDesc    *prometheus.Desc
	connectedDesc *prometheus.Desc
}

func newRevocationCollector(src RevocationStatsSource) *revocationCollector {
	return &revocationCollector{
		src: src,
		activeDesc: prometheus.NewDesc(
			"budgetauth_revoked_tokens_active",
			"Current number of revoked tokens still held by the store.",
			nil, nil,
		),
		memoryDesc: prometheus.NewDesc(
			"budgetauth_revocation_store_estimated_kb",
			"Estimated memory used by revocation entries (KiB).",
			nil, nil,
		),
		connectedDesc: prometheus.NewDesc(
			"budgetauth_revocation_store_connected",
			"1 when the revocation store answered the last scrape.",
			nil, nil,
		),
	}
}

func (c *revocationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeDesc
	ch <- c.memoryDesc
	ch <- c.connectedDesc
}

func (c *revocationCollector) Collect(ch chan<- prometheus.Metric) {
	if c.src == nil {
		return
	}
	// Keep store reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st := c.src.Stats(ctx)
	connected := 0.0
	if st.StoreConnected {
		connected = 1
	}
	emitGauge(ch, c.activeDesc, float64(st.ActiveCount))
	emitGauge(ch, c.memoryDesc, st.EstimatedMemoryKB)
	emitGauge(ch, c.connectedDesc, connected)
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerRevocationCollectorOnce sync.Once

func RegisterRevocationCollector(src RevocationStatsSource) {
	registerRevocationCollectorOnce.Do(func() {
		prometheus.MustRegister(newRevocationCollector(src))
	})
}
