package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

type fixedStats domain.RevocationStats

func (f fixedStats) Stats(context.Context) domain.RevocationStats { return domain.RevocationStats(f) }

func gatherGauges(t *testing.T, src RevocationStatsSource) map[string]float64 {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(newRevocationCollector(src))
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		if len(mf.GetMetric()) != 1 {
			t.Fatalf("%s: %d samples, want 1", mf.GetName(), len(mf.GetMetric()))
		}
		out[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
	}
	return out
}

func TestRevocationCollector(t *testing.T) {
	got := gatherGauges(t, fixedStats{ActiveCount: 3, EstimatedMemoryKB: 0.5, StoreConnected: true})

	want := map[string]float64{
		"budgetauth_revoked_tokens_active":         3,
		"budgetauth_revocation_store_estimated_kb": 0.5,
		"budgetauth_revocation_store_connected":    1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %v, want %v", name, got[name], v)
		}
	}
}

func TestRevocationCollectorDisconnected(t *testing.T) {
	got := gatherGauges(t, fixedStats{})
	if v, ok := got["budgetauth_revocation_store_connected"]; !ok || v != 0 {
		t.Fatalf("connected = %v (present %v), want 0", v, ok)
	}
}

func TestRevocationCollectorNilSource(t *testing.T) {
	ch := make(chan prometheus.Metric, 3)
	newRevocationCollector(nil).Collect(ch)
	close(ch)
	if n := len(ch); n != 0 {
		t.Fatalf("collected %d metrics from nil source", n)
	}
}
