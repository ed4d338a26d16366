package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/hyli-org/hyliquid-sub000/pkg/errs"
)

func counterValue(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if matchesLabels(m.GetLabel(), labels) {
				if m.Counter != nil {
					return m.Counter.GetValue()
				}
			}
		}
	}
	return 0
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if want[p.GetName()] != p.GetValue() {
			return false
		}
	}
	return true
}

func TestCollector_RecordActionSuccess(t *testing.T) {
	c := NewCollector()
	c.RecordAction("deposit", time.Millisecond, 0, nil)

	if got := counterValue(t, c, "orderbook_actions_total", map[string]string{"kind": "deposit"}); got != 1 {
		t.Fatalf("want actions_total=1, got %v", got)
	}
}

func TestCollector_RecordActionFailure(t *testing.T) {
	c := NewCollector()
	c.RecordAction("withdraw", time.Millisecond, 0, errs.Authf("bad signature"))

	got := counterValue(t, c, "orderbook_actions_failed_total", map[string]string{"kind": "withdraw", "error_kind": "authentication"})
	if got != 1 {
		t.Fatalf("want actions_failed_total=1, got %v", got)
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors in the same process must not panic on duplicate
	// registration (pkg/api spins up a fresh one per Server).
	NewCollector()
	NewCollector()
}
