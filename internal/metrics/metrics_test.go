package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.BarsProcessed.Inc()
	m.DecisionsByOutcome.WithLabelValues("TRADE").Inc()
	m.GateRejections.WithLabelValues("dvs_too_low").Inc()
	m.EventAppendLatency.Observe(time.Millisecond.Seconds())
	m.TradesClosed.WithLabelValues("A1_FAST_REVERSION").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 5 {
		t.Errorf("expected 5 registered metric families, got %d", len(families))
	}
}

func TestBarsProcessedCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.BarsProcessed.Inc()
	m.BarsProcessed.Inc()

	var out dto.Metric
	if err := m.BarsProcessed.Write(&out); err != nil {
		t.Fatal(err)
	}
	if out.Counter.GetValue() != 2 {
		t.Errorf("expected count 2, got %v", out.Counter.GetValue())
	}
}
