package signals

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func bar(ts time.Time, o, h, l, c, v string) types.Bar {
	return types.Bar{
		Timestamp: ts, Symbol: "MES",
		Open: dec(o), High: dec(h), Low: dec(l), Close: dec(c), Volume: dec(v),
	}
}

func TestWindowWarmupUntilMinimumLookback(t *testing.T) {
	w := NewWindow(dec("0.25"), nil)
	base := time.Date(2025, 12, 18, 9, 30, 0, 0, time.UTC)

	var last types.SignalVector
	for i := 0; i < minLookback; i++ {
		b := bar(base.Add(time.Duration(i)*time.Minute), "100", "100.5", "99.5", "100", "1000")
		last = w.Compute(b)
		if i < minLookback-1 && !last.Warmup {
			t.Fatalf("bar %d: expected warmup=true before %d bars seen", i, minLookback)
		}
	}
	if last.Warmup {
		t.Error("expected warmup=false once minimum lookback satisfied")
	}
}

func TestImpulseStrengthClampedToUnitRange(t *testing.T) {
	atr := dec("0.1")
	v := impulseStrength(dec("100"), dec("105"), dec("95"), dec("110"), &atr)
	if v != 1 {
		t.Errorf("expected clamp to 1, got %v", v)
	}
	v = impulseStrength(dec("100"), dec("105"), dec("95"), dec("90"), &atr)
	if v != -1 {
		t.Errorf("expected clamp to -1, got %v", v)
	}
}

func TestRoundNumberProximity(t *testing.T) {
	levels := []decimal.Decimal{dec("5800"), dec("5850"), dec("5900")}
	score := roundNumberProximity(dec("5900.10"), levels)
	if score <= 0 {
		t.Errorf("expected positive proximity score near a round level, got %v", score)
	}
	score = roundNumberProximity(dec("5700"), levels)
	if score != 0 {
		t.Errorf("expected zero proximity far from any round level, got %v", score)
	}
}

func TestAuctionEfficiencyDefaultsToHalfWhenNoHistory(t *testing.T) {
	v := auctionEfficiency(dec("100"), decimal.Zero, dec("1000"), decimal.Zero)
	if v != 0.5 {
		t.Errorf("expected 0.5 default, got %v", v)
	}
}

func TestSignalsDeterministicGivenIdenticalHistory(t *testing.T) {
	base := time.Date(2025, 12, 18, 9, 30, 0, 0, time.UTC)
	bars := make([]types.Bar, 0, 20)
	for i := 0; i < 20; i++ {
		bars = append(bars, bar(base.Add(time.Duration(i)*time.Minute), "100", "100.5", "99.5", "100.1", "1000"))
	}

	run := func() types.SignalVector {
		w := NewWindow(dec("0.25"), nil)
		var last types.SignalVector
		for _, b := range bars {
			last = w.Compute(b)
		}
		return last
	}

	a, b := run(), run()
	if len(a.Values) != len(b.Values) {
		t.Fatalf("signal count differs between runs: %d vs %d", len(a.Values), len(b.Values))
	}
	for k, v := range a.Values {
		if b.Values[k] != v {
			t.Errorf("signal %s not deterministic: %v vs %v", k, v, b.Values[k])
		}
	}
}
