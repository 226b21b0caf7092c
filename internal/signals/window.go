package signals

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

const (
	minLookback  = 14
	atrPeriod    = 14
	longATRPeriod = 50
)

// Window is the rolling per-session state the signal engine needs beyond
// the current bar: VWAP accumulators, ATR, and ring buffers for range,
// volume and close-to-close direction. Grounded on the teacher's
// internal/regime/detector.go ring-buffer idiom (AddDataPoint/trimBuffers),
// generalised to this spec's signal set.
type Window struct {
	tickSize    decimal.Decimal
	roundLevels []decimal.Decimal

	closes  []float64
	ranges  []float64
	volumes []float64
	trueRanges []float64

	cumPV  decimal.Decimal
	cumVol decimal.Decimal

	hasPrev  bool
	prevBar  types.Bar

	consecutiveDir int
	lastDir        int

	entryLevel, targetLevel decimal.Decimal
}

// NewWindow constructs an empty rolling window for one session.
func NewWindow(tickSize decimal.Decimal, roundLevels []decimal.Decimal) *Window {
	return &Window{tickSize: tickSize, roundLevels: roundLevels}
}

// SetActiveTradeLevels is called by the trade manager while a position is
// open so late_entry_flag can be computed against the live entry/target.
func (w *Window) SetActiveTradeLevels(entry, target decimal.Decimal) {
	w.entryLevel, w.targetLevel = entry, target
}

// ClearActiveTradeLevels resets the late-entry reference once flat.
func (w *Window) ClearActiveTradeLevels() {
	w.entryLevel, w.targetLevel = decimal.Zero, decimal.Zero
}

func push(buf []float64, v float64, cap int) []float64 {
	buf = append(buf, v)
	if len(buf) > cap {
		buf = buf[len(buf)-cap:]
	}
	return buf
}

func mean(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range buf {
		sum += v
	}
	return sum / float64(len(buf))
}

func stdDev(buf []float64) float64 {
	if len(buf) < 2 {
		return 0
	}
	m := mean(buf)
	sum := 0.0
	for _, v := range buf {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// Compute advances the window with bar and returns the bar's SignalVector.
// Compute must be called exactly once per closed bar, in order.
func (w *Window) Compute(bar types.Bar) types.SignalVector {
	rangeSize := bar.High.Sub(bar.Low)

	var trueRange decimal.Decimal
	if w.hasPrev {
		hc := bar.High.Sub(w.prevBar.Close).Abs()
		lc := bar.Low.Sub(w.prevBar.Close).Abs()
		trueRange = decimal.Max(rangeSize, hc, lc)
	} else {
		trueRange = rangeSize
	}

	w.cumPV = w.cumPV.Add(bar.Close.Mul(bar.Volume))
	w.cumVol = w.cumVol.Add(bar.Volume)

	dir := 0
	if w.hasPrev {
		if bar.Close.GreaterThan(w.prevBar.Close) {
			dir = 1
		} else if bar.Close.LessThan(w.prevBar.Close) {
			dir = -1
		}
	}
	if dir != 0 && dir == w.lastDir {
		w.consecutiveDir++
	} else {
		w.consecutiveDir = 1
	}
	w.lastDir = dir

	w.trueRanges = push(w.trueRanges, f(trueRange), longATRPeriod)
	w.ranges = push(w.ranges, f(rangeSize), longATRPeriod)
	w.volumes = push(w.volumes, f(bar.Volume), longATRPeriod)
	w.closes = push(w.closes, f(bar.Close), longATRPeriod)

	warmup := len(w.closes) < minLookback

	atrWindow := w.trueRanges
	if len(atrWindow) > atrPeriod {
		atrWindow = atrWindow[len(atrWindow)-atrPeriod:]
	}
	atr14 := mean(atrWindow)
	longATR := mean(w.trueRanges)
	atr14n := 1.0
	if longATR != 0 {
		atr14n = atr14 / longATR
	}

	avgRange := mean(w.ranges)
	avgVolume := mean(w.volumes)

	vwap := decimal.Zero
	if !w.cumVol.IsZero() {
		vwap = w.cumPV.Div(w.cumVol)
	}
	closeStd := stdDev(w.closes)

	vwapDistancePct := 0.0
	vwapZ := 0.0
	if !vwap.IsZero() {
		vwapDistancePct = f(bar.Close.Sub(vwap).Div(vwap))
		if closeStd != 0 {
			vwapZ = f(bar.Close.Sub(vwap)) / closeStd
		}
	}

	rangeCompression := 1.0
	if avgRange != 0 {
		rangeCompression = f(rangeSize) / avgRange
	}

	atr := decimal.NewFromFloat(atr14)
	impulse := impulseStrength(bar.Open, bar.High, bar.Low, bar.Close, &atr)

	var sweep float64
	if w.hasPrev {
		sweep = sweepThenReject(bar.High, bar.Low, bar.Close, w.prevBar.High, w.prevBar.Low, w.tickSize, 2)
	}

	absorption := absorptionProxy(bar.Volume, rangeSize, decimal.NewFromFloat(avgVolume), decimal.NewFromFloat(avgRange))
	roundProx := roundNumberProximity(bar.Close, w.roundLevels)

	var lateEntry float64
	if !w.entryLevel.Equal(w.targetLevel) {
		lateEntry = lateEntryFlag(bar.Close, w.entryLevel, w.targetLevel)
	}

	volExpansion := volatilityExpansion(decimal.NewFromFloat(atr14), decimal.NewFromFloat(longATR), 1.5)

	priceChangePct := 0.0
	volumeChangePct := 0.0
	if w.hasPrev && !w.prevBar.Close.IsZero() {
		priceChangePct = f(bar.Close.Sub(w.prevBar.Close).Div(w.prevBar.Close))
	}
	if w.hasPrev && !w.prevBar.Volume.IsZero() {
		volumeChangePct = f(bar.Volume.Sub(w.prevBar.Volume).Div(w.prevBar.Volume))
	}
	deltaDiv := deltaDivergence(priceChangePct, volumeChangePct, 0.3)

	volumeSurge := clamp(volumeChangePct, 0, 1)
	priceExtension := clamp(absf(vwapDistancePct)/0.01, 0, 1)
	fomo := fomoIndex(impulse, volumeSurge, priceExtension)
	panic := panicIndex(volExpansion, absorption, impulse)
	auctionEff := auctionEfficiency(bar.Close, vwap, bar.Volume, decimal.NewFromFloat(avgVolume))

	impulseConsistency := clamp(1-absf(vwapZ)/3, 0, 1)
	herding := herdingScore(w.consecutiveDir, clamp(volumeChangePct, 0, 1), impulseConsistency)

	hhllTrend := clamp(vwapZ/3, -1, 1)

	w.hasPrev = true
	w.prevBar = bar

	values := map[string]float64{
		"vwap_distance_pct":     vwapDistancePct,
		"vwap_z":                vwapZ,
		"atr_14":                atr14,
		"atr_14_n":              atr14n,
		"range_compression":     rangeCompression,
		"impulse_strength":      impulse,
		"sweep_then_reject":     sweep,
		"absorption_proxy":      absorption,
		"late_entry_flag":       lateEntry,
		"round_number_proximity": roundProx,
		"volatility_expansion":  volExpansion,
		"delta_divergence":      deltaDiv,
		"fomo_index":            fomo,
		"panic_index":           panic,
		"auction_efficiency":    auctionEff,
		"herding_score":         herding,
		"hhll_trend_strength":   hhllTrend,
	}

	return types.SignalVector{Values: values, Warmup: warmup}
}
