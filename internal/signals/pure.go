// Package signals computes the per-bar SignalVector from a closed bar
// plus rolling window state. The pure scoring functions in this file are
// ported one-for-one from original_source/engines/signal_utils.py;
// Decimal is used for price/volume inputs per spec Design Notes §9,
// float64 for the normalised [-1,1]/[0,1] outputs (matching the
// original, which only uses Decimal for money and price).
package signals

import "github.com/shopspring/decimal"

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func f(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// impulseStrength is (close-open)/atr, clamped to [-1,1]. Falls back to
// the bar's own range when atr is zero or unavailable.
func impulseStrength(open, high, low, close decimal.Decimal, atr *decimal.Decimal) float64 {
	rangeSize := high.Sub(low)
	var denom decimal.Decimal
	if atr != nil && !atr.IsZero() {
		denom = *atr
	} else {
		denom = rangeSize
	}
	if denom.IsZero() {
		return 0
	}
	return clamp(f(close.Sub(open).Div(denom)), -1, 1)
}

// sweepThenReject returns 1.0 if the prior extreme was breached and the
// close rejected by >= thresholdTicks * tickSize, else 0.0.
func sweepThenReject(high, low, close, prevHigh, prevLow, tickSize decimal.Decimal, thresholdTicks float64) float64 {
	threshold := tickSize.Mul(decimal.NewFromFloat(thresholdTicks))
	sweptHigh := high.GreaterThan(prevHigh) && prevHigh.Sub(close).GreaterThanOrEqual(decimal.Zero.Sub(threshold)) && high.Sub(close).GreaterThanOrEqual(threshold)
	sweptLow := low.LessThan(prevLow) && close.Sub(low).GreaterThanOrEqual(threshold)
	if sweptHigh || sweptLow {
		return 1.0
	}
	return 0.0
}

// absorptionProxy flags high volume paired with a compressed range.
func absorptionProxy(volume, rangeSize, avgVolume, avgRange decimal.Decimal) float64 {
	if avgVolume.IsZero() || avgRange.IsZero() {
		return 0
	}
	volumeRatio := f(volume.Div(avgVolume))
	rangeRatio := f(rangeSize.Div(avgRange))
	if volumeRatio > 1.5 && rangeRatio < 0.5 {
		return clamp((volumeRatio-1.5)/1.5+(0.5-rangeRatio), 0, 1)
	}
	return 0
}

// roundNumberProximity scores proximity of price to the nearest round level.
func roundNumberProximity(price decimal.Decimal, roundLevels []decimal.Decimal) float64 {
	if len(roundLevels) == 0 {
		return 0
	}
	best := -1.0
	for _, level := range roundLevels {
		if level.IsZero() {
			continue
		}
		dist := price.Sub(level).Abs()
		pct := f(dist.Div(level))
		if pct <= 0.005 {
			score := clamp(1-pct/0.005, 0, 1)
			if score > best {
				best = score
			}
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// lateEntryFlag scores how far price has already moved toward a target
// relative to the full distance from an entry level.
func lateEntryFlag(currentPrice, entryLevel, targetLevel decimal.Decimal) float64 {
	total := targetLevel.Sub(entryLevel)
	if total.IsZero() {
		return 0
	}
	completion := f(currentPrice.Sub(entryLevel).Div(total))
	if completion > 0.7 {
		return clamp(completion, 0, 1)
	}
	return 0
}

func volatilityExpansion(currentATR, avgATR decimal.Decimal, threshold float64) float64 {
	if avgATR.IsZero() {
		return 0
	}
	ratio := f(currentATR.Div(avgATR))
	if ratio > threshold {
		return clamp((ratio-threshold)/threshold, 0, 1)
	}
	return 0
}

func deltaDivergence(priceChangePct, volumeChangePct, threshold float64) float64 {
	priceDir := 0.0
	if priceChangePct > 0 {
		priceDir = 1
	} else if priceChangePct < 0 {
		priceDir = -1
	}
	volDir := 0.0
	if volumeChangePct > 0 {
		volDir = 1
	} else if volumeChangePct < 0 {
		volDir = -1
	}
	if priceDir != 0 && volDir != 0 && priceDir != volDir && absf(volumeChangePct) > threshold {
		return clamp(absf(volumeChangePct), 0, 1)
	}
	return 0
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func fomoIndex(impulseStrength, volumeSurge, priceExtension float64) float64 {
	if absf(impulseStrength) > 0.6 && volumeSurge > 0.6 && priceExtension > 0.6 {
		return clamp((absf(impulseStrength)+volumeSurge+priceExtension)/3, 0, 1)
	}
	return 0
}

func panicIndex(volatilityExpansion, absorptionScore, impulseStrength float64) float64 {
	if volatilityExpansion > 0.7 && absorptionScore > 0.5 {
		return clamp((volatilityExpansion+absorptionScore+absf(impulseStrength))/3, 0, 1)
	}
	return 0
}

func auctionEfficiency(close, vwap, volume, avgVolume decimal.Decimal) float64 {
	if vwap.IsZero() || avgVolume.IsZero() {
		return 0.5
	}
	priceDeviation := absf(f(close.Sub(vwap).Div(vwap)))
	volumeRatio := f(volume.Div(avgVolume))
	if priceDeviation < 0.001 && volumeRatio >= 0.8 && volumeRatio <= 1.2 {
		return 1.0
	}
	score := 1 - (priceDeviation + absf(volumeRatio-1))
	return clamp(score, 0, 1)
}

func herdingScore(consecutiveBarsSameDirection int, volumeTrend, impulseConsistency float64) float64 {
	directionFactor := clamp(float64(consecutiveBarsSameDirection)/5, 0, 1)
	if volumeTrend > 0.5 && impulseConsistency > 0.6 {
		return clamp(directionFactor, 0, 1)
	}
	return 0
}
