// FILE: prefilter.go
// Package main – pre-filter and volatility gate.
//
// Both are pure, zero-cost functions over a Snapshot; neither calls the
// LLM or mutates state. Plain threshold comparisons over precomputed
// indicators, so there's nothing here an indicator or math library
// would add.
package main

import "math"

// PreFilter rejects obviously dead/neutral snapshots before any other
// pipeline stage runs. Returns (reject, reason).
func PreFilter(s *Snapshot, minVolatilityPercent float64) (bool, string) {
	ind := s.Indicators

	neutralNoFlow := ind.RSI >= 45 && ind.RSI <= 55 && ind.VolumeRatio < 1.5
	flatMomentum := math.Abs(ind.MACDHist) < flatMomentumEpsilon(ind.ATR)
	deadMarket := ind.ATRP < minVolatilityPercent/2

	if neutralNoFlow && flatMomentum && deadMarket {
		return true, "neutral_flat_dead"
	}
	return false, ""
}

// flatMomentumEpsilon expresses epsilon as a fraction of the bar's ATR.
func flatMomentumEpsilon(atr float64) float64 {
	return atr * 0.05
}

// VolatilityGate is the second defence after the pre-filter's
// half-threshold cut. Boundary: ATR% exactly at the threshold passes
// (">=", not ">").
func VolatilityGate(s *Snapshot, minVolatilityPercent float64) (reject bool) {
	return s.Indicators.ATRP < minVolatilityPercent
}

// FilterHold builds the HOLD Decision the pipeline emits on either gate's
// rejection: agent=filter, confidence 0, no LLM called.
func FilterHold(regime Regime, reason string) Decision {
	return Decision{
		Action:     ActionHold,
		Confidence: 0,
		Agent:      AgentFilter,
		Regime:     regime,
		Reasoning:  reason,
	}
}
