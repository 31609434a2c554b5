// FILE: regime.go
// Package main – regime classifier.
//
// Wholly deterministic: low_volatility is never reached here (the
// volatility gate already holds on it before the classifier runs),
// reversal and trending are hard conditions, everything else falls
// through to ranging. An optional, strictly advisory LLM call for
// borderline cases must never override a hard deterministic verdict —
// ClassifyRegime therefore never touches the LLM client; that
// escalation, if ever enabled, would live one layer up in the
// orchestrator, gated on IsBorderline.
package main

// ClassifyRegime tags a Snapshot as trending/reversal/ranging, following
// the hard conditions below in priority order.
func ClassifyRegime(s *Snapshot, minADXTrend float64) Regime {
	ind := s.Indicators

	if ind.RSI < 30 || ind.RSI > 70 {
		return RegimeReversal
	}

	if ind.RSI >= 30 && ind.RSI <= 70 && ind.ADX >= minADXTrend {
		emaStackedUp := ind.EMA20 > ind.EMA50 && s.Price.InexactFloat64() > ind.EMA50 && s.Price.InexactFloat64() > ind.EMA200
		emaStackedDown := ind.EMA20 < ind.EMA50 && s.Price.InexactFloat64() < ind.EMA50 && s.Price.InexactFloat64() < ind.EMA200
		sameSideBoth := (s.Price.InexactFloat64() > ind.EMA50) == (s.Price.InexactFloat64() > ind.EMA200)
		if emaStackedUp || emaStackedDown || sameSideBoth {
			return RegimeTrending
		}
	}

	return RegimeRanging
}

// IsBorderline reports whether ADX sits within a narrow band of the
// trend threshold, the one case worth an optional, strictly advisory
// LLM opinion.
func IsBorderline(s *Snapshot, minADXTrend float64) bool {
	delta := s.Indicators.ADX - minADXTrend
	return delta >= -3 && delta <= 3
}
