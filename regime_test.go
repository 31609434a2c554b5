package main

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifyRegimeReversalOnExtremeRSI(t *testing.T) {
	s := &Snapshot{Price: decimal.NewFromFloat(100), Indicators: Indicators{RSI: 25, ADX: 30, EMA20: 100, EMA50: 100, EMA200: 100}}
	if got := ClassifyRegime(s, 25); got != RegimeReversal {
		t.Fatalf("RSI < 30 must classify as reversal, got %v", got)
	}
	s.Indicators.RSI = 75
	if got := ClassifyRegime(s, 25); got != RegimeReversal {
		t.Fatalf("RSI > 70 must classify as reversal, got %v", got)
	}
}

func TestClassifyRegimeTrendingOnStackedEMAs(t *testing.T) {
	s := &Snapshot{
		Price: decimal.NewFromFloat(110),
		Indicators: Indicators{
			RSI: 60, ADX: 30,
			EMA20: 108, EMA50: 105, EMA200: 95,
		},
	}
	if got := ClassifyRegime(s, 25); got != RegimeTrending {
		t.Fatalf("stacked-up EMAs with ADX above threshold should classify trending, got %v", got)
	}
}

func TestClassifyRegimeRangingFallthrough(t *testing.T) {
	s := &Snapshot{
		Price: decimal.NewFromFloat(100),
		Indicators: Indicators{
			RSI: 50, ADX: 10,
			EMA20: 100, EMA50: 100, EMA200: 100,
		},
	}
	if got := ClassifyRegime(s, 25); got != RegimeRanging {
		t.Fatalf("low ADX with mid RSI should fall through to ranging, got %v", got)
	}
}

func TestIsBorderlineWindow(t *testing.T) {
	s := &Snapshot{Indicators: Indicators{ADX: 26}}
	if !IsBorderline(s, 25) {
		t.Fatalf("ADX within 3 of the threshold should be borderline")
	}
	s.Indicators.ADX = 40
	if IsBorderline(s, 25) {
		t.Fatalf("ADX far from the threshold should not be borderline")
	}
}
