package main

import "testing"

func TestPreFilterRejectsNeutralFlatDeadMarket(t *testing.T) {
	s := sampleSnapshot("BTC/USDT", 50, 100, 100, 0.001, 15, 1.0)
	s.Indicators.ATR = 1
	s.Indicators.ATRP = 0.1 // well under half of minVolatilityPercent=1

	reject, reason := PreFilter(s, 1.0)
	if !reject || reason == "" {
		t.Fatalf("expected a rejection for a neutral/flat/dead snapshot, got reject=%v reason=%q", reject, reason)
	}
}

func TestPreFilterPassesActiveMarket(t *testing.T) {
	s := sampleSnapshot("BTC/USDT", 65, 100, 100, 5, 30, 2.0)
	s.Indicators.ATR = 1
	s.Indicators.ATRP = 3

	reject, _ := PreFilter(s, 1.0)
	if reject {
		t.Fatalf("an active market with momentum and volume should not be pre-filtered")
	}
}

func TestVolatilityGateBoundaryIsInclusive(t *testing.T) {
	s := &Snapshot{Indicators: Indicators{ATRP: 1.0}}
	if VolatilityGate(s, 1.0) {
		t.Fatalf("ATR%% exactly at the threshold must pass (>=), not reject")
	}
}

func TestVolatilityGateRejectsBelowThreshold(t *testing.T) {
	s := &Snapshot{Indicators: Indicators{ATRP: 0.5}}
	if !VolatilityGate(s, 1.0) {
		t.Fatalf("ATR%% below the threshold should be rejected")
	}
}

func TestFilterHoldShape(t *testing.T) {
	d := FilterHold(RegimeRanging, "dead_market")
	if d.Action != ActionHold || d.Confidence != 0 || d.Agent != AgentFilter {
		t.Fatalf("unexpected FilterHold shape: %+v", d)
	}
	if d.IsActionable() {
		t.Fatalf("a filter HOLD must never be actionable")
	}
}
