package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDirectnessAllHitsIsDirect(t *testing.T) {
	if got := directness(4, 4); got != "direct" {
		t.Fatalf("4/4 hits should be direct, got %s", got)
	}
}

func TestDirectnessAboveFloorAsksLLM(t *testing.T) {
	if got := directness(4, 5); got != "ask_llm" {
		t.Fatalf("4/5 hits (above the 75%% floor but not all) should ask the LLM, got %s", got)
	}
}

func TestDirectnessBelowFloorHolds(t *testing.T) {
	if got := directness(1, 4); got != "hold" {
		t.Fatalf("1/4 hits should hold, got %s", got)
	}
}

func TestAtrStopsBuyBracketsEntry(t *testing.T) {
	sl, tp := atrStops(100, 2, ActionBuy, 1.5, 3.0)
	if sl != 97 || tp != 106 {
		t.Fatalf("expected sl=97 tp=106, got sl=%v tp=%v", sl, tp)
	}
}

func TestAtrStopsSellBracketsEntry(t *testing.T) {
	sl, tp := atrStops(100, 2, ActionSell, 1.5, 3.0)
	if sl != 103 || tp != 94 {
		t.Fatalf("expected sl=103 tp=94, got sl=%v tp=%v", sl, tp)
	}
}

func TestWithinATRMultiple(t *testing.T) {
	if !withinATRMultiple(102, 100, 2, 1.5) {
		t.Fatalf("a 2-unit gap within a 3-unit ATR band should be inside tolerance")
	}
	if withinATRMultiple(110, 100, 2, 1.5) {
		t.Fatalf("a 10-unit gap should exceed a 3-unit ATR band")
	}
	if withinATRMultiple(100, 100, 0, 1.5) {
		t.Fatalf("zero ATR should never be considered within tolerance")
	}
}

func TestNewNBarHighRequiresStrictNewHigh(t *testing.T) {
	bars := make([]Bar, 25)
	for i := range bars {
		bars[i] = Bar{High: 100, Low: 90}
	}
	bars[len(bars)-1].High = 150
	if !newNBarHigh(bars, 20) {
		t.Fatalf("expected the last bar's high to register as a new 20-bar high")
	}
	bars[len(bars)-1].High = 100
	if newNBarHigh(bars, 20) {
		t.Fatalf("a tying high should not register as a new high")
	}
}

func TestAgentForDispatchesByRegime(t *testing.T) {
	cfg := testConfig()
	if AgentFor(RegimeTrending, cfg).Kind() != AgentTrend {
		t.Fatalf("trending regime should dispatch to the trend agent")
	}
	if AgentFor(RegimeReversal, cfg).Kind() != AgentReversal {
		t.Fatalf("reversal regime should dispatch to the reversal agent")
	}
	if AgentFor(RegimeRanging, cfg).Kind() != AgentRange {
		t.Fatalf("ranging regime should dispatch to the range agent")
	}
	if AgentFor(RegimeLowVolatility, cfg).Kind() != AgentFilter {
		t.Fatalf("low-volatility regime should dispatch to the filter agent")
	}
}

func TestRangeAgentBuysOnLowerEdgeConfluence(t *testing.T) {
	s := &Snapshot{
		Symbol: "BTC/USDT", Price: decimal.NewFromFloat(99),
		Indicators: Indicators{RSI: 30, BollLower: 100, BollUpper: 120},
		OrderBook:  OrderBook{Imbalance: 0.2, Pressure: PressureBullish},
		OHLCV:      trendingBars(30, 100, 0),
	}
	d, err := (&RangeAgent{}).Decide(context.Background(), s, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionBuy {
		t.Fatalf("expected a BUY on full lower-edge confluence, got %+v", d)
	}
}

func TestRangeAgentHoldsWithoutEdgeConfluence(t *testing.T) {
	s := &Snapshot{
		Symbol: "BTC/USDT", Price: decimal.NewFromFloat(110),
		Indicators: Indicators{RSI: 50, BollLower: 100, BollUpper: 120},
		OrderBook:  OrderBook{Imbalance: 0, Pressure: PressureNeutral},
		OHLCV:      trendingBars(30, 100, 0),
	}
	d, err := (&RangeAgent{}).Decide(context.Background(), s, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionHold {
		t.Fatalf("expected a HOLD with no edge confluence, got %+v", d)
	}
}

func TestFilterAgentAlwaysHolds(t *testing.T) {
	d, err := (&FilterAgent{}).Decide(context.Background(), &Snapshot{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionHold || d.Confidence != 0 {
		t.Fatalf("filter agent must always hold with zero confidence, got %+v", d)
	}
}
