package main

import "testing"

func TestDecimalFromFloatRoundTrips(t *testing.T) {
	d := decimalFromFloat(12.345)
	if f, _ := d.Float64(); f != 12.345 {
		t.Fatalf("expected 12.345, got %v", f)
	}
}

func TestAtrStopsZeroATRCollapsesToEntry(t *testing.T) {
	sl, tp := atrStops(100, 0, ActionBuy, 1.5, 3.0)
	if sl != 100 || tp != 100 {
		t.Fatalf("zero ATR should collapse both stops to entry, got sl=%v tp=%v", sl, tp)
	}
}

func TestAtrStopsScalesWithMultiplier(t *testing.T) {
	slTight, tpTight := atrStops(100, 1, ActionBuy, 1, 2)
	slWide, tpWide := atrStops(100, 1, ActionBuy, 2, 4)
	if slWide >= slTight {
		t.Fatalf("a larger SL multiplier should push the stop further from entry: tight=%v wide=%v", slTight, slWide)
	}
	if tpWide <= tpTight {
		t.Fatalf("a larger TP multiplier should push the target further from entry: tight=%v wide=%v", tpTight, tpWide)
	}
}
