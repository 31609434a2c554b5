package main

import (
	"math"
	"testing"
	"time"
)

func flatBars(n int, price float64) []Bar {
	bars := make([]Bar, n)
	t := time.Now().UTC()
	for i := range bars {
		bars[i] = Bar{Open: price, High: price, Low: price, Close: price, Volume: 100, Time: t.Add(time.Duration(i) * time.Minute)}
	}
	return bars
}

func trendingBars(n int, start, step float64) []Bar {
	bars := make([]Bar, n)
	t := time.Now().UTC()
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = Bar{Open: c - step/2, High: c + step, Low: c - step, Close: c, Volume: 100, Time: t.Add(time.Duration(i) * time.Minute)}
	}
	return bars
}

func TestSMAFlatSeriesConverges(t *testing.T) {
	bars := flatBars(30, 100)
	out := SMA(bars, 10)
	if math.IsNaN(out[29]) || out[29] != 100 {
		t.Fatalf("SMA of a flat series should equal the price, got %v", out[29])
	}
	for i := 0; i < 9; i++ {
		if !math.IsNaN(out[i]) {
			t.Fatalf("SMA index %d before the window fills should be NaN, got %v", i, out[i])
		}
	}
}

func TestEMAFlatSeriesConverges(t *testing.T) {
	bars := flatBars(40, 50)
	out := EMA(bars, 20)
	if math.Abs(out[39]-50) > 1e-9 {
		t.Fatalf("EMA of a flat series should equal the price, got %v", out[39])
	}
}

func TestRSIBoundedZeroToHundred(t *testing.T) {
	bars := trendingBars(60, 100, 1)
	out := RSI(bars, 14)
	for i, v := range out {
		if v < 0 || v > 100 {
			t.Fatalf("RSI[%d]=%v out of [0,100] bounds", i, v)
		}
	}
	if out[59] < 90 {
		t.Fatalf("RSI of a strictly rising series should be near 100, got %v", out[59])
	}
}

func TestATRNonNegative(t *testing.T) {
	bars := trendingBars(50, 100, 2)
	out := ATR(bars, 14)
	for i, v := range out {
		if v < 0 {
			t.Fatalf("ATR[%d]=%v must never be negative", i, v)
		}
	}
}

func TestADXBoundedZeroToHundred(t *testing.T) {
	bars := trendingBars(80, 100, 1.5)
	out := ADX(bars, 14)
	for i, v := range out {
		if v < 0 || v > 100 {
			t.Fatalf("ADX[%d]=%v out of [0,100] bounds", i, v)
		}
	}
}

func TestVolumeStatsAvoidsDivideByZero(t *testing.T) {
	bars := flatBars(25, 100)
	for i := range bars {
		bars[i].Volume = 0
	}
	mean, cur, ratio := VolumeStats(bars, 20)
	if mean != 0 || cur != 0 {
		t.Fatalf("expected zero mean/current volume, got mean=%v cur=%v", mean, cur)
	}
	if ratio != 1 {
		t.Fatalf("zero-volume average should produce a ratio of 1, not %v", ratio)
	}
}

func TestBollingerBandsStraddleMid(t *testing.T) {
	bars := trendingBars(40, 100, 0.5)
	upper, mid, lower := Bollinger(bars, 20, 2)
	for i := 19; i < len(bars); i++ {
		if upper[i] < mid[i] || mid[i] < lower[i] {
			t.Fatalf("bands out of order at %d: upper=%v mid=%v lower=%v", i, upper[i], mid[i], lower[i])
		}
	}
}

func TestMACDHistogramIsLineMinusSignal(t *testing.T) {
	bars := trendingBars(60, 100, 1)
	line, signal, hist := MACD(bars)
	for i := 40; i < len(bars); i++ {
		want := line[i] - signal[i]
		if math.Abs(hist[i]-want) > 1e-9 {
			t.Fatalf("MACD histogram mismatch at %d: got %v want %v", i, hist[i], want)
		}
	}
}
