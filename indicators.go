// FILE: indicators.go
// Package main – technical indicators computed over an OHLCV window.
//
// SMA, EMA, RSI, MACD, Bollinger bands, ATR/ATR%, ADX, Z-score, and
// volume SMA/ratio, each a plain float64-slice transform aligned to the
// input Close series.
package main

import "math"

// SMA returns the n-period simple moving average of Close, aligned to c.
// For indices < n-1, the function returns NaN.
func SMA(c []Bar, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	var sum float64
	for i := range c {
		sum += c[i].Close
		if i >= n {
			sum -= c[i-n].Close
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// EMA returns the n-period exponential moving average of Close, seeded
// with the SMA of the first n bars.
func EMA(c []Bar, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	k := 2.0 / (float64(n) + 1.0)
	var sum float64
	for i := range c {
		if i < n-1 {
			sum += c[i].Close
			out[i] = math.NaN()
			continue
		}
		if i == n-1 {
			sum += c[i].Close
			out[i] = sum / float64(n)
			continue
		}
		out[i] = c[i].Close*k + out[i-1]*(1-k)
	}
	return out
}

// RSI returns the n-period Relative Strength Index using Wilder's
// smoothing. Indices before the first full window are zero (0).
func RSI(c []Bar, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) == 0 {
		return out
	}
	var gain, loss float64
	for i := 1; i < len(c); i++ {
		d := c[i].Close - c[i-1].Close
		if i <= n {
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
			if i == n {
				avgGain := gain / float64(n)
				avgLoss := loss / float64(n)
				rs := 0.0
				if avgLoss != 0 {
					rs = avgGain / avgLoss
				}
				out[i] = 100.0 - (100.0 / (1.0 + rs))
			}
		} else {
			if d > 0 {
				gain = (gain*float64(n-1) + d) / float64(n)
				loss = (loss * float64(n-1)) / float64(n)
			} else {
				gain = (gain * float64(n-1)) / float64(n)
				loss = (loss*float64(n-1) - d) / float64(n)
			}
			rs := 0.0
			if loss != 0 {
				rs = gain / loss
			}
			out[i] = 100.0 - (100.0 / (1.0 + rs))
		}
	}
	return out
}

// ZScore returns the rolling z-score of Close over window n, aligned to c.
// For indices < n-1, the function returns 0.
func ZScore(c []Bar, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 1 || len(c) == 0 {
		return out
	}
	var sum, sumSq float64
	for i := range c {
		x := c[i].Close
		sum += x
		sumSq += x * x
		if i >= n {
			y := c[i-n].Close
			sum -= y
			sumSq -= y * y
		}
		if i >= n-1 {
			mean := sum / float64(n)
			variance := (sumSq / float64(n)) - (mean * mean)
			std := math.Sqrt(math.Max(variance, 1e-12))
			out[i] = (x - mean) / std
		} else {
			out[i] = 0
		}
	}
	return out
}

// MACD returns the MACD line, signal line, and histogram using the
// standard 12/26/9 periods.
func MACD(c []Bar) (line, signal, hist []float64) {
	ema12 := EMA(c, 12)
	ema26 := EMA(c, 26)
	line = make([]float64, len(c))
	for i := range c {
		if math.IsNaN(ema12[i]) || math.IsNaN(ema26[i]) {
			line[i] = math.NaN()
			continue
		}
		line[i] = ema12[i] - ema26[i]
	}
	signal = emaOfSeries(line, 9)
	hist = make([]float64, len(c))
	for i := range c {
		if math.IsNaN(line[i]) || math.IsNaN(signal[i]) {
			hist[i] = math.NaN()
			continue
		}
		hist[i] = line[i] - signal[i]
	}
	return line, signal, hist
}

// emaOfSeries computes an n-period EMA directly over a float64 series
// (used for the MACD signal line, whose input is the MACD line itself).
func emaOfSeries(s []float64, n int) []float64 {
	out := make([]float64, len(s))
	if n <= 0 || len(s) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	k := 2.0 / (float64(n) + 1.0)
	var sum float64
	seeded := false
	count := 0
	for i := range s {
		if math.IsNaN(s[i]) {
			out[i] = math.NaN()
			continue
		}
		if !seeded {
			sum += s[i]
			count++
			out[i] = math.NaN()
			if count == n {
				out[i] = sum / float64(n)
				seeded = true
			}
			continue
		}
		out[i] = s[i]*k + out[i-1]*(1-k)
	}
	return out
}

// Bollinger returns upper, mid, lower bands over window n with width
// stdDevs standard deviations (defaults: n=20, stdDevs=2).
func Bollinger(c []Bar, n int, stdDevs float64) (upper, mid, lower []float64) {
	mid = SMA(c, n)
	upper = make([]float64, len(c))
	lower = make([]float64, len(c))
	for i := range c {
		if i < n-1 {
			upper[i] = math.NaN()
			lower[i] = math.NaN()
			continue
		}
		var sumSq float64
		for j := i - n + 1; j <= i; j++ {
			d := c[j].Close - mid[i]
			sumSq += d * d
		}
		std := math.Sqrt(sumSq / float64(n))
		upper[i] = mid[i] + stdDevs*std
		lower[i] = mid[i] - stdDevs*std
	}
	return upper, mid, lower
}

// ATR returns the n-period Average True Range (Wilder's smoothing).
func ATR(c []Bar, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) == 0 {
		return out
	}
	tr := make([]float64, len(c))
	for i := range c {
		if i == 0 {
			tr[i] = c[i].High - c[i].Low
			continue
		}
		hl := c[i].High - c[i].Low
		hc := math.Abs(c[i].High - c[i-1].Close)
		lc := math.Abs(c[i].Low - c[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	var sum float64
	for i := range c {
		if i < n {
			sum += tr[i]
			if i == n-1 {
				out[i] = sum / float64(n)
			}
			continue
		}
		out[i] = (out[i-1]*float64(n-1) + tr[i]) / float64(n)
	}
	return out
}

// ADX returns the n-period Average Directional Index (Wilder's
// smoothing of +DI/-DI into DX).
func ADX(c []Bar, n int) []float64 {
	out := make([]float64, len(c))
	if n <= 0 || len(c) < 2 {
		return out
	}
	plusDM := make([]float64, len(c))
	minusDM := make([]float64, len(c))
	tr := make([]float64, len(c))
	for i := 1; i < len(c); i++ {
		upMove := c[i].High - c[i-1].High
		downMove := c[i-1].Low - c[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		hl := c[i].High - c[i].Low
		hc := math.Abs(c[i].High - c[i-1].Close)
		lc := math.Abs(c[i].Low - c[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	smooth := func(s []float64) []float64 {
		r := make([]float64, len(s))
		var sum float64
		for i := range s {
			if i < n {
				sum += s[i]
				if i == n-1 {
					r[i] = sum
				}
				continue
			}
			r[i] = r[i-1] - r[i-1]/float64(n) + s[i]
		}
		return r
	}
	smTR := smooth(tr)
	smPlusDM := smooth(plusDM)
	smMinusDM := smooth(minusDM)

	dx := make([]float64, len(c))
	for i := range c {
		if smTR[i] == 0 {
			continue
		}
		plusDI := 100 * smPlusDM[i] / smTR[i]
		minusDI := 100 * smMinusDM[i] / smTR[i]
		denom := plusDI + minusDI
		if denom == 0 {
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / denom
	}

	var sum float64
	for i := range c {
		if i < 2*n-1 {
			if i >= n-1 {
				sum += dx[i]
			}
			if i == 2*n-2 {
				out[i] = sum / float64(n)
			}
			continue
		}
		out[i] = (out[i-1]*float64(n-1) + dx[i]) / float64(n)
	}
	return out
}

// VolumeStats returns the n-period volume SMA, the current bar's volume,
// and the ratio of the two (1.0 when the average is zero, to avoid a
// divide-by-zero pushing the ratio to +Inf on dead symbols).
func VolumeStats(c []Bar, n int) (mean20, current, ratio float64) {
	if len(c) == 0 {
		return 0, 0, 1
	}
	sma := SMA(c, n)
	mean20 = sma[len(sma)-1]
	current = c[len(c)-1].Volume
	if math.IsNaN(mean20) || mean20 == 0 {
		return mean20, current, 1
	}
	return mean20, current, current / mean20
}
