// FILE: collector.go
// Package main – market-data collector.
//
// Pulls OHLCV, order-book depth, funding/open-interest, and a
// BTC-correlation scalar from the Exchange collaborator and packages them
// into an immutable Snapshot carrying a fully-computed Indicators block.
// Refuses to build a Snapshot on too little warmup history rather than
// let the indicator stack compute over a short, noisy window.
package main

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	minHistoryBars = 200
	orderBookDepth = 20
	timeframe      = "15m"
)

// Collector builds Snapshots for the watchlist.
type Collector struct {
	ex      Exchange
	btc     string // reference symbol for correlation, usually "BTC/USDT"
	streams map[string]*OrderBookStream

	mu   sync.Mutex
	corr map[string]float64 // last observed BTC-correlation per symbol
}

func NewCollector(ex Exchange, btcSymbol string) *Collector {
	return &Collector{ex: ex, btc: btcSymbol, streams: map[string]*OrderBookStream{}, corr: map[string]float64{}}
}

// UseOrderBookStream registers a live websocket order-book stream for a
// symbol; Collect prefers it over the Exchange's REST OrderBook call.
func (c *Collector) UseOrderBookStream(symbol string, s *OrderBookStream) {
	c.streams[symbol] = s
}

// Collect fetches everything needed to build a Snapshot for symbol.
func (c *Collector) Collect(ctx context.Context, symbol string) (*Snapshot, error) {
	bars, err := c.ex.Candles(ctx, symbol, timeframe, minHistoryBars+50)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	if len(bars) < minHistoryBars {
		return nil, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientHistory, len(bars), minHistoryBars)
	}

	price, err := c.ex.Ticker(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	ob, err := c.orderBook(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	funding, _ := c.ex.FundingRate(ctx, symbol)
	oi, _ := c.ex.OpenInterest(ctx, symbol)

	var corr *float64
	if symbol != c.btc {
		if btcBars, err := c.ex.Candles(ctx, c.btc, timeframe, minHistoryBars); err == nil {
			v := closeCorrelation(bars, btcBars)
			corr = &v
		}
	}

	c.mu.Lock()
	if symbol == c.btc {
		c.corr[symbol] = 1
	} else if corr != nil {
		c.corr[symbol] = *corr
	}
	c.mu.Unlock()

	snap := &Snapshot{
		Symbol:         symbol,
		Timestamp:      time.Now().UTC(),
		Price:          price,
		OHLCV:          bars,
		OrderBook:      ob,
		FundingRate:    funding,
		OpenInterest:   oi,
		BTCCorrelation: corr,
	}
	snap.Indicators = computeIndicators(bars)
	return snap, nil
}

// orderBook prefers a live websocket stream's latest book, falling back
// to one REST call when no stream is registered or it has no data yet.
func (c *Collector) orderBook(ctx context.Context, symbol string) (OrderBook, error) {
	if s, ok := c.streams[symbol]; ok {
		if ob, have := s.Latest(); have {
			return ob, nil
		}
	}
	return c.ex.OrderBook(ctx, symbol, orderBookDepth)
}

// computeIndicators runs the L0 indicator computer over the tail of an
// OHLCV window and returns the values for the most recent bar.
func computeIndicators(bars []Bar) Indicators {
	last := len(bars) - 1
	rsi := RSI(bars, 14)
	ema20 := EMA(bars, 20)
	ema50 := EMA(bars, 50)
	ema200 := EMA(bars, 200)
	macdLine, macdSig, macdHist := MACD(bars)
	bUpper, bMid, bLower := Bollinger(bars, 20, 2)
	atr := ATR(bars, 14)
	adx := ADX(bars, 14)
	volMean, volCur, volRatio := VolumeStats(bars, 20)

	price := bars[last].Close
	atrp := 0.0
	if price != 0 {
		atrp = (atr[last] / price) * 100
	}

	return Indicators{
		RSI:           rsi[last],
		EMA20:         ema20[last],
		EMA50:         ema50[last],
		EMA200:        ema200[last],
		MACDLine:      macdLine[last],
		MACDSig:       macdSig[last],
		MACDHist:      macdHist[last],
		BollUpper:     bUpper[last],
		BollMid:       bMid[last],
		BollLower:     bLower[last],
		ATR:           atr[last],
		ATRP:          atrp,
		ADX:           adx[last],
		VolumeMean20:  volMean,
		VolumeCurrent: volCur,
		VolumeRatio:   volRatio,
	}
}

// CorrelationBetween approximates the pairwise correlation of two
// watchlist symbols from their individually observed BTC-correlation
// (corr(a,b) ~= corr(a,BTC) * corr(b,BTC)), avoiding an O(n^2) pairwise
// candle fetch every cycle. Returns 0 (uncorrelated) until both symbols
// have been through at least one Collect call.
func (c *Collector) CorrelationBetween(a, b string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ca, ok := c.corr[a]
	if !ok {
		return 0
	}
	cb, ok := c.corr[b]
	if !ok {
		return 0
	}
	return ca * cb
}

// closeCorrelation returns the Pearson correlation of Close returns
// between two bar series over their common tail length.
func closeCorrelation(a, b []Bar) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 3 {
		return 0
	}
	a = a[len(a)-n:]
	b = b[len(b)-n:]

	retA := make([]float64, 0, n-1)
	retB := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if a[i-1].Close != 0 {
			retA = append(retA, (a[i].Close-a[i-1].Close)/a[i-1].Close)
		}
		if b[i-1].Close != 0 {
			retB = append(retB, (b[i].Close-b[i-1].Close)/b[i-1].Close)
		}
	}
	m := len(retA)
	if len(retB) < m {
		m = len(retB)
	}
	if m < 2 {
		return 0
	}
	var meanA, meanB float64
	for i := 0; i < m; i++ {
		meanA += retA[i]
		meanB += retB[i]
	}
	meanA /= float64(m)
	meanB /= float64(m)

	var cov, varA, varB float64
	for i := 0; i < m; i++ {
		da := retA[i] - meanA
		db := retB[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	corr := cov / math.Sqrt(varA*varB)
	if corr > 1 {
		return 1
	}
	if corr < -1 {
		return -1
	}
	return corr
}
