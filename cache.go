// FILE: cache.go
// Package main – decision cache.
//
// Fingerprint-keyed memoization of the pipeline's terminal Decision,
// with a short TTL and a bounded LRU eviction policy (golang-lru/v2),
// so two snapshots that land in the same coarse bucket within the TTL
// window don't re-run the agent/LLM pipeline.
package main

import (
	"fmt"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	decisionCacheSize = 10_000
	decisionCacheTTL  = 5 * time.Minute
)

// Fingerprint is a coarse, low-resolution key: two Snapshots that round
// to the same Fingerprint are treated as behaviorally identical within
// the cache TTL.
type Fingerprint string

// BuildFingerprint constructs the stable cache key from a Snapshot.
func BuildFingerprint(s *Snapshot) Fingerprint {
	rsiBucket := math.Round(s.Indicators.RSI/5) * 5
	signEMA50 := sign(s.Price.InexactFloat64() - s.Indicators.EMA50)
	signEMA200 := sign(s.Price.InexactFloat64() - s.Indicators.EMA200)
	signMACD := sign(s.Indicators.MACDHist)
	adxBucket := adxBucket(s.Indicators.ADX)
	volBucket := volumeRatioBucket(s.Indicators.VolumeRatio)

	return Fingerprint(fmt.Sprintf("%s|rsi=%.0f|ema50=%d|ema200=%d|macd=%d|adx=%s|vol=%s",
		s.Symbol, rsiBucket, signEMA50, signEMA200, signMACD, adxBucket, volBucket))
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func adxBucket(adx float64) string {
	switch {
	case adx < 20:
		return "<20"
	case adx < 25:
		return "20-25"
	case adx < 50:
		return "25-50"
	default:
		return ">=50"
	}
}

func volumeRatioBucket(ratio float64) string {
	switch {
	case ratio < 0.3:
		return "<0.3"
	case ratio < 1:
		return "0.3-1"
	case ratio < 1.5:
		return "1-1.5"
	default:
		return ">=1.5"
	}
}

type cacheEntry struct {
	decision Decision
	expires  time.Time
}

// DecisionCache memoizes terminal Decisions by Fingerprint with a TTL.
type DecisionCache struct {
	mu  sync.Mutex
	lru *lru.Cache[Fingerprint, cacheEntry]
	ttl time.Duration
}

func NewDecisionCache(ttl time.Duration) *DecisionCache {
	c, err := lru.New[Fingerprint, cacheEntry](decisionCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return &DecisionCache{lru: c, ttl: ttl}
}

// Get returns the cached Decision for fp if present and not expired.
func (c *DecisionCache) Get(fp Fingerprint) (Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Get(fp)
	if !ok {
		return Decision{}, false
	}
	if time.Now().After(entry.expires) {
		c.lru.Remove(fp)
		return Decision{}, false
	}
	return entry.decision, true
}

// Put memoizes d under fp with the cache's configured TTL.
func (c *DecisionCache) Put(fp Fingerprint, d Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(fp, cacheEntry{decision: d, expires: time.Now().Add(c.ttl)})
}
