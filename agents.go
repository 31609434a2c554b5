// FILE: agents.go
// Package main – regime-specialized agents and the directness rule.
//
// Each agent pre-computes its go/no-go criteria in code and only
// consults the LLM when the hit ratio is ambiguous: strictly between
// floor(N*0.75) and N criteria met. A dispatch table maps regime to
// agent, avoiding dynamic method lookup.
package main

import (
	"context"
	"fmt"
)

// Agent is the common interface every regime specialist implements.
type Agent interface {
	Kind() AgentKind
	Decide(ctx context.Context, s *Snapshot, llm *LLMClient) (Decision, error)
}

// AgentFor dispatches a regime to its specialist over a fixed set of
// tagged variants.
func AgentFor(regime Regime, cfg *Config) Agent {
	switch regime {
	case RegimeTrending:
		return &TrendAgent{minADX: cfg.AIAgents.MinADXTrend}
	case RegimeReversal:
		return &ReversalAgent{}
	case RegimeRanging:
		return &RangeAgent{}
	default:
		return &FilterAgent{}
	}
}

// directness evaluates a table of pre-computed criteria and classifies
// the result as decide-directly, ask-the-LLM, or hold, per the N-of-4
// (or N-of-whatever) rule. The trend agent uses it; the reversal and
// range agents apply their own thresholds.
func directness(hits, total int) string {
	floor := (total * 75) / 100
	switch {
	case hits == total:
		return "direct"
	case hits > floor:
		return "ask_llm"
	default:
		return "hold"
	}
}

// --- Trend agent (regime = trending) ---------------------------------

type TrendAgent struct {
	minADX float64
}

func (a *TrendAgent) Kind() AgentKind { return AgentTrend }

func (a *TrendAgent) Decide(ctx context.Context, s *Snapshot, llm *LLMClient) (Decision, error) {
	ind := s.Indicators
	price := s.Price.InexactFloat64()

	longCriteria := [4]bool{
		price > ind.EMA200,
		ind.EMA50 > ind.EMA200 && ind.MACDHist > 0,
		ind.ADX >= a.minADX,
		(ind.VolumeRatio >= 0.3 && withinATRMultiple(price, ind.EMA50, ind.ATR, 1.5)) ||
			(ind.ADX >= 35 && newNBarHigh(s.OHLCV, 20) && ind.VolumeRatio >= 1.0),
	}
	shortCriteria := [4]bool{
		price < ind.EMA200,
		ind.EMA50 < ind.EMA200 && ind.MACDHist < 0,
		ind.ADX >= a.minADX,
		(ind.VolumeRatio >= 0.3 && withinATRMultiple(price, ind.EMA50, ind.ATR, 1.5)) ||
			(ind.ADX >= 35 && newNBarLow(s.OHLCV, 20) && ind.VolumeRatio >= 1.0),
	}

	longHits := countTrue(longCriteria[:])
	shortHits := countTrue(shortCriteria[:])

	if longHits >= shortHits {
		return a.resolve(ctx, s, llm, ActionBuy, longCriteria[:], longHits)
	}
	return a.resolve(ctx, s, llm, ActionSell, shortCriteria[:], shortHits)
}

func (a *TrendAgent) resolve(ctx context.Context, s *Snapshot, llm *LLMClient, action Action, criteria []bool, hits int) (Decision, error) {
	switch directness(hits, len(criteria)) {
	case "direct":
		conf := trendConfidence(s.Indicators.ADX, a.minADX)
		return directionalDecision(s, action, conf, AgentTrend, RegimeTrending, "trend criteria 4/4"), nil
	case "ask_llm":
		return consultDeepLLM(ctx, llm, s, RegimeTrending, AgentTrend, criteria)
	default:
		return holdDecision(AgentTrend, RegimeTrending, "trend criteria below threshold"), nil
	}
}

func trendConfidence(adx, minADX float64) float64 {
	spread := adx - minADX
	if spread < 0 {
		spread = 0
	}
	conf := 0.6 + spread/100
	return clamp01(conf)
}

// --- Reversal agent (regime = reversal) -------------------------------

type ReversalAgent struct{}

func (a *ReversalAgent) Kind() AgentKind { return AgentReversal }

func (a *ReversalAgent) Decide(ctx context.Context, s *Snapshot, llm *LLMClient) (Decision, error) {
	ind := s.Indicators
	price := s.Price.InexactFloat64()

	taggedLowerBand := tagBandRecently(s.OHLCV, ind.BollLower, 2, true)
	confirmLong := len(s.OHLCV) > 0 && s.OHLCV[len(s.OHLCV)-1].Close > ind.BollLower

	longCriteria := []bool{
		ind.RSI < 30,
		price <= ind.BollLower || taggedLowerBand,
		confirmLong,
		ind.VolumeRatio >= 0.3 || s.OrderBook.Imbalance >= 0.2,
	}

	taggedUpperBand := tagBandRecently(s.OHLCV, ind.BollUpper, 2, false)
	confirmShort := len(s.OHLCV) > 0 && s.OHLCV[len(s.OHLCV)-1].Close < ind.BollUpper

	shortCriteria := []bool{
		ind.RSI > 70,
		price >= ind.BollUpper || taggedUpperBand,
		confirmShort,
		ind.VolumeRatio >= 0.3 || s.OrderBook.Imbalance <= -0.2,
	}

	longHits := countTrue(longCriteria)
	shortHits := countTrue(shortCriteria)

	action := ActionBuy
	criteria := longCriteria
	hits := longHits
	if shortHits > longHits {
		action = ActionSell
		criteria = shortCriteria
		hits = shortHits
	}

	// 3 or 4 of 4 -> deep LLM; 2 or fewer -> HOLD. There is no
	// "decide directly" branch for this agent (unlike trend/range), so
	// the shared directness() helper isn't reused here.
	if hits >= 3 {
		return consultDeepLLM(ctx, llm, s, RegimeReversal, AgentReversal, criteria)
	}
	_ = action
	return holdDecision(AgentReversal, RegimeReversal, "reversal criteria below threshold"), nil
}

// --- Range agent (regime = ranging, optional) -------------------------

type RangeAgent struct{}

func (a *RangeAgent) Kind() AgentKind { return AgentRange }

func (a *RangeAgent) Decide(ctx context.Context, s *Snapshot, llm *LLMClient) (Decision, error) {
	ind := s.Indicators
	price := s.Price.InexactFloat64()

	nearLowerEdge := price <= ind.BollLower*1.005
	nearUpperEdge := price >= ind.BollUpper*0.995

	buyCriteria := []bool{
		nearLowerEdge,
		ind.RSI < 35,
		s.OrderBook.Imbalance >= 0.1 || s.OrderBook.Pressure == PressureBullish,
	}
	sellCriteria := []bool{
		nearUpperEdge,
		ind.RSI > 65,
		s.OrderBook.Imbalance <= -0.1 || s.OrderBook.Pressure == PressureBearish,
	}

	if countTrue(buyCriteria) == len(buyCriteria) {
		return directionalDecision(s, ActionBuy, 0.6, AgentRange, RegimeRanging, "range: lower edge + RSI oversold + book support"), nil
	}
	if countTrue(sellCriteria) == len(sellCriteria) {
		return directionalDecision(s, ActionSell, 0.6, AgentRange, RegimeRanging, "range: upper edge + RSI overbought + book resistance"), nil
	}
	return holdDecision(AgentRange, RegimeRanging, "no range edge confirmed; never hold through a failed breakout setup"), nil
}

// --- Filter agent (used by the pre-filter/volatility gate path) ------

type FilterAgent struct{}

func (a *FilterAgent) Kind() AgentKind { return AgentFilter }

func (a *FilterAgent) Decide(ctx context.Context, s *Snapshot, llm *LLMClient) (Decision, error) {
	return holdDecision(AgentFilter, RegimeLowVolatility, "low volatility regime"), nil
}

// --- shared helpers ----------------------------------------------------

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func withinATRMultiple(price, ema, atr, mult float64) bool {
	if atr == 0 {
		return false
	}
	diff := price - ema
	if diff < 0 {
		diff = -diff
	}
	return diff <= atr*mult
}

func newNBarHigh(bars []Bar, n int) bool {
	if len(bars) < n+1 {
		return false
	}
	last := bars[len(bars)-1]
	window := bars[len(bars)-1-n : len(bars)-1]
	for _, b := range window {
		if b.High >= last.High {
			return false
		}
	}
	return true
}

func newNBarLow(bars []Bar, n int) bool {
	if len(bars) < n+1 {
		return false
	}
	last := bars[len(bars)-1]
	window := bars[len(bars)-1-n : len(bars)-1]
	for _, b := range window {
		if b.Low <= last.Low {
			return false
		}
	}
	return true
}

// tagBandRecently reports whether price touched (lower: <=, upper: >=)
// the given band level within the last n bars.
func tagBandRecently(bars []Bar, level float64, n int, lower bool) bool {
	if len(bars) == 0 {
		return false
	}
	start := len(bars) - n
	if start < 0 {
		start = 0
	}
	for _, b := range bars[start:] {
		if lower && b.Low <= level {
			return true
		}
		if !lower && b.High >= level {
			return true
		}
	}
	return false
}

func holdDecision(agent AgentKind, regime Regime, reason string) Decision {
	return Decision{Action: ActionHold, Confidence: 0, Agent: agent, Regime: regime, Reasoning: reason}
}

func directionalDecision(s *Snapshot, action Action, confidence float64, agent AgentKind, regime Regime, reason string) Decision {
	entry := s.Price
	atr := s.Indicators.ATR
	sl, tp := atrStops(entry.InexactFloat64(), atr, action, 1.5, 3.0)
	return Decision{
		Action:     action,
		Confidence: confidence,
		EntryPrice: entry,
		StopLoss:   decimalFromFloat(sl),
		TakeProfit: decimalFromFloat(tp),
		ATR:        atr,
		Agent:      agent,
		Regime:     regime,
		Reasoning:  reason,
	}
}

// consultDeepLLM builds the prompt (symbol/timeframe, labelled
// indicators, the pre-evaluated criteria table the LLM must not
// recompute, a book/funding/OI summary, and the required JSON schema)
// and parses the response through the three-tier parser.
func consultDeepLLM(ctx context.Context, llm *LLMClient, s *Snapshot, regime Regime, agent AgentKind, criteria []bool) (Decision, error) {
	prompt := buildAgentPrompt(s, regime, criteria)
	raw, err := llm.Call(ctx, TierDeep, prompt, true)
	if err != nil {
		// llm.transport is retryable at the LLMClient layer already;
		// once it surfaces here the cycle falls back to HOLD.
		return holdDecision(agent, regime, "llm transport failure, defaulting to hold"), nil
	}
	d, err := ParseLLMResponse(raw)
	if err != nil {
		return holdDecision(agent, regime, "llm parse failure, defaulting to hold"), nil
	}
	d.Agent = agent
	d.Regime = regime
	d.ATR = s.Indicators.ATR
	if d.Action != ActionHold && d.EntryPrice.IsZero() {
		d.EntryPrice = s.Price
	}
	return d, nil
}

func buildAgentPrompt(s *Snapshot, regime Regime, criteria []bool) string {
	ind := s.Indicators
	return fmt.Sprintf(`Symbol: %s  Timeframe: %s
Regime: %s
Indicators: price=%s rsi=%.2f ema20=%.4f ema50=%.4f ema200=%.4f macd_hist=%.4f atr_pct=%.3f adx=%.2f volume_ratio=%.2f
Order book: imbalance=%.3f pressure=%s
Pre-evaluated criteria (do not recompute): %v
Respond with exactly this JSON schema: {"decision":"BUY|SELL|HOLD","confidence":0..1,"entry":"","stop_loss":"","take_profit":"","reasoning":""}`,
		s.Symbol, timeframe, regime, s.Price.String(), ind.RSI, ind.EMA20, ind.EMA50, ind.EMA200,
		ind.MACDHist, ind.ATRP, ind.ADX, ind.VolumeRatio,
		s.OrderBook.Imbalance, s.OrderBook.Pressure, criteria)
}
