// types.go — core data model: Snapshot, Decision, Regime, Position.
package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide mirrors the exchange side of an order. SATH is spot-only:
// SELL always means "sell what you hold", never a short.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Regime is the coarse market state a Snapshot is classified into.
type Regime string

const (
	RegimeTrending     Regime = "trending"
	RegimeReversal     Regime = "reversal"
	RegimeRanging      Regime = "ranging"
	RegimeLowVolatility Regime = "low_volatility"
)

// AgentKind identifies which regime-specialized agent produced a Decision.
type AgentKind string

const (
	AgentTrend    AgentKind = "trend"
	AgentReversal AgentKind = "reversal"
	AgentRange    AgentKind = "range"
	AgentFilter   AgentKind = "filter"
)

// Action is what a Decision tells the risk layer to do.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Pressure summarizes order-book imbalance direction.
type Pressure string

const (
	PressureBullish Pressure = "bullish"
	PressureBearish Pressure = "bearish"
	PressureNeutral Pressure = "neutral"
)

// Bar is one OHLCV candle of the collector's configured timeframe.
type Bar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Time   time.Time
}

// Indicators holds every derived series value the pipeline needs, computed
// once per Snapshot by the indicator computer (L0).
type Indicators struct {
	RSI float64

	EMA20  float64
	EMA50  float64
	EMA200 float64

	MACDLine float64
	MACDSig  float64
	MACDHist float64

	BollUpper float64
	BollMid   float64
	BollLower float64

	ATR  float64
	ATRP float64 // ATR as a percent of price
	ADX  float64

	VolumeMean20  float64
	VolumeCurrent float64
	VolumeRatio   float64
}

// OrderBook is the top-N depth snapshot plus derived imbalance/pressure.
type OrderBook struct {
	Bids            []PriceLevel
	Asks            []PriceLevel
	BestBidWall     decimal.Decimal
	BestAskWall     decimal.Decimal
	Imbalance       float64 // in [-1, 1]
	Pressure        Pressure
}

type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Snapshot is the full per-symbol market state consumed by the pipeline in
// one cycle. Immutable once built; never persisted.
type Snapshot struct {
	Symbol    string
	Timestamp time.Time
	Price     decimal.Decimal
	OHLCV     []Bar
	Indicators Indicators
	OrderBook OrderBook

	FundingRate   *float64
	OpenInterest  *float64
	BTCCorrelation *float64 // nil for BTC itself
}

// Decision is produced by an agent and consumed by the risk manager.
type Decision struct {
	Action     Action
	Confidence float64

	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal

	// ATR carries the snapshot's ATR(14) at decision time, so the risk
	// manager can re-validate SL distance against it even when the SL
	// came from the LLM rather than an agent's own atrStops call.
	ATR float64

	Agent     AgentKind
	Regime    Regime
	Reasoning string
}

// IsActionable reports whether a Decision carries a tradeable intent.
func (d Decision) IsActionable() bool {
	return d.Action == ActionBuy || d.Action == ActionSell
}

// Position is one live trade, durably tracked by the position manager.
type Position struct {
	ID     string
	Symbol string
	Side   OrderSide

	EntryPrice decimal.Decimal
	Size       decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal

	TrailingActive bool
	TrailingAnchor decimal.Decimal // high-water price since activation

	OCOIDs []string

	OpenedAt  time.Time
	Agent     AgentKind
	Regime    Regime
	Confidence float64

	LastTrailUpdate time.Time
}

// RewardRiskRatio returns (TP-entry)/(entry-SL) for a long position.
func (p Position) RewardRiskRatio() float64 {
	risk := p.EntryPrice.Sub(p.StopLoss)
	if risk.IsZero() || risk.IsNegative() {
		return 0
	}
	reward := p.TakeProfit.Sub(p.EntryPrice)
	r, _ := reward.Div(risk).Float64()
	return r
}

// TradeResult is recorded into RiskState when a Position closes.
type TradeResult struct {
	Symbol    string
	Agent     AgentKind
	Regime    Regime
	Side      OrderSide
	Size      decimal.Decimal
	EntryPrice decimal.Decimal
	ExitPrice decimal.Decimal
	PnL       decimal.Decimal
	Win       bool
	ReturnPct float64
	HoldTime  time.Duration
	ClosedAt  time.Time
}
