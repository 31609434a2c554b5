// FILE: risk.go
// Package main – risk manager: runs every Decision through the
// validation ladder (kill switch, confidence, session blackout, SL/TP
// sanity, balance, correlation, Kelly sizing, fee impact, exchange
// filters, portfolio exposure) and, on approval, sizes the trade
// against the real exchange balance rather than a configured capital
// figure.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RiskManager validates Decisions and sizes approved trades.
type RiskManager struct {
	store      RiskStore
	cfg        *Config
	confidence *ConfidenceModel
	ex         Exchange

	correlationOf func(symbolA, symbolB string) float64
}

// NewRiskManager wires a RiskManager. collector may be nil (e.g. in
// tests that don't care about the correlation filter); when non-nil,
// its per-symbol BTC-correlation cache backs correlationOf.
func NewRiskManager(store RiskStore, cfg *Config, confidence *ConfidenceModel, ex Exchange, collector *Collector) *RiskManager {
	rm := &RiskManager{store: store, cfg: cfg, confidence: confidence, ex: ex}
	if collector != nil {
		rm.correlationOf = collector.CorrelationBetween
	}
	return rm
}

// Evaluate runs the validation ladder in order, fail-fast, and on
// success returns a sized Position ready for the execution gateway.
func (r *RiskManager) Evaluate(ctx context.Context, symbol string, d Decision) (*Position, error) {
	state, err := r.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatePersist, err)
	}

	if state.KillSwitchActive {
		return nil, ErrRiskKillSwitch
	}
	if d.Confidence < r.cfg.RiskManagement.MinConfidence {
		return nil, ErrRiskConfidence
	}
	if r.cfg.RiskManagement.SessionFilter.Enabled && inBlackout(time.Now().UTC(), r.cfg.RiskManagement.SessionFilter.AvoidHoursUTC) {
		return nil, ErrRiskSession
	}
	if err := r.validateSLTP(d); err != nil {
		return nil, err
	}

	balances, err := r.ex.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecExchange, err)
	}
	base, quote := splitSymbol(symbol)
	available := availableBalance(balances, d.Action, base, quote)

	open, err := r.store.OpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatePersist, err)
	}
	if r.correlationExceeded(symbol, d.Action, open) {
		return nil, ErrRiskCorrelation
	}

	size, notional, err := r.sizePosition(ctx, symbol, d, available)
	if err != nil {
		return nil, err
	}

	if err := r.checkFeeImpact(d, notional); err != nil {
		return nil, err
	}

	filters, err := r.ex.Filters(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecExchange, err)
	}
	size = roundToStep(size, filters.BaseStep)
	if size.Mul(d.EntryPrice).LessThan(filters.MinNotional) {
		return nil, ErrRiskMinSize
	}

	if err := r.checkPortfolioExposure(state, open, notional); err != nil {
		return nil, err
	}

	return &Position{
		Symbol:         symbol,
		Side:           sideFromAction(d.Action),
		EntryPrice:     d.EntryPrice,
		Size:           size,
		StopLoss:       d.StopLoss,
		TakeProfit:     d.TakeProfit,
		TrailingAnchor: d.EntryPrice,
		Agent:          d.Agent,
		Regime:         d.Regime,
		Confidence:     d.Confidence,
		OpenedAt:       time.Now().UTC(),
	}, nil
}

func sideFromAction(a Action) OrderSide {
	if a == ActionSell {
		return SideSell
	}
	return SideBuy
}

// validateSLTP enforces the minimum SL distance and minimum
// reward/risk ratio. The SL distance floor is the wider of a
// percent-of-entry minimum and an ATR multiple, so an LLM-sourced SL/TP
// (which never ran through atrStops) is held to the same bar as one an
// agent built directly.
func (r *RiskManager) validateSLTP(d Decision) error {
	entry := d.EntryPrice.InexactFloat64()
	sl := d.StopLoss.InexactFloat64()
	tp := d.TakeProfit.InexactFloat64()

	var slDist, rrNumer float64
	if d.Action == ActionSell {
		slDist = sl - entry
		rrNumer = entry - tp
	} else {
		slDist = entry - sl
		rrNumer = tp - entry
	}
	if slDist <= 0 {
		return ErrRiskRR
	}

	minDist := maxf(
		r.cfg.RiskManagement.ATRStops.MinDistancePercent/100*entry,
		d.ATR*r.cfg.RiskManagement.ATRStops.SLMultiplier,
	)
	if slDist < minDist {
		return ErrRiskRR
	}

	rr := rrNumer / slDist
	if rr < r.cfg.RiskManagement.MinRiskRewardRatio {
		return ErrRiskRR
	}
	return nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func availableBalance(balances []Balance, action Action, base, quote string) decimal.Decimal {
	asset := quote
	if action == ActionSell {
		asset = base
	}
	for _, b := range balances {
		if b.Asset == asset {
			return b.Available
		}
	}
	return decimal.Zero
}

// sizePosition applies fractional Kelly against the real balance
// that denominates this side of the trade.
func (r *RiskManager) sizePosition(ctx context.Context, symbol string, d Decision, available decimal.Decimal) (size, notional decimal.Decimal, err error) {
	history, err := r.store.KellyHistory(ctx, symbol)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %v", ErrStatePersist, err)
	}

	p := estimateWinProbability(history, d.Confidence)
	b := rewardRisk(d)
	if b <= 0 {
		return decimal.Zero, decimal.Zero, ErrRiskRR
	}

	fStar := (p*(b+1) - 1) / b
	fraction := r.cfg.RiskManagement.KellyCriterion.Fraction * fStar
	fraction = clampf(fraction, 0, r.cfg.RiskManagement.MaxRiskCap)
	if fraction <= 0 {
		return decimal.Zero, decimal.Zero, ErrRiskBalance
	}

	var capitalForSide decimal.Decimal
	if d.Action == ActionBuy {
		capitalForSide = available
	} else {
		// SELL sizes off the base-asset balance valued at the decision's
		// entry price, so the fraction still expresses a quote-equivalent
		// risk budget; available itself already gates the hard ceiling.
		capitalForSide = available.Mul(d.EntryPrice)
	}

	notionalTarget := decimal.NewFromFloat(fraction).Mul(capitalForSide)
	if d.Action == ActionBuy {
		if notionalTarget.GreaterThan(available) {
			notionalTarget = available
		}
		size = notionalTarget.Div(d.EntryPrice)
	} else {
		size = notionalTarget.Div(d.EntryPrice)
		if size.GreaterThan(available) {
			size = available
		}
	}
	if size.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, ErrRiskBalance
	}
	notional = size.Mul(d.EntryPrice)
	return size, notional, nil
}

// estimateWinProbability blends the Decision's confidence with the
// empirical win rate once >= 10 trades are available.
func estimateWinProbability(history []KellyEntry, confidence float64) float64 {
	p := clampf(confidence, 0, 1)
	if len(history) < 10 {
		return p
	}
	wins := 0
	for _, h := range history {
		if h.Win {
			wins++
		}
	}
	empirical := float64(wins) / float64(len(history))
	return (p + empirical) / 2
}

func rewardRisk(d Decision) float64 {
	entry := d.EntryPrice.InexactFloat64()
	sl := d.StopLoss.InexactFloat64()
	tp := d.TakeProfit.InexactFloat64()
	if d.Action == ActionSell {
		risk := sl - entry
		reward := entry - tp
		if risk <= 0 {
			return 0
		}
		return reward / risk
	}
	risk := entry - sl
	reward := tp - entry
	if risk <= 0 {
		return 0
	}
	return reward / risk
}

func clampf(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

func roundToStep(size, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return size
	}
	return size.Div(step).Floor().Mul(step)
}

// checkFeeImpact rejects a trade whose expected gross profit at TP
// wouldn't clear min_profit_to_fees times the round-trip fee cost.
func (r *RiskManager) checkFeeImpact(d Decision, notional decimal.Decimal) error {
	entry := d.EntryPrice.InexactFloat64()
	tp := d.TakeProfit.InexactFloat64()
	var grossProfit float64
	if d.Action == ActionSell {
		grossProfit = entry - tp
	} else {
		grossProfit = tp - entry
	}
	n, _ := notional.Float64()
	feeCost := 2 * r.cfg.RiskManagement.FeeRatePct * n
	expectedProfit := grossProfit * n / entry
	if expectedProfit < r.cfg.RiskManagement.MinProfitToFees*feeCost {
		return ErrRiskFees
	}
	return nil
}

// correlationExceeded rejects when a same-direction, highly correlated
// position is already open.
func (r *RiskManager) correlationExceeded(symbol string, action Action, open []Position) bool {
	if r.correlationOf == nil {
		return false
	}
	for _, p := range open {
		if p.Symbol == symbol {
			continue
		}
		sameDirection := (action == ActionBuy) == (p.Side == SideBuy)
		if !sameDirection {
			continue
		}
		c := r.correlationOf(symbol, p.Symbol)
		if c > r.cfg.RiskManagement.CorrelationThreshold || c < -r.cfg.RiskManagement.CorrelationThreshold {
			return true
		}
	}
	return false
}

// checkPortfolioExposure caps total open notional (including the
// position being sized) at current_capital * max_portfolio_exposure.
func (r *RiskManager) checkPortfolioExposure(state *RiskState, open []Position, addingNotional decimal.Decimal) error {
	total := addingNotional
	for _, p := range open {
		total = total.Add(p.Size.Mul(p.EntryPrice))
	}
	cap := state.CurrentCapital.Mul(decimal.NewFromFloat(r.cfg.RiskManagement.MaxPortfolioExposure))
	if total.GreaterThan(cap) {
		return ErrRiskBalance
	}
	return nil
}

func inBlackout(now time.Time, hours []int) bool {
	h := now.Hour()
	for _, bh := range hours {
		if bh == h {
			return true
		}
	}
	return false
}

// CheckKillSwitch evaluates the kill-switch open/close condition (spec
// §4.6): opens on drawdown breach or consecutive-loss streak, auto-closes
// at UTC day boundary once the drawdown is no longer breached.
func (r *RiskManager) CheckKillSwitch(ctx context.Context, startingCapital decimal.Decimal) error {
	state, err := r.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStatePersist, err)
	}
	recent, err := r.store.RecentResults(ctx, r.cfg.RiskManagement.MaxConsecutiveLosses)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStatePersist, err)
	}

	maxDrawdown := startingCapital.Mul(decimal.NewFromFloat(r.cfg.RiskManagement.MaxDailyDrawdownPct))
	drawdownBreached := state.DailyPnL.Neg().GreaterThanOrEqual(maxDrawdown)
	streakBreached := consecutiveLosses(recent) >= r.cfg.RiskManagement.MaxConsecutiveLosses

	now := time.Now().UTC()
	newDay := now.Format("2006-01-02") != state.LastUpdated.Format("2006-01-02")

	switch {
	case drawdownBreached || streakBreached:
		if !state.KillSwitchActive {
			reason := "consecutive_losses"
			if drawdownBreached {
				reason = "daily_drawdown"
			}
			return r.store.SetKillSwitch(ctx, true, reason)
		}
	case state.KillSwitchActive && newDay && !drawdownBreached:
		return r.store.SetKillSwitch(ctx, false, "")
	}
	return nil
}

func consecutiveLosses(results []TradeResult) int {
	n := 0
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].Win {
			break
		}
		n++
	}
	return n
}
