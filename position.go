// FILE: position.go
// Package main – position manager: trailing-stop state machine, fill
// detection, and startup reconciliation against the exchange.
//
// The trailing stop enforces one invariant throughout: once active, the
// stop-loss may only move to lock in more profit, never loosen,
// ratcheting against a retreat-proof high-water-mark anchor with an
// activation threshold and a cooldown between adjustments.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PositionManager owns every open Position's lifecycle after the
// execution gateway opens it: trailing-stop maintenance, exit detection,
// and result recording.
type PositionManager struct {
	store      RiskStore
	ex         Exchange
	cfg        *Config
	confidence *ConfidenceModel
	events     *EventLog
}

func NewPositionManager(store RiskStore, ex Exchange, cfg *Config, confidence *ConfidenceModel, events *EventLog) *PositionManager {
	return &PositionManager{store: store, ex: ex, cfg: cfg, confidence: confidence, events: events}
}

// Reconcile repairs positions at startup: any open_trades row with no
// corresponding live OCO order on the exchange is re-bracketed with a
// fresh OCO pair. Exchange balances and orders that have no open_trades
// row are not inspected, so such positions are not adopted.
func (pm *PositionManager) Reconcile(ctx context.Context) error {
	open, err := pm.store.OpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStatePersist, err)
	}
	for _, p := range open {
		orders, err := pm.ex.OpenOrders(ctx, p.Symbol)
		if err != nil {
			pm.events.Emit("reconcile_error", map[string]any{"symbol": p.Symbol, "error": err.Error()})
			continue
		}
		if !hasLiveOCO(orders, p.OCOIDs) {
			pm.events.Emit("reconcile_missing_oco", map[string]any{"symbol": p.Symbol, "position_id": p.ID})
			ids, err := pm.ex.PlaceOCO(ctx, p.Symbol, oppositeSide(p.Side), p.Size, p.StopLoss, p.TakeProfit)
			if err != nil {
				pm.events.Emit("reconcile_error", map[string]any{"symbol": p.Symbol, "error": err.Error()})
				continue
			}
			p.OCOIDs = ids
			if err := pm.store.UpdateOpenTrade(ctx, p); err != nil {
				return fmt.Errorf("%w: %v", ErrStatePersist, err)
			}
		}
	}
	return nil
}

func hasLiveOCO(orders []*PlacedOrder, ocoIDs []string) bool {
	want := make(map[string]bool, len(ocoIDs))
	for _, id := range ocoIDs {
		want[id] = true
	}
	for _, o := range orders {
		if want[o.ID] && (o.Status == "open" || o.Status == "partial") {
			return true
		}
	}
	return false
}

// Tick runs one maintenance pass over every open position: trailing
// stop evaluation, then fill detection against the OCO bracket.
func (pm *PositionManager) Tick(ctx context.Context) error {
	open, err := pm.store.OpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStatePersist, err)
	}
	for _, p := range open {
		price, err := pm.ex.Ticker(ctx, p.Symbol)
		if err != nil {
			continue
		}
		if closed, exitPrice, reason := pm.checkFill(ctx, p, price); closed {
			if err := pm.Close(ctx, p, exitPrice, reason); err != nil {
				pm.events.Emit("close_error", map[string]any{"position_id": p.ID, "error": err.Error()})
			}
			continue
		}
		if updated := pm.updateTrailing(&p, price); updated {
			if err := pm.store.UpdateOpenTrade(ctx, p); err != nil {
				return fmt.Errorf("%w: %v", ErrStatePersist, err)
			}
			pm.events.Emit("trailing_updated", map[string]any{
				"position_id": p.ID, "symbol": p.Symbol, "new_stop": p.StopLoss.String(),
			})
		}
	}
	return nil
}

// checkFill reports whether the market price has crossed the stop-loss
// or take-profit of a long (BUY) or the mirrored levels of a SELL exit
// position, standing in for an OCO fill notification the paper adapter
// cannot push asynchronously.
func (pm *PositionManager) checkFill(ctx context.Context, p Position, price decimal.Decimal) (closed bool, exitPrice decimal.Decimal, reason string) {
	if p.Side == SideBuy {
		if price.LessThanOrEqual(p.StopLoss) {
			return true, p.StopLoss, "stop_loss"
		}
		if price.GreaterThanOrEqual(p.TakeProfit) {
			return true, p.TakeProfit, "take_profit"
		}
		return false, decimal.Zero, ""
	}
	if price.GreaterThanOrEqual(p.StopLoss) {
		return true, p.StopLoss, "stop_loss"
	}
	if price.LessThanOrEqual(p.TakeProfit) {
		return true, p.TakeProfit, "take_profit"
	}
	return false, decimal.Zero, ""
}

// updateTrailing implements the profit-lock invariant: once unrealized
// profit crosses activation_profit_percent, the stop trails the
// high-water price at trail_distance_percent, and can only move in the
// profit-locking direction, respecting the cooldown between moves.
func (pm *PositionManager) updateTrailing(p *Position, price decimal.Decimal) bool {
	cfg := pm.cfg.PositionManagement.TrailingStop
	profitPct := unrealizedProfitPct(*p, price)

	if !p.TrailingActive {
		if profitPct < cfg.ActivationProfitPercent {
			return false
		}
		p.TrailingActive = true
		p.TrailingAnchor = price
	} else {
		if p.Side == SideBuy && price.GreaterThan(p.TrailingAnchor) {
			p.TrailingAnchor = price
		} else if p.Side == SideSell && price.LessThan(p.TrailingAnchor) {
			p.TrailingAnchor = price
		}
	}

	if !p.LastTrailUpdate.IsZero() && time.Since(p.LastTrailUpdate) < time.Duration(cfg.CooldownSeconds)*time.Second {
		return false
	}

	trailDist := decimal.NewFromFloat(cfg.TrailDistancePercent / 100)
	var candidate decimal.Decimal
	if p.Side == SideBuy {
		candidate = p.TrailingAnchor.Mul(decimal.NewFromInt(1).Sub(trailDist))
		if candidate.LessThanOrEqual(p.StopLoss) {
			return false // never loosen the stop
		}
	} else {
		candidate = p.TrailingAnchor.Mul(decimal.NewFromInt(1).Add(trailDist))
		if candidate.GreaterThanOrEqual(p.StopLoss) {
			return false
		}
	}

	lockedProfitPct := unrealizedProfitPct(*p, candidate)
	if lockedProfitPct < cfg.MinProfitToLock {
		return false
	}

	p.StopLoss = candidate
	p.LastTrailUpdate = time.Now().UTC()
	return true
}

func unrealizedProfitPct(p Position, price decimal.Decimal) float64 {
	if p.EntryPrice.IsZero() {
		return 0
	}
	var diff decimal.Decimal
	if p.Side == SideBuy {
		diff = price.Sub(p.EntryPrice)
	} else {
		diff = p.EntryPrice.Sub(price)
	}
	pct, _ := diff.Div(p.EntryPrice).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// Close records the closed trade's result and removes it from the open
// set. It is also the landing point for a manually or externally
// detected close (e.g. an OCO fill webhook, if one existed).
func (pm *PositionManager) Close(ctx context.Context, p Position, exitPrice decimal.Decimal, reason string) error {
	var pnl decimal.Decimal
	if p.Side == SideBuy {
		pnl = exitPrice.Sub(p.EntryPrice).Mul(p.Size)
	} else {
		pnl = p.EntryPrice.Sub(exitPrice).Mul(p.Size)
	}
	returnPct := unrealizedProfitPct(p, exitPrice)
	tr := TradeResult{
		Symbol:     p.Symbol,
		Agent:      p.Agent,
		Regime:     p.Regime,
		Side:       p.Side,
		Size:       p.Size,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		PnL:        pnl,
		Win:        pnl.IsPositive(),
		ReturnPct:  returnPct,
		HoldTime:   time.Since(p.OpenedAt),
		ClosedAt:   time.Now().UTC(),
	}
	if err := pm.store.RecordResult(ctx, tr); err != nil {
		return err
	}
	if err := pm.store.RemoveOpenTrade(ctx, p.ID); err != nil {
		return err
	}
	pm.confidence.Update(p.Agent, p.Confidence, tr.Win)
	observePositionClosed(tr.Win)
	pm.events.Emit("position_closed", map[string]any{
		"position_id": p.ID, "symbol": p.Symbol, "pnl": pnl.String(), "reason": reason,
	})
	return nil
}
