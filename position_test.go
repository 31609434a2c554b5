package main

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestPositionManager(t *testing.T) (*PositionManager, *SQLiteRiskStore) {
	t.Helper()
	store := openTestStore(t)
	pm := NewPositionManager(store, newFakeExchange(), testConfig(), NewConfidenceModel(), NewEventLog(nil))
	return pm, store
}

func longPosition() Position {
	return Position{
		ID: "p1", Symbol: "BTC/USDT", Side: SideBuy,
		EntryPrice: decimal.NewFromInt(100), Size: decimal.NewFromInt(1),
		StopLoss: decimal.NewFromInt(95), TakeProfit: decimal.NewFromInt(120),
		TrailingAnchor: decimal.NewFromInt(100), Agent: AgentTrend, Regime: RegimeTrending,
		Confidence: 0.8, OpenedAt: time.Now().UTC(),
	}
}

func TestCheckFillStopLossLong(t *testing.T) {
	pm, _ := newTestPositionManager(t)
	p := longPosition()
	closed, exit, reason := pm.checkFill(context.Background(), p, decimal.NewFromInt(94))
	if !closed || reason != "stop_loss" || !exit.Equal(p.StopLoss) {
		t.Fatalf("expected a stop-loss close at 94, got closed=%v exit=%s reason=%s", closed, exit, reason)
	}
}

func TestCheckFillTakeProfitLong(t *testing.T) {
	pm, _ := newTestPositionManager(t)
	p := longPosition()
	closed, exit, reason := pm.checkFill(context.Background(), p, decimal.NewFromInt(121))
	if !closed || reason != "take_profit" || !exit.Equal(p.TakeProfit) {
		t.Fatalf("expected a take-profit close at 121, got closed=%v exit=%s reason=%s", closed, exit, reason)
	}
}

func TestCheckFillNoCrossingStaysOpen(t *testing.T) {
	pm, _ := newTestPositionManager(t)
	p := longPosition()
	closed, _, _ := pm.checkFill(context.Background(), p, decimal.NewFromInt(105))
	if closed {
		t.Fatalf("price between SL and TP must not close the position")
	}
}

func TestCheckFillShortMirrorsLevels(t *testing.T) {
	pm, _ := newTestPositionManager(t)
	p := longPosition()
	p.Side = SideSell
	p.StopLoss = decimal.NewFromInt(105)
	p.TakeProfit = decimal.NewFromInt(80)

	closed, _, reason := pm.checkFill(context.Background(), p, decimal.NewFromInt(106))
	if !closed || reason != "stop_loss" {
		t.Fatalf("expected a short stop-loss close above 105, got closed=%v reason=%s", closed, reason)
	}
	closed, _, reason = pm.checkFill(context.Background(), p, decimal.NewFromInt(79))
	if !closed || reason != "take_profit" {
		t.Fatalf("expected a short take-profit close below 80, got closed=%v reason=%s", closed, reason)
	}
}

func TestUpdateTrailingActivatesAtThreshold(t *testing.T) {
	pm, _ := newTestPositionManager(t)
	p := longPosition()
	cfg := &pm.cfg.PositionManagement.TrailingStop
	cfg.ActivationProfitPercent = 2
	cfg.TrailDistancePercent = 1
	cfg.MinProfitToLock = 0
	cfg.CooldownSeconds = 0

	// Below activation threshold: no change.
	if pm.updateTrailing(&p, decimal.NewFromInt(101)) {
		t.Fatalf("trailing should not activate below the profit threshold")
	}
	if p.TrailingActive {
		t.Fatalf("trailing must stay inactive below threshold")
	}

	// Crosses the 2% activation threshold (102 = +2%).
	updated := pm.updateTrailing(&p, decimal.NewFromInt(103))
	if !p.TrailingActive {
		t.Fatalf("trailing should activate once profit crosses the threshold")
	}
	if updated && p.StopLoss.LessThanOrEqual(decimal.NewFromInt(95)) {
		t.Fatalf("an activated trail should tighten the stop above its original level")
	}
}

func TestUpdateTrailingNeverLoosensStop(t *testing.T) {
	pm, _ := newTestPositionManager(t)
	p := longPosition()
	cfg := &pm.cfg.PositionManagement.TrailingStop
	cfg.ActivationProfitPercent = 2
	cfg.TrailDistancePercent = 1
	cfg.MinProfitToLock = 0
	cfg.CooldownSeconds = 0

	pm.updateTrailing(&p, decimal.NewFromInt(110))
	lockedStop := p.StopLoss
	if lockedStop.LessThanOrEqual(decimal.NewFromInt(95)) {
		t.Fatalf("expected the stop to have tightened above its original level, got %s", lockedStop)
	}

	// Price retreats; the anchor (high-water mark) must not move down,
	// and the stop must never loosen back toward the original level.
	pm.updateTrailing(&p, decimal.NewFromInt(106))
	if p.StopLoss.LessThan(lockedStop) {
		t.Fatalf("stop loosened from %s to %s on a price pullback", lockedStop, p.StopLoss)
	}
}

func TestUpdateTrailingRespectsCooldown(t *testing.T) {
	pm, _ := newTestPositionManager(t)
	p := longPosition()
	cfg := &pm.cfg.PositionManagement.TrailingStop
	cfg.ActivationProfitPercent = 2
	cfg.TrailDistancePercent = 1
	cfg.MinProfitToLock = 0
	cfg.CooldownSeconds = 3600

	pm.updateTrailing(&p, decimal.NewFromInt(110))
	firstStop := p.StopLoss

	updated := pm.updateTrailing(&p, decimal.NewFromInt(115))
	if updated {
		t.Fatalf("a second trail move inside the cooldown window should be rejected")
	}
	if !p.StopLoss.Equal(firstStop) {
		t.Fatalf("stop should be unchanged during cooldown, got %s want %s", p.StopLoss, firstStop)
	}
}

func TestPositionCloseRecordsResultAndRemovesOpenTrade(t *testing.T) {
	pm, store := newTestPositionManager(t)
	ctx := context.Background()
	p := longPosition()
	if err := store.AddOpenTrade(ctx, p); err != nil {
		t.Fatalf("add open trade: %v", err)
	}

	if err := pm.Close(ctx, p, decimal.NewFromInt(110), "take_profit"); err != nil {
		t.Fatalf("close: %v", err)
	}

	open, err := store.OpenTrades(ctx)
	if err != nil {
		t.Fatalf("open trades: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected the position to be removed from open_trades, got %d", len(open))
	}
	history, err := store.KellyHistory(ctx, "BTC/USDT")
	if err != nil {
		t.Fatalf("kelly history: %v", err)
	}
	if len(history) != 1 || !history[0].Win {
		t.Fatalf("expected one winning kelly_history entry, got %+v", history)
	}
}

func TestHasLiveOCODetectsOpenOrder(t *testing.T) {
	orders := []*PlacedOrder{{ID: "sl-1", Status: "open"}, {ID: "tp-1", Status: "canceled"}}
	if !hasLiveOCO(orders, []string{"sl-1", "tp-1"}) {
		t.Fatalf("expected a live OCO leg to be detected")
	}
	if hasLiveOCO(orders, []string{"tp-1"}) {
		t.Fatalf("a canceled-only OCO set should not be considered live")
	}
}
