package main

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func openTestStore(t *testing.T) *SQLiteRiskStore {
	t.Helper()
	store, err := OpenRiskStore(":memory:")
	if err != nil {
		t.Fatalf("open risk store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRiskStoreLoadStateSeedsSingleton(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	state, err := store.LoadState(ctx)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if state.KillSwitchActive {
		t.Fatalf("a fresh store should not start with the kill switch active")
	}
	if !state.CurrentCapital.IsZero() {
		t.Fatalf("a fresh store should seed zero capital, got %s", state.CurrentCapital)
	}
}

func TestRiskStoreSetKillSwitchRoundTrips(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.SetKillSwitch(ctx, true, "daily_drawdown"); err != nil {
		t.Fatalf("set kill switch: %v", err)
	}
	state, err := store.LoadState(ctx)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !state.KillSwitchActive || state.KillSwitchReason != "daily_drawdown" {
		t.Fatalf("kill switch did not persist: %+v", state)
	}

	if err := store.SetKillSwitch(ctx, false, ""); err != nil {
		t.Fatalf("clear kill switch: %v", err)
	}
	state, _ = store.LoadState(ctx)
	if state.KillSwitchActive {
		t.Fatalf("kill switch should be clear after SetKillSwitch(false)")
	}
}

func TestRiskStoreApplyDailyResetZeroesPnL(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tr := TradeResult{Symbol: "BTC/USDT", Agent: AgentTrend, Regime: RegimeTrending, Side: SideBuy,
		Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100), ExitPrice: decimal.NewFromInt(90),
		PnL: decimal.NewFromInt(-10), Win: false, ReturnPct: -10, ClosedAt: time.Now().UTC()}
	if err := store.RecordResult(ctx, tr); err != nil {
		t.Fatalf("record result: %v", err)
	}
	state, _ := store.LoadState(ctx)
	if state.DailyPnL.IsZero() {
		t.Fatalf("expected a nonzero daily PnL after a losing trade")
	}

	if err := store.ApplyDailyReset(ctx, decimal.NewFromInt(1000)); err != nil {
		t.Fatalf("apply daily reset: %v", err)
	}
	state, _ = store.LoadState(ctx)
	if !state.DailyPnL.IsZero() {
		t.Fatalf("daily PnL should be zero after reset, got %s", state.DailyPnL)
	}
	if !state.CurrentCapital.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("current capital should rebase to 1000, got %s", state.CurrentCapital)
	}
}

func TestRiskStoreRecordResultFeedsKellyHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tr := TradeResult{Symbol: "ETH/USDT", Agent: AgentRange, Regime: RegimeRanging, Side: SideBuy,
			Size: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100), ExitPrice: decimal.NewFromInt(105),
			PnL: decimal.NewFromInt(5), Win: true, ReturnPct: 5, ClosedAt: time.Now().UTC()}
		if err := store.RecordResult(ctx, tr); err != nil {
			t.Fatalf("record result %d: %v", i, err)
		}
	}
	history, err := store.KellyHistory(ctx, "ETH/USDT")
	if err != nil {
		t.Fatalf("kelly history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 kelly_history entries, got %d", len(history))
	}
	for _, h := range history {
		if !h.Win {
			t.Fatalf("expected every recorded entry to be a win")
		}
	}
}

func TestRiskStoreOpenTradeLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	pos := Position{
		ID: "pos-1", Symbol: "BTC/USDT", Side: SideBuy,
		EntryPrice: decimal.NewFromInt(100), Size: decimal.NewFromFloat(0.5),
		StopLoss: decimal.NewFromInt(95), TakeProfit: decimal.NewFromInt(110),
		TrailingAnchor: decimal.NewFromInt(100), OCOIDs: []string{"sl-1", "tp-1"},
		OpenedAt: time.Now().UTC(), Agent: AgentTrend, Regime: RegimeTrending, Confidence: 0.8,
	}
	if err := store.AddOpenTrade(ctx, pos); err != nil {
		t.Fatalf("add open trade: %v", err)
	}

	open, err := store.OpenTrades(ctx)
	if err != nil {
		t.Fatalf("open trades: %v", err)
	}
	if len(open) != 1 || open[0].ID != "pos-1" {
		t.Fatalf("expected one open trade with id pos-1, got %+v", open)
	}
	if len(open[0].OCOIDs) != 2 {
		t.Fatalf("expected OCO ids to round-trip, got %v", open[0].OCOIDs)
	}
	if open[0].Regime != RegimeTrending {
		t.Fatalf("expected regime to round-trip, got %v", open[0].Regime)
	}

	pos.TrailingActive = true
	pos.TrailingAnchor = decimal.NewFromInt(105)
	if err := store.UpdateOpenTrade(ctx, pos); err != nil {
		t.Fatalf("update open trade: %v", err)
	}
	open, _ = store.OpenTrades(ctx)
	if !open[0].TrailingActive || !open[0].TrailingAnchor.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("update did not persist: %+v", open[0])
	}

	if err := store.RemoveOpenTrade(ctx, "pos-1"); err != nil {
		t.Fatalf("remove open trade: %v", err)
	}
	open, _ = store.OpenTrades(ctx)
	if len(open) != 0 {
		t.Fatalf("expected no open trades after removal, got %d", len(open))
	}
}

func TestSplitAndJoinOCOIDsRoundTrip(t *testing.T) {
	ids := []string{"a", "b", "c"}
	joined := joinOCOIDs(ids)
	got := splitOCOIDs(joined)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("round trip mismatch: %v", got)
	}
	if splitOCOIDs("") != nil {
		t.Fatalf("splitting an empty string should return nil, not an empty slice")
	}
}
