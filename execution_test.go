package main

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceDeviationPct(t *testing.T) {
	got := priceDeviationPct(decimal.NewFromInt(100), decimal.NewFromInt(102))
	if got != 0.02 {
		t.Fatalf("expected 0.02 deviation, got %v", got)
	}
}

func TestSlippageOffsetDirection(t *testing.T) {
	mid := decimal.NewFromInt(100)
	buy := slippageOffset(mid, SideBuy, 0.1)
	sell := slippageOffset(mid, SideSell, 0.1)
	if !buy.GreaterThan(mid) {
		t.Fatalf("a BUY limit should be offset above mid, got %s", buy)
	}
	if !sell.LessThan(mid) {
		t.Fatalf("a SELL limit should be offset below mid, got %s", sell)
	}
}

func TestOppositeSide(t *testing.T) {
	if oppositeSide(SideBuy) != SideSell || oppositeSide(SideSell) != SideBuy {
		t.Fatalf("oppositeSide must flip buy/sell")
	}
}

func TestExecutionOpenPlacesOCOOnFill(t *testing.T) {
	ex := newFakeExchange()
	cfg := testConfig()
	gw := NewExecutionGateway(ex, cfg, NewEventLog(nil))

	ps := &Position{Symbol: "BTC/USDT", Side: SideBuy, EntryPrice: decimal.NewFromInt(100),
		Size: decimal.NewFromFloat(0.1), StopLoss: decimal.NewFromInt(95), TakeProfit: decimal.NewFromInt(110)}

	if err := gw.Open(context.Background(), ps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ps.OCOIDs) != 2 {
		t.Fatalf("expected an OCO bracket to be recorded, got %v", ps.OCOIDs)
	}
}

func TestExecutionOpenAbortsOnSlippage(t *testing.T) {
	ex := newFakeExchange()
	ex.price = decimal.NewFromInt(200) // far beyond the entry price
	cfg := testConfig()
	gw := NewExecutionGateway(ex, cfg, NewEventLog(nil))

	ps := &Position{Symbol: "BTC/USDT", Side: SideBuy, EntryPrice: decimal.NewFromInt(100),
		Size: decimal.NewFromFloat(0.1), StopLoss: decimal.NewFromInt(95), TakeProfit: decimal.NewFromInt(110)}

	err := gw.Open(context.Background(), ps)
	if !errors.Is(err, ErrExecSlippageAbort) {
		t.Fatalf("expected ErrExecSlippageAbort, got %v", err)
	}
	if len(ps.OCOIDs) != 0 {
		t.Fatalf("an aborted open must not place an OCO bracket")
	}
}

func TestExecutionOpenPropagatesOCOFailure(t *testing.T) {
	ex := newFakeExchange()
	ex.ocoErr = ErrExecExchange
	cfg := testConfig()
	gw := NewExecutionGateway(ex, cfg, NewEventLog(nil))

	ps := &Position{Symbol: "BTC/USDT", Side: SideBuy, EntryPrice: decimal.NewFromInt(100),
		Size: decimal.NewFromFloat(0.1), StopLoss: decimal.NewFromInt(95), TakeProfit: decimal.NewFromInt(110)}

	err := gw.Open(context.Background(), ps)
	if !errors.Is(err, ErrExecExchange) {
		t.Fatalf("expected ErrExecExchange when OCO placement fails, got %v", err)
	}
}
