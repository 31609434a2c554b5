// FILE: execution.go
// Package main – execution gateway: slippage-guarded entry, OCO bracket
// placement, order-timeout cancel-and-hold.
//
// Two gates stand between an approved Decision and a live order: abort
// before placing if the market has moved past max_price_deviation_pct
// since the Decision was sized, then place a limit order offset by
// max_slippage_pct and cancel-and-hold if it hasn't filled within
// order_timeout_s.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionGateway turns a sized Position into a live exchange position.
type ExecutionGateway struct {
	ex     Exchange
	cfg    *Config
	events *EventLog

	pollInterval time.Duration
}

func NewExecutionGateway(ex Exchange, cfg *Config, events *EventLog) *ExecutionGateway {
	return &ExecutionGateway{ex: ex, cfg: cfg, events: events, pollInterval: time.Second}
}

// Open re-validates the entry price against the live market, places a
// limit order offset for the configured slippage tolerance, waits up to
// order_timeout_s for a fill, and on fill places the OCO stop/target
// bracket. On any abort the returned error is one of ErrExecSlippageAbort
// (price moved too far) or ErrExecExchange (order-timeout cancel, or a
// transport failure) and ps is left untouched by the caller.
func (g *ExecutionGateway) Open(ctx context.Context, ps *Position) error {
	mid, err := g.ex.Ticker(ctx, ps.Symbol)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExecExchange, err)
	}

	deviation := priceDeviationPct(ps.EntryPrice, mid)
	if deviation > g.cfg.RiskManagement.MaxPriceDeviationPct {
		g.events.Emit("order_aborted_slippage", map[string]any{
			"symbol": ps.Symbol, "entry": ps.EntryPrice.String(), "mid": mid.String(), "deviation_pct": deviation,
		})
		return ErrExecSlippageAbort
	}

	limitPrice := slippageOffset(mid, ps.Side, g.cfg.OrderExecution.MaxSlippagePct)
	order, err := g.ex.PlaceLimit(ctx, ps.Symbol, ps.Side, limitPrice, ps.Size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExecExchange, err)
	}

	filled, err := g.awaitFill(ctx, ps.Symbol, order.ID)
	if err != nil {
		return err
	}
	if !filled {
		_ = g.ex.CancelOrder(ctx, ps.Symbol, order.ID)
		return fmt.Errorf("%w: order %s not filled within timeout", ErrExecExchange, order.ID)
	}

	ocoIDs, err := g.ex.PlaceOCO(ctx, ps.Symbol, oppositeSide(ps.Side), ps.Size, ps.StopLoss, ps.TakeProfit)
	if err != nil {
		return fmt.Errorf("%w: oco placement: %v", ErrExecExchange, err)
	}
	ps.OCOIDs = ocoIDs
	g.events.Emit("position_opened", map[string]any{
		"symbol": ps.Symbol, "side": string(ps.Side), "entry": ps.EntryPrice.String(), "size": ps.Size.String(),
	})
	g.events.Emit("order_placed", map[string]any{"symbol": ps.Symbol, "order_id": order.ID})
	return nil
}

// awaitFill polls the order status at pollInterval up to order_timeout_s.
func (g *ExecutionGateway) awaitFill(ctx context.Context, symbol, orderID string) (bool, error) {
	deadline := time.Now().Add(time.Duration(g.cfg.OrderExecution.OrderTimeoutS) * time.Second)
	for {
		o, err := g.ex.GetOrder(ctx, symbol, orderID)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrExecExchange, err)
		}
		if o.Status == "filled" {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(g.pollInterval):
		}
	}
}

func priceDeviationPct(entry, mid decimal.Decimal) float64 {
	if entry.IsZero() {
		return 0
	}
	diff := mid.Sub(entry).Abs()
	pct, _ := diff.Div(entry).Float64()
	return pct
}

// slippageOffset nudges a limit price toward guaranteed fill direction:
// a few bps above mid for a BUY, below mid for a SELL, bounded by the
// configured tolerance.
func slippageOffset(mid decimal.Decimal, side OrderSide, maxSlippagePct float64) decimal.Decimal {
	offset := mid.Mul(decimal.NewFromFloat(maxSlippagePct / 100))
	if side == SideBuy {
		return mid.Add(offset)
	}
	return mid.Sub(offset)
}

func oppositeSide(s OrderSide) OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}
