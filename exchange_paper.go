// FILE: exchange_paper.go
// Package main – in-memory paper Exchange, used in ModePaper.
//
// Simulates immediate fills at the requested price with a configurable
// taker fee, and tracks balances in a local ledger: no network calls,
// deterministic fills, order-book/funding/OI stubs so it satisfies the
// full Exchange interface.
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaperExchange struct {
	mu sync.Mutex

	feeRate  decimal.Decimal
	balances map[string]decimal.Decimal
	lastMark map[string]decimal.Decimal
	orders   map[string]*PlacedOrder

	// feed supplies candles/order-book for symbols; paper trading still
	// needs real-ish market data to price fills against.
	feed Exchange
}

func NewPaperExchange(feed Exchange, feeRate decimal.Decimal, startingBalances map[string]decimal.Decimal) *PaperExchange {
	bal := make(map[string]decimal.Decimal, len(startingBalances))
	for k, v := range startingBalances {
		bal[k] = v
	}
	return &PaperExchange{
		feeRate:  feeRate,
		balances: bal,
		lastMark: make(map[string]decimal.Decimal),
		orders:   make(map[string]*PlacedOrder),
		feed:     feed,
	}
}

func (p *PaperExchange) Name() string { return "paper" }

func (p *PaperExchange) Ticker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	px, err := p.feed.Ticker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	p.mu.Lock()
	p.lastMark[symbol] = px
	p.mu.Unlock()
	return px, nil
}

func (p *PaperExchange) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	return p.feed.Candles(ctx, symbol, timeframe, limit)
}

func (p *PaperExchange) OrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error) {
	return p.feed.OrderBook(ctx, symbol, depth)
}

func (p *PaperExchange) FundingRate(ctx context.Context, symbol string) (*float64, error) {
	return p.feed.FundingRate(ctx, symbol)
}

func (p *PaperExchange) OpenInterest(ctx context.Context, symbol string) (*float64, error) {
	return p.feed.OpenInterest(ctx, symbol)
}

func (p *PaperExchange) Balances(ctx context.Context) ([]Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Balance, 0, len(p.balances))
	for asset, amt := range p.balances {
		out = append(out, Balance{Asset: asset, Available: amt})
	}
	return out, nil
}

func (p *PaperExchange) Filters(ctx context.Context, symbol string) (ExchangeFilters, error) {
	return ExchangeFilters{
		PriceTick:   decimal.NewFromFloat(0.01),
		BaseStep:    decimal.NewFromFloat(0.0001),
		MinNotional: decimal.NewFromInt(10),
	}, nil
}

func splitSymbol(symbol string) (base, quote string) {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '/' || symbol[i] == '-' {
			return symbol[:i], symbol[i+1:]
		}
	}
	return symbol, "USDT"
}

func (p *PaperExchange) fill(symbol string, side OrderSide, price, size decimal.Decimal) (*PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, quote := splitSymbol(symbol)
	notional := price.Mul(size)
	fee := notional.Mul(p.feeRate)

	switch side {
	case SideBuy:
		cost := notional.Add(fee)
		if p.balances[quote].LessThan(cost) {
			return nil, fmt.Errorf("%w: need %s %s, have %s", ErrExecExchange, cost.String(), quote, p.balances[quote].String())
		}
		p.balances[quote] = p.balances[quote].Sub(cost)
		p.balances[base] = p.balances[base].Add(size)
	case SideSell:
		if p.balances[base].LessThan(size) {
			return nil, fmt.Errorf("%w: need %s %s, have %s", ErrExecExchange, size.String(), base, p.balances[base].String())
		}
		proceeds := notional.Sub(fee)
		p.balances[base] = p.balances[base].Sub(size)
		p.balances[quote] = p.balances[quote].Add(proceeds)
	}

	order := &PlacedOrder{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Type:       OrderTypeMarket,
		Price:      price,
		BaseSize:   size,
		QuoteSpent: notional,
		Commission: fee,
		Status:     "filled",
		Filled:     size,
		CreatedAt:  time.Now().UTC(),
	}
	p.orders[order.ID] = order
	return order, nil
}

func (p *PaperExchange) PlaceMarket(ctx context.Context, symbol string, side OrderSide, size decimal.Decimal) (*PlacedOrder, error) {
	px, err := p.Ticker(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return p.fill(symbol, side, px, size)
}

func (p *PaperExchange) PlaceLimit(ctx context.Context, symbol string, side OrderSide, price, size decimal.Decimal) (*PlacedOrder, error) {
	// Fills immediately at the requested price: no order book walk, no
	// partials.
	return p.fill(symbol, side, price, size)
}

func (p *PaperExchange) PlaceOCO(ctx context.Context, symbol string, side OrderSide, size, stopLoss, takeProfit decimal.Decimal) ([]string, error) {
	slID := uuid.NewString()
	tpID := uuid.NewString()
	p.mu.Lock()
	p.orders[slID] = &PlacedOrder{ID: slID, Symbol: symbol, Side: side, Type: OrderTypeStop, Price: stopLoss, BaseSize: size, Status: "open", CreatedAt: time.Now().UTC()}
	p.orders[tpID] = &PlacedOrder{ID: tpID, Symbol: symbol, Side: side, Type: OrderTypeLimit, Price: takeProfit, BaseSize: size, Status: "open", CreatedAt: time.Now().UTC()}
	p.mu.Unlock()
	return []string{slID, tpID}, nil
}

func (p *PaperExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.orders[orderID]; ok {
		o.Status = "canceled"
	}
	return nil
}

func (p *PaperExchange) GetOrder(ctx context.Context, symbol, orderID string) (*PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown order %s", ErrExecExchange, orderID)
	}
	return o, nil
}

func (p *PaperExchange) OpenOrders(ctx context.Context, symbol string) ([]*PlacedOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*PlacedOrder
	for _, o := range p.orders {
		if o.Symbol == symbol && o.Status == "open" {
			out = append(out, o)
		}
	}
	return out, nil
}
