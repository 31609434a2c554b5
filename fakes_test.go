package main

import (
	"context"

	"github.com/shopspring/decimal"
)

// fakeExchange is a minimal, in-memory Exchange double for tests that
// need deterministic balances/filters/prices without any network I/O.
type fakeExchange struct {
	price    decimal.Decimal
	balances []Balance
	filters  ExchangeFilters
	ocoIDs   []string
	ocoErr   error
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		price: decimal.NewFromInt(100),
		balances: []Balance{
			{Asset: "USDT", Available: decimal.NewFromInt(10000)},
			{Asset: "BTC", Available: decimal.NewFromFloat(1.0)},
		},
		filters: ExchangeFilters{
			PriceTick:   decimal.NewFromFloat(0.01),
			BaseStep:    decimal.NewFromFloat(0.0001),
			MinNotional: decimal.NewFromInt(10),
		},
	}
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) Ticker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f.price, nil
}

func (f *fakeExchange) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	return trendingBars(limit, 100, 0.1), nil
}

func (f *fakeExchange) OrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error) {
	return OrderBook{}, nil
}

func (f *fakeExchange) FundingRate(ctx context.Context, symbol string) (*float64, error) {
	return nil, nil
}

func (f *fakeExchange) OpenInterest(ctx context.Context, symbol string) (*float64, error) {
	return nil, nil
}

func (f *fakeExchange) Balances(ctx context.Context) ([]Balance, error) {
	return f.balances, nil
}

func (f *fakeExchange) Filters(ctx context.Context, symbol string) (ExchangeFilters, error) {
	return f.filters, nil
}

func (f *fakeExchange) PlaceLimit(ctx context.Context, symbol string, side OrderSide, price, size decimal.Decimal) (*PlacedOrder, error) {
	return &PlacedOrder{ID: "limit-1", Symbol: symbol, Side: side, Type: OrderTypeLimit, Price: price, BaseSize: size, Status: "filled", Filled: size}, nil
}

func (f *fakeExchange) PlaceMarket(ctx context.Context, symbol string, side OrderSide, size decimal.Decimal) (*PlacedOrder, error) {
	return &PlacedOrder{ID: "market-1", Symbol: symbol, Side: side, Type: OrderTypeMarket, Price: f.price, BaseSize: size, Status: "filled", Filled: size}, nil
}

func (f *fakeExchange) PlaceOCO(ctx context.Context, symbol string, side OrderSide, size, stopLoss, takeProfit decimal.Decimal) ([]string, error) {
	if f.ocoErr != nil {
		return nil, f.ocoErr
	}
	if f.ocoIDs != nil {
		return f.ocoIDs, nil
	}
	return []string{"sl-1", "tp-1"}, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }

func (f *fakeExchange) GetOrder(ctx context.Context, symbol, orderID string) (*PlacedOrder, error) {
	return &PlacedOrder{ID: orderID, Status: "filled", Filled: decimal.NewFromInt(1)}, nil
}

func (f *fakeExchange) OpenOrders(ctx context.Context, symbol string) ([]*PlacedOrder, error) {
	return nil, nil
}

// testConfig returns a Config with risk-management thresholds loose
// enough to let well-formed decisions pass, for tests that care about
// one specific rung of the validation ladder.
func testConfig() *Config {
	cfg := DefaultConfig(ModePaper)
	cfg.Symbols = []string{"BTC/USDT"}
	return cfg
}
