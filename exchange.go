// FILE: exchange.go
// Package main – Exchange collaborator abstraction.
//
// Exchange is the minimal surface the core needs from a spot venue: price
// discovery, OHLCV/order-book history, balances, and order placement
// (market, limit, stop, and OCO brackets). Callers depend only on this
// interface, never on a specific venue's SDK. Two implementations exist:
// exchange_paper.go (in-memory fill simulator) and exchange_http.go
// (generic signed-REST adapter).
package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes the handful of order shapes the spec allows
// (limit/market/stop/OCO — spec Non-goals exclude anything exotic).
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// ExchangeFilters holds venue lot/tick/minimum-notional rules.
type ExchangeFilters struct {
	PriceTick   decimal.Decimal
	BaseStep    decimal.Decimal
	MinNotional decimal.Decimal
}

// PlacedOrder is a normalized view of a filled/placed order.
type PlacedOrder struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Price      decimal.Decimal
	BaseSize   decimal.Decimal
	QuoteSpent decimal.Decimal
	Commission decimal.Decimal
	Status     string // "open" | "filled" | "canceled" | "partial"
	Filled     decimal.Decimal
	CreatedAt  time.Time
}

// Balance is the available amount of one asset.
type Balance struct {
	Asset     string
	Available decimal.Decimal
}

// Exchange is the collaborator interface consumed by the collector,
// execution gateway, and position manager.
type Exchange interface {
	Name() string

	// Market data
	Ticker(ctx context.Context, symbol string) (decimal.Decimal, error)
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
	OrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error)
	FundingRate(ctx context.Context, symbol string) (*float64, error)
	OpenInterest(ctx context.Context, symbol string) (*float64, error)

	// Account
	Balances(ctx context.Context) ([]Balance, error)
	Filters(ctx context.Context, symbol string) (ExchangeFilters, error)

	// Orders
	PlaceLimit(ctx context.Context, symbol string, side OrderSide, price, size decimal.Decimal) (*PlacedOrder, error)
	PlaceMarket(ctx context.Context, symbol string, side OrderSide, size decimal.Decimal) (*PlacedOrder, error)
	PlaceOCO(ctx context.Context, symbol string, side OrderSide, size, stopLoss, takeProfit decimal.Decimal) (ocoIDs []string, err error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOrder(ctx context.Context, symbol, orderID string) (*PlacedOrder, error)
	OpenOrders(ctx context.Context, symbol string) ([]*PlacedOrder, error)
}
