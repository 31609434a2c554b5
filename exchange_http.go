// FILE: exchange_http.go
// Package main – generic signed-REST Exchange adapter (live trading).
//
// A resty client against a venue's REST surface, authenticated with a
// short-lived JWT bearer minted per request: the JWT carries the API
// key as `sub`/`kid`, is signed with HS256, and is attached as an
// Authorization header, the scheme most spot-exchange REST APIs expect.
// Rate limiting uses golang.org/x/time/rate to track the exchange's
// request-weight budget.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Signer mints the auth header value for one request.
type Signer interface {
	Sign(method, path string) (header, value string, err error)
}

// JWTSigner mints a short-lived HS256 JWT per request, keyed by API
// key/secret.
type JWTSigner struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
}

func NewJWTSigner(apiKey, apiSecret string) *JWTSigner {
	return &JWTSigner{apiKey: apiKey, apiSecret: []byte(apiSecret), ttl: 2 * time.Minute}
}

func (s *JWTSigner) Sign(method, path string) (string, string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": s.apiKey,
		"iss": "sath",
		"nbf": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
		"uri": fmt.Sprintf("%s %s", method, path),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = s.apiKey
	signed, err := tok.SignedString(s.apiSecret)
	if err != nil {
		return "", "", fmt.Errorf("sign jwt: %w", err)
	}
	return "Authorization", "Bearer " + signed, nil
}

// HTTPExchange is a generic signed-REST Exchange. The wire shapes below
// are intentionally minimal/normalized; a production adapter would carry
// one struct per venue response shape, but callers only ever see the
// normalized Exchange surface.
type HTTPExchange struct {
	name    string
	baseURL string
	client  *resty.Client
	signer  Signer
	limiter *rate.Limiter
}

func NewHTTPExchange(name, baseURL string, signer Signer, requestsPerSecond float64) *HTTPExchange {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond)
	return &HTTPExchange{
		name:    name,
		baseURL: baseURL,
		client:  c,
		signer:  signer,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
	}
}

func (h *HTTPExchange) Name() string { return h.name }

func (h *HTTPExchange) request(ctx context.Context, method, path string) (*resty.Request, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %v", ErrExecExchange, err)
	}
	req := h.client.R().SetContext(ctx)
	if h.signer != nil {
		header, value, err := h.signer.Sign(method, path)
		if err != nil {
			return nil, err
		}
		req.SetHeader(header, value)
	}
	return req, nil
}

type tickerResponse struct {
	Price string `json:"price"`
}

func (h *HTTPExchange) Ticker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	req, err := h.request(ctx, "GET", "/ticker")
	if err != nil {
		return decimal.Zero, err
	}
	var out tickerResponse
	resp, err := req.SetQueryParam("symbol", symbol).SetResult(&out).Get("/ticker")
	if err != nil || resp.IsError() {
		return decimal.Zero, fmt.Errorf("%w: ticker %s: %v", ErrFeedUnavailable, symbol, err)
	}
	px, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad price %q", ErrFeedUnavailable, out.Price)
	}
	return px, nil
}

type candleResponse struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (h *HTTPExchange) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	req, err := h.request(ctx, "GET", "/candles")
	if err != nil {
		return nil, err
	}
	var out []candleResponse
	resp, err := req.
		SetQueryParams(map[string]string{
			"symbol":      symbol,
			"granularity": timeframe,
			"limit":       fmt.Sprintf("%d", limit),
		}).
		SetResult(&out).Get("/candles")
	if err != nil || resp.IsError() {
		return nil, fmt.Errorf("%w: candles %s: %v", ErrFeedUnavailable, symbol, err)
	}
	bars := make([]Bar, len(out))
	for i, c := range out {
		bars[i] = Bar{
			Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
			Time: time.Unix(c.Time, 0).UTC(),
		}
	}
	return bars, nil
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type orderBookResponse struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

func (h *HTTPExchange) OrderBook(ctx context.Context, symbol string, depth int) (OrderBook, error) {
	req, err := h.request(ctx, "GET", "/book")
	if err != nil {
		return OrderBook{}, err
	}
	var out orderBookResponse
	resp, err := req.
		SetQueryParams(map[string]string{"symbol": symbol, "depth": fmt.Sprintf("%d", depth)}).
		SetResult(&out).Get("/book")
	if err != nil || resp.IsError() {
		return OrderBook{}, fmt.Errorf("%w: orderbook %s: %v", ErrFeedUnavailable, symbol, err)
	}
	ob := OrderBook{
		Bids: toLevels(out.Bids),
		Asks: toLevels(out.Asks),
	}
	ob.Imbalance, ob.Pressure = computeImbalance(ob.Bids, ob.Asks)
	if len(ob.Bids) > 0 {
		ob.BestBidWall = largestWall(ob.Bids)
	}
	if len(ob.Asks) > 0 {
		ob.BestAskWall = largestWall(ob.Asks)
	}
	return ob, nil
}

func toLevels(in []bookLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(in))
	for _, l := range in {
		p, err1 := decimal.NewFromString(l.Price)
		s, err2 := decimal.NewFromString(l.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, PriceLevel{Price: p, Size: s})
	}
	return out
}

func largestWall(levels []PriceLevel) decimal.Decimal {
	best := levels[0]
	for _, l := range levels[1:] {
		if l.Size.GreaterThan(best.Size) {
			best = l
		}
	}
	return best.Price
}

// computeImbalance returns (bid_size - ask_size)/(bid_size + ask_size)
// over the top of book, and its qualitative label.
func computeImbalance(bids, asks []PriceLevel) (float64, Pressure) {
	var bidSz, askSz decimal.Decimal
	for _, l := range bids {
		bidSz = bidSz.Add(l.Size)
	}
	for _, l := range asks {
		askSz = askSz.Add(l.Size)
	}
	total := bidSz.Add(askSz)
	if total.IsZero() {
		return 0, PressureNeutral
	}
	imb, _ := bidSz.Sub(askSz).Div(total).Float64()
	switch {
	case imb > 0.15:
		return imb, PressureBullish
	case imb < -0.15:
		return imb, PressureBearish
	default:
		return imb, PressureNeutral
	}
}

func (h *HTTPExchange) FundingRate(ctx context.Context, symbol string) (*float64, error) {
	req, err := h.request(ctx, "GET", "/funding")
	if err != nil {
		return nil, err
	}
	var out struct {
		Rate *float64 `json:"rate"`
	}
	resp, err := req.SetQueryParam("symbol", symbol).SetResult(&out).Get("/funding")
	if err != nil || resp.IsError() {
		return nil, nil // optional per venue; spec allows null
	}
	return out.Rate, nil
}

func (h *HTTPExchange) OpenInterest(ctx context.Context, symbol string) (*float64, error) {
	req, err := h.request(ctx, "GET", "/open-interest")
	if err != nil {
		return nil, err
	}
	var out struct {
		OI *float64 `json:"open_interest"`
	}
	resp, err := req.SetQueryParam("symbol", symbol).SetResult(&out).Get("/open-interest")
	if err != nil || resp.IsError() {
		return nil, nil
	}
	return out.OI, nil
}

func (h *HTTPExchange) Balances(ctx context.Context) ([]Balance, error) {
	req, err := h.request(ctx, "GET", "/balances")
	if err != nil {
		return nil, err
	}
	var out []struct {
		Asset     string `json:"asset"`
		Available string `json:"available"`
	}
	resp, err := req.SetResult(&out).Get("/balances")
	if err != nil || resp.IsError() {
		return nil, fmt.Errorf("%w: balances: %v", ErrExecExchange, err)
	}
	bals := make([]Balance, 0, len(out))
	for _, b := range out {
		amt, err := decimal.NewFromString(b.Available)
		if err != nil {
			continue
		}
		bals = append(bals, Balance{Asset: b.Asset, Available: amt})
	}
	return bals, nil
}

func (h *HTTPExchange) Filters(ctx context.Context, symbol string) (ExchangeFilters, error) {
	req, err := h.request(ctx, "GET", "/filters")
	if err != nil {
		return ExchangeFilters{}, err
	}
	var out struct {
		PriceTick   string `json:"price_tick"`
		BaseStep    string `json:"base_step"`
		MinNotional string `json:"min_notional"`
	}
	resp, err := req.SetQueryParam("symbol", symbol).SetResult(&out).Get("/filters")
	if err != nil || resp.IsError() {
		return ExchangeFilters{}, fmt.Errorf("%w: filters %s: %v", ErrExecExchange, symbol, err)
	}
	tick, _ := decimal.NewFromString(out.PriceTick)
	step, _ := decimal.NewFromString(out.BaseStep)
	minNotional, _ := decimal.NewFromString(out.MinNotional)
	return ExchangeFilters{PriceTick: tick, BaseStep: step, MinNotional: minNotional}, nil
}

func (h *HTTPExchange) placeOrder(ctx context.Context, symbol string, side OrderSide, typ OrderType, price, size decimal.Decimal) (*PlacedOrder, error) {
	req, err := h.request(ctx, "POST", "/orders")
	if err != nil {
		return nil, err
	}
	var out struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Filled  string `json:"filled_size"`
		Price   string `json:"price"`
	}
	resp, err := req.
		SetBody(map[string]any{
			"symbol": symbol, "side": string(side), "type": string(typ),
			"price": price.String(), "size": size.String(),
		}).
		SetResult(&out).Post("/orders")
	if err != nil || resp.IsError() {
		return nil, fmt.Errorf("%w: place order %s %s: %v", ErrExecExchange, symbol, side, err)
	}
	filled, _ := decimal.NewFromString(out.Filled)
	fillPrice, _ := decimal.NewFromString(out.Price)
	return &PlacedOrder{
		ID: out.OrderID, Symbol: symbol, Side: side, Type: typ,
		Price: fillPrice, BaseSize: size, Filled: filled, Status: out.Status,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (h *HTTPExchange) PlaceLimit(ctx context.Context, symbol string, side OrderSide, price, size decimal.Decimal) (*PlacedOrder, error) {
	return h.placeOrder(ctx, symbol, side, OrderTypeLimit, price, size)
}

func (h *HTTPExchange) PlaceMarket(ctx context.Context, symbol string, side OrderSide, size decimal.Decimal) (*PlacedOrder, error) {
	return h.placeOrder(ctx, symbol, side, OrderTypeMarket, decimal.Zero, size)
}

func (h *HTTPExchange) PlaceOCO(ctx context.Context, symbol string, side OrderSide, size, stopLoss, takeProfit decimal.Decimal) ([]string, error) {
	req, err := h.request(ctx, "POST", "/orders/oco")
	if err != nil {
		return nil, err
	}
	var out struct {
		StopOrderID string `json:"stop_order_id"`
		TPOrderID   string `json:"tp_order_id"`
	}
	resp, err := req.
		SetBody(map[string]any{
			"symbol": symbol, "side": string(side), "size": size.String(),
			"stop_loss": stopLoss.String(), "take_profit": takeProfit.String(),
		}).
		SetResult(&out).Post("/orders/oco")
	if err != nil || resp.IsError() {
		return nil, fmt.Errorf("%w: place oco %s: %v", ErrExecExchange, symbol, err)
	}
	return []string{out.StopOrderID, out.TPOrderID}, nil
}

func (h *HTTPExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	req, err := h.request(ctx, "DELETE", "/orders/"+orderID)
	if err != nil {
		return err
	}
	resp, err := req.Delete("/orders/" + orderID)
	if err != nil || resp.IsError() {
		return fmt.Errorf("%w: cancel order %s: %v", ErrExecExchange, orderID, err)
	}
	return nil
}

func (h *HTTPExchange) GetOrder(ctx context.Context, symbol, orderID string) (*PlacedOrder, error) {
	req, err := h.request(ctx, "GET", "/orders/"+orderID)
	if err != nil {
		return nil, err
	}
	var out struct {
		Status string `json:"status"`
		Filled string `json:"filled_size"`
		Price  string `json:"price"`
	}
	resp, err := req.SetResult(&out).Get("/orders/" + orderID)
	if err != nil || resp.IsError() {
		return nil, fmt.Errorf("%w: get order %s: %v", ErrExecExchange, orderID, err)
	}
	filled, _ := decimal.NewFromString(out.Filled)
	price, _ := decimal.NewFromString(out.Price)
	return &PlacedOrder{ID: orderID, Symbol: symbol, Status: out.Status, Filled: filled, Price: price}, nil
}

func (h *HTTPExchange) OpenOrders(ctx context.Context, symbol string) ([]*PlacedOrder, error) {
	req, err := h.request(ctx, "GET", "/orders")
	if err != nil {
		return nil, err
	}
	var out []struct {
		OrderID string `json:"order_id"`
		Side    string `json:"side"`
		Status  string `json:"status"`
		Price   string `json:"price"`
		Size    string `json:"size"`
	}
	resp, err := req.SetQueryParam("symbol", symbol).SetResult(&out).Get("/orders")
	if err != nil || resp.IsError() {
		return nil, fmt.Errorf("%w: open orders %s: %v", ErrExecExchange, symbol, err)
	}
	orders := make([]*PlacedOrder, 0, len(out))
	for _, o := range out {
		price, _ := decimal.NewFromString(o.Price)
		size, _ := decimal.NewFromString(o.Size)
		orders = append(orders, &PlacedOrder{
			ID: o.OrderID, Symbol: symbol, Side: OrderSide(o.Side),
			Status: o.Status, Price: price, BaseSize: size,
		})
	}
	return orders, nil
}
