// FILE: orderbook_stream.go
// Package main – optional websocket order-book stream.
//
// The teacher never streams order-book depth (its Broker.OrderBook()/
// equivalent is REST-only), but gorilla/websocket is carried by the
// wider pack as the idiomatic way to keep a depth book warm without
// re-polling REST every cycle. This is additive: the collector falls
// back to the Exchange's REST OrderBook() when no stream is registered
// for a symbol, so a feed that never streams (the paper adapter, or a
// venue without a WS API) keeps working unmodified.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// wsURLFromREST derives the venue's websocket endpoint from its REST
// base URL, the normalized collaborator surface assuming one host
// serves both (true of every venue in the retrieved pack).
func wsURLFromREST(restBaseURL string) string {
	u := strings.Replace(restBaseURL, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return strings.TrimSuffix(u, "/") + "/ws"
}

// OrderBookStream maintains the latest top-of-book snapshot for one
// symbol, updated by a background read loop over a websocket connection.
type OrderBookStream struct {
	mu     sync.RWMutex
	latest OrderBook
	have   bool

	conn   *websocket.Conn
	symbol string
}

type wsBookMessage struct {
	Symbol string      `json:"symbol"`
	Bids   []bookLevel `json:"bids"`
	Asks   []bookLevel `json:"asks"`
}

// DialOrderBookStream opens a websocket to wsURL, sends a subscribe
// message for symbol, and starts a background read loop. Call Close
// when the stream is no longer needed.
func DialOrderBookStream(ctx context.Context, wsURL, symbol string) (*OrderBookStream, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial order book stream %s: %v", ErrFeedUnavailable, symbol, err)
	}
	sub := map[string]any{"type": "subscribe", "channel": "level2", "symbol": symbol}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: subscribe %s: %v", ErrFeedUnavailable, symbol, err)
	}

	s := &OrderBookStream{conn: conn, symbol: symbol}
	go s.readLoop()
	return s, nil
}

func (s *OrderBookStream) readLoop() {
	defer s.conn.Close()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsBookMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.Symbol != s.symbol {
			continue
		}
		ob := OrderBook{Bids: toLevels(msg.Bids), Asks: toLevels(msg.Asks)}
		ob.Imbalance, ob.Pressure = computeImbalance(ob.Bids, ob.Asks)
		if len(ob.Bids) > 0 {
			ob.BestBidWall = largestWall(ob.Bids)
		}
		if len(ob.Asks) > 0 {
			ob.BestAskWall = largestWall(ob.Asks)
		}
		s.mu.Lock()
		s.latest = ob
		s.have = true
		s.mu.Unlock()
	}
}

// Latest returns the most recent order book pushed over the stream, and
// whether any message has arrived yet.
func (s *OrderBookStream) Latest() (OrderBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.have
}

func (s *OrderBookStream) Close() error {
	return s.conn.Close()
}
