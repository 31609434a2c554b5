// FILE: pricing.go
// Package main – small decimal/float conversion and ATR-stop helpers
// shared by the agents (initial SL/TP) and the risk manager (SL/TP
// sanity re-validation).
package main

import "github.com/shopspring/decimal"

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// atrStops derives a stop-loss and take-profit from entry price and ATR,
// for a BUY (long) or SELL (spot: sell-what-you-hold exit target) side.
func atrStops(entry, atr float64, action Action, slMultiplier, tpMultiplier float64) (sl, tp float64) {
	dist := atr * slMultiplier
	reward := atr * tpMultiplier
	if action == ActionSell {
		return entry + dist, entry - reward
	}
	return entry - dist, entry + reward
}
