// FILE: riskstore.go
// Package main – RiskState transactional store.
//
// A single connection, serialized by an in-process mutex around every
// mutating statement. RecordResult writes kelly_history, recent_results
// and the state singleton in one transaction, so a crash mid-update never
// leaves those three out of step; every other mutation is a single
// statement. Backed by modernc.org/sqlite, the pure-Go SQL driver, so
// the binary stays cgo-free at build time.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// RiskState is the singleton row describing the account's current
// trading-day risk posture.
type RiskState struct {
	CurrentCapital   decimal.Decimal
	DailyPnL         decimal.Decimal
	KillSwitchActive bool
	KillSwitchReason string
	LastUpdated      time.Time
}

// KellyEntry is one closed-trade outcome feeding the fractional-Kelly
// win-probability estimate for a symbol.
type KellyEntry struct {
	Symbol   string
	Win      bool
	Return   float64
	ClosedAt time.Time
}

// RiskStore is the persistence collaborator the risk manager and
// position manager depend on.
type RiskStore interface {
	LoadState(ctx context.Context) (*RiskState, error)
	SetKillSwitch(ctx context.Context, active bool, reason string) error
	ApplyDailyReset(ctx context.Context, capital decimal.Decimal) error

	RecordResult(ctx context.Context, tr TradeResult) error
	KellyHistory(ctx context.Context, symbol string) ([]KellyEntry, error)
	RecentResults(ctx context.Context, limit int) ([]TradeResult, error)

	OpenTrades(ctx context.Context) ([]Position, error)
	AddOpenTrade(ctx context.Context, p Position) error
	UpdateOpenTrade(ctx context.Context, p Position) error
	RemoveOpenTrade(ctx context.Context, id string) error
}

// SQLiteRiskStore is the production RiskStore, single-writer-locked with
// an in-process mutex around every mutating statement: one writer, no
// interleaved partial commits.
type SQLiteRiskStore struct {
	mu sync.Mutex
	db *sql.DB
}

func OpenRiskStore(path string) (*SQLiteRiskStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStatePersist, path, err)
	}
	db.SetMaxOpenConns(1) // sqlite is single-writer; avoid pool contention entirely
	s := &SQLiteRiskStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteRiskStore) Close() error { return s.db.Close() }

func (s *SQLiteRiskStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	current_capital TEXT NOT NULL,
	daily_pnl TEXT NOT NULL,
	kill_switch_active INTEGER NOT NULL,
	kill_switch_reason TEXT NOT NULL,
	last_updated TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS kelly_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	win INTEGER NOT NULL,
	return_pct REAL NOT NULL,
	closed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kelly_symbol ON kelly_history(symbol, closed_at);
CREATE TABLE IF NOT EXISTS recent_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL,
	agent TEXT NOT NULL,
	regime TEXT NOT NULL,
	side TEXT NOT NULL,
	size TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	pnl TEXT NOT NULL,
	win INTEGER NOT NULL,
	return_pct REAL NOT NULL,
	hold_time_s INTEGER NOT NULL,
	closed_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS open_trades (
	id TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	size TEXT NOT NULL,
	stop_loss TEXT NOT NULL,
	take_profit TEXT NOT NULL,
	trailing_active INTEGER NOT NULL,
	trailing_anchor TEXT NOT NULL,
	oco_ids TEXT NOT NULL,
	opened_at TEXT NOT NULL,
	agent TEXT NOT NULL,
	regime TEXT NOT NULL,
	confidence REAL NOT NULL,
	last_trail_update TEXT NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: migrate schema: %v", ErrStatePersist, err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM state`).Scan(&n); err != nil {
		return fmt.Errorf("%w: %v", ErrStatePersist, err)
	}
	if n == 0 {
		_, err := s.db.Exec(`INSERT INTO state(id, current_capital, daily_pnl, kill_switch_active, kill_switch_reason, last_updated) VALUES (1, '0', '0', 0, '', ?)`,
			time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("%w: seed state row: %v", ErrStatePersist, err)
		}
	}
	return nil
}

func (s *SQLiteRiskStore) LoadState(ctx context.Context) (*RiskState, error) {
	var capital, daily, reason, updated string
	var killSwitch int
	row := s.db.QueryRowContext(ctx, `SELECT current_capital, daily_pnl, kill_switch_active, kill_switch_reason, last_updated FROM state WHERE id = 1`)
	if err := row.Scan(&capital, &daily, &killSwitch, &reason, &updated); err != nil {
		return nil, fmt.Errorf("%w: load state: %v", ErrStatePersist, err)
	}
	cap, _ := decimal.NewFromString(capital)
	pnl, _ := decimal.NewFromString(daily)
	t, _ := time.Parse(time.RFC3339, updated)
	return &RiskState{
		CurrentCapital:   cap,
		DailyPnL:         pnl,
		KillSwitchActive: killSwitch != 0,
		KillSwitchReason: reason,
		LastUpdated:      t,
	}, nil
}

func (s *SQLiteRiskStore) SetKillSwitch(ctx context.Context, active bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flag := 0
	if active {
		flag = 1
	}
	_, err := s.db.ExecContext(ctx, `UPDATE state SET kill_switch_active = ?, kill_switch_reason = ?, last_updated = ? WHERE id = 1`,
		flag, reason, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: set kill switch: %v", ErrStatePersist, err)
	}
	return nil
}

// ApplyDailyReset zeroes the daily PnL counter and rebases current
// capital at the UTC day boundary, the same boundary the kill switch's
// auto-close condition checks against.
func (s *SQLiteRiskStore) ApplyDailyReset(ctx context.Context, capital decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE state SET current_capital = ?, daily_pnl = '0', last_updated = ? WHERE id = 1`,
		capital.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: daily reset: %v", ErrStatePersist, err)
	}
	return nil
}

// RecordResult commits a closed trade's outcome to kelly_history and
// recent_results, and rolls it into the state singleton's daily PnL and
// current capital, all inside one transaction.
func (s *SQLiteRiskStore) RecordResult(ctx context.Context, tr TradeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrStatePersist, err)
	}
	defer tx.Rollback()

	win := 0
	if tr.Win {
		win = 1
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO kelly_history(symbol, win, return_pct, closed_at) VALUES (?, ?, ?, ?)`,
		tr.Symbol, win, tr.ReturnPct, tr.ClosedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%w: insert kelly_history: %v", ErrStatePersist, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO recent_results(symbol, agent, regime, side, size, entry_price, exit_price, pnl, win, return_pct, hold_time_s, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.Symbol, tr.Agent, tr.Regime, tr.Side, tr.Size.String(), tr.EntryPrice.String(), tr.ExitPrice.String(),
		tr.PnL.String(), win, tr.ReturnPct, int64(tr.HoldTime.Seconds()), tr.ClosedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%w: insert recent_results: %v", ErrStatePersist, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE state SET
			current_capital = CAST(CAST(current_capital AS REAL) + CAST(? AS REAL) AS TEXT),
			daily_pnl       = CAST(CAST(daily_pnl AS REAL) + CAST(? AS REAL) AS TEXT),
			last_updated    = ?
		WHERE id = 1`,
		tr.PnL.String(), tr.PnL.String(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("%w: update state pnl: %v", ErrStatePersist, err)
	}
	if err := pruneRecentResults(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStatePersist, err)
	}
	return nil
}

// pruneRecentResults keeps only the last 50 rows: recent_results is a
// bounded ring, not an unbounded log.
func pruneRecentResults(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM recent_results WHERE id NOT IN (
			SELECT id FROM recent_results ORDER BY id DESC LIMIT 50
		)`)
	if err != nil {
		return fmt.Errorf("%w: prune recent_results: %v", ErrStatePersist, err)
	}
	return nil
}

func (s *SQLiteRiskStore) KellyHistory(ctx context.Context, symbol string) ([]KellyEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, win, return_pct, closed_at FROM kelly_history WHERE symbol = ? ORDER BY closed_at ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: query kelly_history: %v", ErrStatePersist, err)
	}
	defer rows.Close()

	var out []KellyEntry
	for rows.Next() {
		var e KellyEntry
		var win int
		var closedAt string
		if err := rows.Scan(&e.Symbol, &win, &e.Return, &closedAt); err != nil {
			return nil, fmt.Errorf("%w: scan kelly_history: %v", ErrStatePersist, err)
		}
		e.Win = win != 0
		e.ClosedAt, _ = time.Parse(time.RFC3339, closedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteRiskStore) RecentResults(ctx context.Context, limit int) ([]TradeResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, agent, regime, side, size, entry_price, exit_price, pnl, win, return_pct, hold_time_s, closed_at
		FROM (SELECT * FROM recent_results ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent_results: %v", ErrStatePersist, err)
	}
	defer rows.Close()

	var out []TradeResult
	for rows.Next() {
		var tr TradeResult
		var size, entry, exit, pnl, closedAt string
		var win, holdS int
		if err := rows.Scan(&tr.Symbol, &tr.Agent, &tr.Regime, &tr.Side, &size, &entry, &exit, &pnl, &win, &tr.ReturnPct, &holdS, &closedAt); err != nil {
			return nil, fmt.Errorf("%w: scan recent_results: %v", ErrStatePersist, err)
		}
		tr.Size, _ = decimal.NewFromString(size)
		tr.EntryPrice, _ = decimal.NewFromString(entry)
		tr.ExitPrice, _ = decimal.NewFromString(exit)
		tr.PnL, _ = decimal.NewFromString(pnl)
		tr.Win = win != 0
		tr.HoldTime = time.Duration(holdS) * time.Second
		tr.ClosedAt, _ = time.Parse(time.RFC3339, closedAt)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *SQLiteRiskStore) OpenTrades(ctx context.Context) ([]Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, symbol, side, entry_price, size, stop_loss, take_profit, trailing_active, trailing_anchor, oco_ids, opened_at, agent, regime, confidence, last_trail_update FROM open_trades`)
	if err != nil {
		return nil, fmt.Errorf("%w: query open_trades: %v", ErrStatePersist, err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(r rowScanner) (Position, error) {
	var p Position
	var entry, size, sl, tp, anchor, ocoIDs, opened, lastTrail string
	var trailingActive int
	if err := r.Scan(&p.ID, &p.Symbol, &p.Side, &entry, &size, &sl, &tp, &trailingActive, &anchor, &ocoIDs, &opened, &p.Agent, &p.Regime, &p.Confidence, &lastTrail); err != nil {
		return Position{}, fmt.Errorf("%w: scan open_trades: %v", ErrStatePersist, err)
	}
	p.EntryPrice, _ = decimal.NewFromString(entry)
	p.Size, _ = decimal.NewFromString(size)
	p.StopLoss, _ = decimal.NewFromString(sl)
	p.TakeProfit, _ = decimal.NewFromString(tp)
	p.TrailingActive = trailingActive != 0
	p.TrailingAnchor, _ = decimal.NewFromString(anchor)
	p.OCOIDs = splitOCOIDs(ocoIDs)
	p.OpenedAt, _ = time.Parse(time.RFC3339, opened)
	p.LastTrailUpdate, _ = time.Parse(time.RFC3339, lastTrail)
	return p, nil
}

func (s *SQLiteRiskStore) AddOpenTrade(ctx context.Context, p Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertOpenTrade(ctx, p)
}

func (s *SQLiteRiskStore) UpdateOpenTrade(ctx context.Context, p Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertOpenTrade(ctx, p)
}

func (s *SQLiteRiskStore) upsertOpenTrade(ctx context.Context, p Position) error {
	trailing := 0
	if p.TrailingActive {
		trailing = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO open_trades(id, symbol, side, entry_price, size, stop_loss, take_profit, trailing_active, trailing_anchor, oco_ids, opened_at, agent, regime, confidence, last_trail_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			side=excluded.side, entry_price=excluded.entry_price, size=excluded.size,
			stop_loss=excluded.stop_loss, take_profit=excluded.take_profit,
			trailing_active=excluded.trailing_active, trailing_anchor=excluded.trailing_anchor,
			oco_ids=excluded.oco_ids, agent=excluded.agent, regime=excluded.regime, confidence=excluded.confidence,
			last_trail_update=excluded.last_trail_update`,
		p.ID, p.Symbol, p.Side, p.EntryPrice.String(), p.Size.String(), p.StopLoss.String(), p.TakeProfit.String(),
		trailing, p.TrailingAnchor.String(), joinOCOIDs(p.OCOIDs), p.OpenedAt.UTC().Format(time.RFC3339),
		p.Agent, p.Regime, p.Confidence, p.LastTrailUpdate.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: upsert open_trades: %v", ErrStatePersist, err)
	}
	return nil
}

func (s *SQLiteRiskStore) RemoveOpenTrade(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM open_trades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete open_trades: %v", ErrStatePersist, err)
	}
	return nil
}

func joinOCOIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}

func splitOCOIDs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
