// tools/migrate_state.go
// CLI to migrate legacy flat-JSON bot state into SATH's SQLite RiskState
// schema (state / kelly_history / recent_results / open_trades).
//
// Usage:
//   go run tools/migrate_state.go -in <legacy.json> -out <new.db>
//   go run tools/migrate_state.go -in <legacy.json> -inplace -out <existing.db>
//
// Notes:
//   - Tolerates legacy fields that may be absent (older state files predate
//     trailing-stop and regime tagging).
//   - Idempotent: re-running against the same legacy file and the same
//     target database produces the same open_trades rows (upsert by a
//     deterministic ID derived from side+open price+size+open_time), so a crash mid-run
//     can simply be re-run.
//   - On a successful migrate, the legacy JSON file is removed so a later
//     process start doesn't find it and re-migrate stale data. This CLI is
//     a standalone, operator-invoked step rather than something the main
//     process runs automatically on start: a bot that both reads live
//     market data and silently rewrites its own state file on boot is
//     harder to reason about during an incident than one where a legacy
//     migration is a deliberate, logged, one-time action.
package main

import (
	"crypto/sha1"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// legacyPosition mirrors the pre-SQLite flat-JSON position shape closely
// enough to read it; fields absent from older files zero-value cleanly.
type legacyPosition struct {
	OpenPrice   float64   `json:"OpenPrice"`
	Side        string    `json:"Side"`
	SizeBase    float64   `json:"SizeBase"`
	Stop        float64   `json:"Stop"`
	Take        float64   `json:"Take"`
	OpenTime    time.Time `json:"OpenTime"`
	TrailActive bool      `json:"TrailActive"`
	TrailPeak   float64   `json:"TrailPeak"`
}

// legacyState mirrors the pre-SQLite flat-JSON bot-state file as a whole.
type legacyState struct {
	EquityUSD float64           `json:"EquityUSD"`
	DailyPnL  float64           `json:"DailyPnL"`
	Lots      []*legacyPosition `json:"Lots"`
}

func main() {
	in := flag.String("in", "", "path to legacy state JSON")
	out := flag.String("out", "", "path to the target SQLite database")
	inplace := flag.Bool("inplace", false, "tolerate an existing database at -out and merge into it")
	flag.Parse()

	if *in == "" || *out == "" {
		exitf("usage: migrate_state -in <legacy.json> -out <sath_state.db> [-inplace]")
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		exitf("read input: %v", err)
	}
	var legacy legacyState
	if err := json.Unmarshal(raw, &legacy); err != nil {
		exitf("parse legacy JSON: %v", err)
	}

	if _, err := os.Stat(*out); err == nil {
		if !*inplace {
			exitf("%s already exists; pass -inplace to merge into it", *out)
		}
		if err := backupFile(*out); err != nil {
			exitf("backup existing db: %v", err)
		}
	}

	db, err := sql.Open("sqlite", *out)
	if err != nil {
		exitf("open target db: %v", err)
	}
	defer db.Close()

	if err := migrate(db, legacy); err != nil {
		exitf("migrate: %v", err)
	}
	if err := os.Remove(*in); err != nil {
		exitf("migrate succeeded but removing legacy file %s failed: %v", *in, err)
	}
	fmt.Printf("Migrated %d open position(s) and equity/PnL state into %s, removed %s\n", len(legacy.Lots), *out, *in)
}

func migrate(db *sql.DB, legacy legacyState) error {
	const schema = `
CREATE TABLE IF NOT EXISTS state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	current_capital TEXT NOT NULL,
	daily_pnl TEXT NOT NULL,
	kill_switch_active INTEGER NOT NULL,
	kill_switch_reason TEXT NOT NULL,
	last_updated TEXT NOT NULL
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
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM state`).Scan(&n); err != nil {
		return fmt.Errorf("count state rows: %w", err)
	}
	if n == 0 {
		_, err := db.Exec(`INSERT INTO state(id, current_capital, daily_pnl, kill_switch_active, kill_switch_reason, last_updated) VALUES (1, ?, ?, 0, '', ?)`,
			fmt.Sprintf("%v", legacy.EquityUSD), fmt.Sprintf("%v", legacy.DailyPnL), time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("seed state row: %w", err)
		}
	} else {
		_, err := db.Exec(`UPDATE state SET current_capital = ?, daily_pnl = ?, last_updated = ? WHERE id = 1`,
			fmt.Sprintf("%v", legacy.EquityUSD), fmt.Sprintf("%v", legacy.DailyPnL), time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("update state row: %w", err)
		}
	}

	for _, lot := range legacy.Lots {
		if lot == nil {
			continue
		}
		id := positionID(lot)
		trailPeak := lot.TrailPeak
		if trailPeak == 0 {
			trailPeak = lot.OpenPrice
		}
		trailingActive := 0
		if lot.TrailActive {
			trailingActive = 1
		}
		opened := lot.OpenTime
		if opened.IsZero() {
			opened = time.Now().UTC()
		}
		_, err := db.Exec(`
			INSERT INTO open_trades(id, symbol, side, entry_price, size, stop_loss, take_profit, trailing_active, trailing_anchor, oco_ids, opened_at, agent, regime, confidence, last_trail_update)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, 'filter', 'trending', 0, ?)
			ON CONFLICT(id) DO UPDATE SET
				entry_price=excluded.entry_price, size=excluded.size,
				stop_loss=excluded.stop_loss, take_profit=excluded.take_profit,
				trailing_active=excluded.trailing_active, trailing_anchor=excluded.trailing_anchor`,
			id, "UNKNOWN/USDT", lot.Side, fmt.Sprintf("%v", lot.OpenPrice), fmt.Sprintf("%v", lot.SizeBase),
			fmt.Sprintf("%v", lot.Stop), fmt.Sprintf("%v", lot.Take), trailingActive, fmt.Sprintf("%v", trailPeak),
			opened.Format(time.RFC3339), opened.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("upsert open_trades: %w", err)
		}
	}
	return nil
}

// positionID derives a stable id from the legacy lot's identifying
// fields, so re-running the migration against the same legacy file
// upserts the same row instead of duplicating it.
func positionID(lot *legacyPosition) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%v|%v|%s", lot.Side, lot.OpenPrice, lot.SizeBase, lot.OpenTime.Format(time.RFC3339))
	return fmt.Sprintf("legacy-%x", h.Sum(nil))[:24]
}

// backupFile copies path to path+".bak" before an in-place migration
// touches it, so a bad migration run can be undone by hand.
func backupFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".bak")
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func exitf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "migrate_state: "+format+"\n", a...)
	os.Exit(1)
}
