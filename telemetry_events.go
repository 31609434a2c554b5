// FILE: telemetry_events.go
// Package main – structured JSON event log.
//
// One JSON line per pipeline event (cycle_start, prefilter_reject,
// cache_hit, regime_classified, decision, risk_reject, order_placed,
// order_aborted_slippage, position_opened, trailing_updated,
// position_closed, kill_switch_open), built on github.com/rs/zerolog
// so every log line is structured and greppable/queryable by field
// rather than parsed out of free text.
package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// EventLog emits one structured line per pipeline event.
type EventLog struct {
	logger zerolog.Logger
}

func NewEventLog(w io.Writer) *EventLog {
	if w == nil {
		w = os.Stdout
	}
	return &EventLog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// Emit writes one JSON event line. fields values must be JSON-marshalable
// primitives or strings; no event name here needs anything richer.
func (e *EventLog) Emit(event string, fields map[string]any) {
	ev := e.logger.Info().Str("event", event)
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			ev = ev.Str(k, val)
		case int:
			ev = ev.Int(k, val)
		case int64:
			ev = ev.Int64(k, val)
		case float64:
			ev = ev.Float64(k, val)
		case bool:
			ev = ev.Bool(k, val)
		default:
			ev = ev.Interface(k, val)
		}
	}
	ev.Msg(event)
}
