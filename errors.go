// errors.go — stable error taxonomy, one identifier per failure class.
//
// Call sites compare with errors.Is against the exported sentinels, or
// pull the string identifier via Code() for metrics/telemetry labels.
package main

import "errors"

// sathError carries a stable dotted identifier alongside a plain error,
// so tests and metrics can key off Code() without string-matching
// Error().
type sathError struct {
	code string
	err  error
}

func (e *sathError) Error() string { return e.err.Error() }
func (e *sathError) Unwrap() error { return e.err }
func (e *sathError) Code() string  { return e.code }

func newSathError(code, msg string) *sathError {
	return &sathError{code: code, err: errors.New(msg)}
}

var (
	ErrFeedUnavailable     = newSathError("data.feed_unavailable", "exchange returned no OHLCV or stale data")
	ErrInsufficientHistory = newSathError("data.insufficient_history", "fewer than required bars of history")

	ErrLLMTransport = newSathError("llm.transport", "llm call failed (retryable)")
	ErrLLMParse     = newSathError("llm.parse", "could not parse llm response")

	ErrRiskKillSwitch   = newSathError("risk.reject.kill_switch", "kill switch active")
	ErrRiskConfidence   = newSathError("risk.reject.confidence", "confidence below threshold")
	ErrRiskSession      = newSathError("risk.reject.session", "blackout session hour")
	ErrRiskRR           = newSathError("risk.reject.rr", "reward/risk below minimum or SL/TP invalid")
	ErrRiskBalance      = newSathError("risk.reject.balance", "insufficient balance for sizing")
	ErrRiskCorrelation  = newSathError("risk.reject.correlation", "correlated exposure already open")
	ErrRiskFees         = newSathError("risk.reject.fees", "expected profit too small versus fees")
	ErrRiskMinSize      = newSathError("risk.reject.min_size", "sized notional below exchange minimum")

	ErrExecSlippageAbort = newSathError("exec.slippage_abort", "price moved past tolerance before execution")
	ErrExecExchange      = newSathError("exec.exchange_error", "exchange order call failed")

	ErrStatePersist = newSathError("state.persist_error", "risk state persistence failed")
)

// Code extracts the stable identifier from an error, walking the chain.
// Returns "" if the error (or anything it wraps) does not carry one.
func Code(err error) string {
	var se *sathError
	if errors.As(err, &se) {
		return se.code
	}
	return ""
}
