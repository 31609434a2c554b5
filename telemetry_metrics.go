// FILE: telemetry_metrics.go
// Package main – Prometheus metrics.
//
// One package-level set of counters/gauges, constructed once via
// promauto and kept low-cardinality on labels, covering the pipeline's
// own concerns: decisions, cache hits, risk rejections, open positions,
// and kill-switch state.
package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sath_decisions_total",
		Help: "Decisions produced by the pipeline, labeled by action and agent.",
	}, []string{"action", "agent"})

	metricRiskRejectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sath_risk_rejects_total",
		Help: "Decisions rejected by the risk manager, labeled by rejection kind.",
	}, []string{"kind"})

	metricCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sath_decision_cache_hits_total",
		Help: "Decision cache hits.",
	})
	metricCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sath_decision_cache_misses_total",
		Help: "Decision cache misses.",
	})

	metricKillSwitchActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sath_kill_switch_active",
		Help: "1 if the kill switch is currently open, 0 otherwise.",
	})

	metricOpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sath_open_positions",
		Help: "Number of currently open positions.",
	})

	metricPositionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sath_positions_closed_total",
		Help: "Closed positions, labeled by win/loss.",
	}, []string{"outcome"})

	metricLLMCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sath_llm_calls_total",
		Help: "LLM calls, labeled by tier and outcome.",
	}, []string{"tier", "outcome"})
)

// observeDecision records a decision's action/agent into the metrics
// registry; called from the same place the decision event is emitted.
func observeDecision(d Decision) {
	metricDecisionsTotal.WithLabelValues(string(d.Action), string(d.Agent)).Inc()
}

func observeRiskReject(kind string) {
	metricRiskRejectsTotal.WithLabelValues(kind).Inc()
}

func observeCacheResult(hit bool) {
	if hit {
		metricCacheHitsTotal.Inc()
		return
	}
	metricCacheMissesTotal.Inc()
}

func observeKillSwitch(active bool) {
	if active {
		metricKillSwitchActive.Set(1)
		return
	}
	metricKillSwitchActive.Set(0)
}

func observePositionClosed(win bool) {
	outcome := "loss"
	if win {
		outcome = "win"
	}
	metricPositionsClosedTotal.WithLabelValues(outcome).Inc()
}
