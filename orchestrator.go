// FILE: orchestrator.go
// Package main – orchestrator: cycle timer, bounded parallel per-symbol
// pipeline fan-out, serialized risk/execution drain, position
// maintenance tick, kill-switch check, heartbeat.
//
// Every watchlist symbol runs its collect/decide pipeline concurrently,
// fanned out with golang.org/x/sync/errgroup and capped by a semaphore
// channel at worker_pool_size in flight,
// then a single goroutine drains the resulting Decisions and acts on
// them one at a time in watchlist order, so risk checks never race each
// other over shared exchange balance.
package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Orchestrator wires every pipeline stage together and drives the
// scan-interval cycle loop.
type Orchestrator struct {
	cfg        *Config
	ex         Exchange
	collector  *Collector
	cache      *DecisionCache
	llm        *LLMClient
	confidence *ConfidenceModel
	risk       *RiskManager
	exec       *ExecutionGateway
	pm         *PositionManager
	store      RiskStore
	events     *EventLog

	dayStartCapital decimal.Decimal
	currentDay      string
}

func NewOrchestrator(cfg *Config, ex Exchange, collector *Collector, cache *DecisionCache, llm *LLMClient,
	confidence *ConfidenceModel, risk *RiskManager, exec *ExecutionGateway, pm *PositionManager, store RiskStore, events *EventLog) *Orchestrator {
	return &Orchestrator{
		cfg: cfg, ex: ex, collector: collector, cache: cache, llm: llm,
		confidence: confidence, risk: risk, exec: exec, pm: pm, store: store, events: events,
	}
}

// scanResult pairs a watchlist symbol with the Decision its pipeline run
// produced, so the serialized drain stage knows which symbol to act on.
type scanResult struct {
	symbol   string
	decision Decision
}

// Run blocks, executing one pipeline cycle every scan_interval_s until
// ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.pm.Reconcile(ctx); err != nil {
		o.events.Emit("reconcile_error", map[string]any{"error": err.Error()})
	}

	ticker := time.NewTicker(time.Duration(o.cfg.ScanIntervalS) * time.Second)
	defer ticker.Stop()

	if err := o.runCycle(ctx); err != nil {
		o.events.Emit("cycle_error", map[string]any{"error": err.Error()})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.runCycle(ctx); err != nil {
				o.events.Emit("cycle_error", map[string]any{"error": err.Error()})
			}
		}
	}
}

func (o *Orchestrator) runCycle(ctx context.Context) error {
	o.events.Emit("cycle_start", map[string]any{"symbols": len(o.cfg.Symbols)})

	if err := o.rolloverDayIfNeeded(ctx); err != nil {
		return err
	}

	results := o.scanAll(ctx)
	o.drain(ctx, results)

	if err := o.pm.Tick(ctx); err != nil {
		o.events.Emit("position_tick_error", map[string]any{"error": err.Error()})
	}

	if err := o.risk.CheckKillSwitch(ctx, o.dayStartCapital); err != nil {
		o.events.Emit("kill_switch_check_error", map[string]any{"error": err.Error()})
	}
	if state, err := o.store.LoadState(ctx); err == nil {
		observeKillSwitch(state.KillSwitchActive)
		if state.KillSwitchActive {
			o.events.Emit("kill_switch_open", map[string]any{"reason": state.KillSwitchReason})
		}
	}
	if open, err := o.store.OpenTrades(ctx); err == nil {
		metricOpenPositions.Set(float64(len(open)))
	}

	o.events.Emit("heartbeat", map[string]any{"time": time.Now().UTC().Format(time.RFC3339)})
	return nil
}

// rolloverDayIfNeeded rebases dayStartCapital at the UTC day boundary,
// the same boundary the kill-switch auto-close checks against.
func (o *Orchestrator) rolloverDayIfNeeded(ctx context.Context) error {
	today := time.Now().UTC().Format("2006-01-02")
	if today == o.currentDay && !o.dayStartCapital.IsZero() {
		return nil
	}
	state, err := o.store.LoadState(ctx)
	if err != nil {
		return err
	}
	if o.currentDay != "" && today != o.currentDay {
		if err := o.store.ApplyDailyReset(ctx, state.CurrentCapital); err != nil {
			return err
		}
	}
	o.dayStartCapital = state.CurrentCapital
	o.currentDay = today
	return nil
}

// scanAll fans the collect -> gate -> classify -> decide pipeline out
// across the watchlist, bounded to worker_pool_size concurrent symbols.
func (o *Orchestrator) scanAll(ctx context.Context) []scanResult {
	sem := make(chan struct{}, o.cfg.WorkerPoolSize)
	g, gctx := errgroup.WithContext(ctx)

	results := make([]scanResult, len(o.cfg.Symbols))
	for i, symbol := range o.cfg.Symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()
			d := o.processSymbol(gctx, symbol)
			results[i] = scanResult{symbol: symbol, decision: d}
			return nil
		})
	}
	_ = g.Wait() // processSymbol never returns an error; every slot is always filled
	return results
}

// processSymbol runs one symbol through collect/prefilter/gate/classify/
// cache/decide, returning a HOLD Decision on any soft failure so a
// single bad symbol never aborts the cycle.
func (o *Orchestrator) processSymbol(ctx context.Context, symbol string) Decision {
	snap, err := o.collector.Collect(ctx, symbol)
	if err != nil {
		o.events.Emit("collect_error", map[string]any{"symbol": symbol, "error": err.Error()})
		return Decision{Action: ActionHold, Agent: AgentFilter, Reasoning: "collect failed"}
	}

	if reject, reason := PreFilter(snap, o.cfg.AIAgents.MinVolatilityPercent); reject {
		o.events.Emit("prefilter_reject", map[string]any{"symbol": symbol, "reason": reason})
		return FilterHold(RegimeLowVolatility, reason)
	}
	if VolatilityGate(snap, o.cfg.AIAgents.MinVolatilityPercent) {
		o.events.Emit("prefilter_reject", map[string]any{"symbol": symbol, "reason": "volatility_gate"})
		return FilterHold(RegimeLowVolatility, "volatility_gate")
	}

	regime := ClassifyRegime(snap, o.cfg.AIAgents.MinADXTrend)
	o.events.Emit("regime_classified", map[string]any{"symbol": symbol, "regime": string(regime)})

	fp := BuildFingerprint(snap)
	if d, ok := o.cache.Get(fp); ok {
		observeCacheResult(true)
		o.events.Emit("cache_hit", map[string]any{"symbol": symbol})
		return d
	}
	observeCacheResult(false)

	agent := AgentFor(regime, o.cfg)
	d, err := agent.Decide(ctx, snap, o.llm)
	if err != nil {
		o.events.Emit("decide_error", map[string]any{"symbol": symbol, "error": err.Error()})
		return Decision{Action: ActionHold, Agent: agent.Kind(), Regime: regime, Reasoning: "agent error"}
	}
	d.Confidence = o.confidence.Calibrate(d.Agent, d.Confidence)
	o.cache.Put(fp, d)
	observeDecision(d)
	o.events.Emit("decision", map[string]any{
		"symbol": symbol, "action": string(d.Action), "confidence": d.Confidence, "agent": string(d.Agent),
	})
	return d
}

// drain acts on every actionable Decision one at a time, in watchlist
// order, so risk checks never race each other over shared balance.
func (o *Orchestrator) drain(ctx context.Context, results []scanResult) {
	for _, r := range results {
		if !r.decision.IsActionable() {
			continue
		}
		pos, err := o.risk.Evaluate(ctx, r.symbol, r.decision)
		if err != nil {
			observeRiskReject(Code(err))
			o.events.Emit("risk_reject", map[string]any{"symbol": r.symbol, "kind": Code(err)})
			continue
		}
		if err := o.exec.Open(ctx, pos); err != nil {
			o.events.Emit("order_aborted", map[string]any{"symbol": r.symbol, "kind": Code(err), "error": err.Error()})
			continue
		}
		pos.ID = uuid.NewString()
		if err := o.store.AddOpenTrade(ctx, *pos); err != nil {
			o.events.Emit("position_persist_error", map[string]any{"symbol": r.symbol, "error": err.Error()})
		}
	}
}
