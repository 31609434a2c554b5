// FILE: main.go
// Package main – process entrypoint: wiring, HTTP server, graceful
// shutdown.
//
// Loads config, constructs the collaborator graph, starts an HTTP
// server alongside the trading loop, and drains both on SIGINT/SIGTERM.
// /readyz reports kill-switch state, risk-store reachability, and the LLM
// circuit breaker so an external health check can hold traffic back
// from a process that is up but not safe to trade.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("sath: config: %v", err)
	}
	secrets := loadSecretsFromEnv()

	events := NewEventLog(os.Stdout)

	feed := NewHTTPExchange(cfg.ExchangeName, cfg.ExchangeBaseURL,
		NewJWTSigner(secrets.ExchangeAPIKey, secrets.ExchangeAPISecret), cfg.ExchangeRequestsPerSecond)

	var ex Exchange = feed
	if cfg.Mode == ModePaper {
		ex = NewPaperExchange(feed, decimal.NewFromFloat(cfg.RiskManagement.FeeRatePct), map[string]decimal.Decimal{
			"USDT": decimal.NewFromInt(10000),
		})
	}

	store, err := OpenRiskStore(cfg.StateFile)
	if err != nil {
		log.Fatalf("sath: risk store: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := NewCollector(ex, cfg.BTCSymbol)
	if cfg.Mode == ModeLive {
		wsURL := wsURLFromREST(cfg.ExchangeBaseURL)
		for _, symbol := range cfg.Symbols {
			stream, err := DialOrderBookStream(ctx, wsURL, symbol)
			if err != nil {
				log.Printf("sath: order book stream %s: %v", symbol, err)
				continue
			}
			collector.UseOrderBookStream(symbol, stream)
		}
	}
	cache := NewDecisionCache(decisionCacheTTL)
	confidence := NewConfidenceModel()

	llmProvider := NewHTTPLLMProvider(cfg.AIBaseURL, secrets.LLMAPIKey)
	llm := NewLLMClient(llmProvider, cfg.AIModelFast, cfg.AIModelDeep, 5, 30*time.Second)

	risk := NewRiskManager(store, cfg, confidence, ex, collector)
	exec := NewExecutionGateway(ex, cfg, events)
	pm := NewPositionManager(store, ex, cfg, confidence, events)

	orch := NewOrchestrator(cfg, ex, collector, cache, llm, confidence, risk, exec, pm, store, events)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", readyzHandler(store, llm))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("sath: http server error: %v", err)
		}
	}()

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("sath: orchestrator exited: %v", err)
		}
	}()

	<-ctx.Done()
	events.Emit("shutdown_start", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("sath: http shutdown: %v", err)
	}
	select {
	case <-orchDone:
	case <-shutdownCtx.Done():
		log.Printf("sath: orchestrator still running at shutdown deadline")
	}
}

// readyzHandler reports whether the process is ready to trade: the
// kill switch must be closed, the LLM circuit breaker must not be open,
// and the risk store must answer.
func readyzHandler(store RiskStore, llm *LLMClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		state, err := store.LoadState(ctx)
		status := map[string]any{
			"llm_circuit_open": llm.CircuitOpen(),
		}
		if err != nil {
			status["ready"] = false
			status["store_error"] = err.Error()
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(status)
			return
		}
		status["kill_switch_active"] = state.KillSwitchActive
		status["ready"] = !state.KillSwitchActive && !llm.CircuitOpen()
		if !status["ready"].(bool) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
