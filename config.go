// FILE: config.go
// Package main – Runtime configuration model, YAML-backed.
//
// Config loading itself is an external collaborator (spec treats
// ".env/YAML loading" as out of scope); what lives here is the struct the
// rest of the system depends on, plus a thin yaml.v3 loader and the
// per-mode default table, so every other component has something
// concrete to bind to.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModePaper    Mode = "paper"
	ModeLive     Mode = "live"
	ModeBacktest Mode = "backtest"
)

type Config struct {
	Mode           Mode     `yaml:"mode"`
	Symbols        []string `yaml:"symbols"`
	ScanIntervalS  int      `yaml:"scan_interval_s"`
	WorkerPoolSize int      `yaml:"worker_pool_size"`

	AIProvider          string `yaml:"ai_provider"`
	AIModelFast         string `yaml:"ai_model_fast"`
	AIModelDeep         string `yaml:"ai_model_deep"`
	AIUseHybridAnalysis bool   `yaml:"ai_use_hybrid_analysis"`
	AIBaseURL           string `yaml:"ai_base_url"`

	ExchangeName              string  `yaml:"exchange_name"`
	ExchangeBaseURL           string  `yaml:"exchange_base_url"`
	ExchangeRequestsPerSecond float64 `yaml:"exchange_requests_per_second"`
	BTCSymbol                 string  `yaml:"btc_symbol"`

	AIAgents AIAgentsConfig `yaml:"ai_agents"`

	RiskManagement     RiskManagementConfig     `yaml:"risk_management"`
	PositionManagement PositionManagementConfig `yaml:"position_management"`
	OrderExecution     OrderExecutionConfig     `yaml:"order_execution"`

	StateFile string `yaml:"state_file"`
	Port      int    `yaml:"port"`
}

type AIAgentsConfig struct {
	MinVolatilityPercent float64 `yaml:"min_volatility_percent"`
	MinVolumeRatio       float64 `yaml:"min_volume_ratio"`
	MinADXTrend          float64 `yaml:"min_adx_trend"`
}

type KellyCriterionConfig struct {
	Fraction      float64 `yaml:"fraction"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type ATRStopsConfig struct {
	SLMultiplier       float64 `yaml:"sl_multiplier"`
	TPMultiplier       float64 `yaml:"tp_multiplier"`
	MinDistancePercent float64 `yaml:"min_distance_percent"`
}

type SessionFilterConfig struct {
	Enabled       bool  `yaml:"enabled"`
	AvoidHoursUTC []int `yaml:"avoid_hours_utc"`
}

type RiskManagementConfig struct {
	MinConfidence        float64 `yaml:"min_confidence"`
	MinRiskRewardRatio   float64 `yaml:"min_risk_reward_ratio"`
	MaxRiskCap           float64 `yaml:"max_risk_cap"`
	MaxDailyDrawdownPct  float64 `yaml:"max_daily_drawdown_pct"`
	MaxPortfolioExposure float64 `yaml:"max_portfolio_exposure"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	MinProfitToFees      float64 `yaml:"min_profit_to_fees"`
	FeeRatePct           float64 `yaml:"fee_rate_pct"`
	MaxPriceDeviationPct float64 `yaml:"max_price_deviation_pct"`
	CorrelationThreshold float64 `yaml:"correlation_threshold"`

	KellyCriterion KellyCriterionConfig `yaml:"kelly_criterion"`
	ATRStops       ATRStopsConfig       `yaml:"atr_stops"`
	SessionFilter  SessionFilterConfig  `yaml:"session_filter"`
}

type TrailingStopConfig struct {
	ActivationProfitPercent float64 `yaml:"activation_profit_percent"`
	TrailDistancePercent    float64 `yaml:"trail_distance_percent"`
	MinProfitToLock         float64 `yaml:"min_profit_to_lock"`
	CooldownSeconds         int     `yaml:"cooldown_seconds"`
}

type PositionManagementConfig struct {
	TrailingStop TrailingStopConfig `yaml:"trailing_stop"`
}

type OrderExecutionConfig struct {
	UseLimitOrders bool    `yaml:"use_limit_orders"`
	MaxSlippagePct float64 `yaml:"max_slippage_pct"`
	OrderTimeoutS  int     `yaml:"order_timeout_s"`
}

// LoadConfig reads and parses a YAML config file, filling any zero-valued
// field with the per-mode default.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig(ModePaper)
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyModeDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a complete Config for the given mode, before any
// YAML overrides are applied.
func DefaultConfig(mode Mode) *Config {
	cfg := &Config{
		Mode:                mode,
		ScanIntervalS:       120,
		WorkerPoolSize:      4,
		AIProvider:          "openai",
		AIModelFast:         "gpt-4o-mini",
		AIModelDeep:         "o1-mini",
		AIUseHybridAnalysis: true,
		AIBaseURL:           "https://api.openai.com/v1",
		ExchangeName:        "coinbase",
		ExchangeBaseURL:     "https://api.exchange.example",
		ExchangeRequestsPerSecond: 8,
		BTCSymbol:           "BTC/USDT",
		AIAgents: AIAgentsConfig{
			MinVolatilityPercent: 0.5,
			MinVolumeRatio:       0.3,
			MinADXTrend:          20,
		},
		RiskManagement: RiskManagementConfig{
			MinConfidence:        0.55,
			MinRiskRewardRatio:   1.8,
			MaxRiskCap:           0.03,
			MaxDailyDrawdownPct:  0.10,
			MaxPortfolioExposure: 0.80,
			MaxConsecutiveLosses: 3,
			MinProfitToFees:      8.0,
			FeeRatePct:           0.001,
			MaxPriceDeviationPct: 0.002,
			CorrelationThreshold: 0.7,
			KellyCriterion: KellyCriterionConfig{
				Fraction:      0.25,
				MinConfidence: 0.55,
			},
			ATRStops: ATRStopsConfig{
				SLMultiplier:       1.5,
				TPMultiplier:       3.0,
				MinDistancePercent: 0.5,
			},
		},
		PositionManagement: PositionManagementConfig{
			TrailingStop: TrailingStopConfig{
				ActivationProfitPercent: 2.0,
				TrailDistancePercent:    1.0,
				MinProfitToLock:         0.0,
				CooldownSeconds:         30,
			},
		},
		OrderExecution: OrderExecutionConfig{
			UseLimitOrders: true,
			MaxSlippagePct: 0.1,
			OrderTimeoutS:  20,
		},
		StateFile: "sath_state.db",
		Port:      8080,
	}
	applyModeDefaults(cfg)
	return cfg
}

// applyModeDefaults tightens thresholds for live trading versus paper.
func applyModeDefaults(cfg *Config) {
	if cfg.Mode != ModeLive {
		return
	}
	if cfg.AIAgents.MinADXTrend == 20 {
		cfg.AIAgents.MinADXTrend = 25
	}
	if cfg.RiskManagement.MinConfidence == 0.55 {
		cfg.RiskManagement.MinConfidence = 0.70
	}
	if cfg.ScanIntervalS == 120 {
		cfg.ScanIntervalS = 180
	}
}

// Validate rejects an obviously broken config at startup.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: symbols watchlist is empty")
	}
	if c.RiskManagement.MinRiskRewardRatio < 1 {
		return fmt.Errorf("config: min_risk_reward_ratio must be >= 1, got %v", c.RiskManagement.MinRiskRewardRatio)
	}
	if c.RiskManagement.MaxRiskCap <= 0 || c.RiskManagement.MaxRiskCap > 1 {
		return fmt.Errorf("config: max_risk_cap out of (0,1]: %v", c.RiskManagement.MaxRiskCap)
	}
	if c.RiskManagement.KellyCriterion.Fraction <= 0 || c.RiskManagement.KellyCriterion.Fraction > 1 {
		return fmt.Errorf("config: kelly fraction out of (0,1]: %v", c.RiskManagement.KellyCriterion.Fraction)
	}
	if c.PositionManagement.TrailingStop.TrailDistancePercent >= c.PositionManagement.TrailingStop.ActivationProfitPercent {
		return fmt.Errorf("config: trail_distance_percent must be strictly less than activation_profit_percent")
	}
	if c.ScanIntervalS < 60 {
		return fmt.Errorf("config: scan_interval_s below 60s violates the non-HFT non-goal")
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("config: worker_pool_size must be positive")
	}
	if c.ExchangeName == "" {
		return fmt.Errorf("config: exchange_name is required")
	}
	if c.ExchangeBaseURL == "" {
		return fmt.Errorf("config: exchange_base_url is required")
	}
	if c.ExchangeRequestsPerSecond <= 0 {
		return fmt.Errorf("config: exchange_requests_per_second must be positive")
	}
	if c.BTCSymbol == "" {
		return fmt.Errorf("config: btc_symbol is required")
	}
	return nil
}
