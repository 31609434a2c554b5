// FILE: confidence.go
// Package main – agent confidence calibration.
//
// A tiny per-agent online logistic-regression model, fit by online
// gradient descent over recorded trade outcomes, that recalibrates a
// Decision's raw confidence against that agent's actual historical win
// rate. This is the signal risk.go's Kelly `p` estimate blends in once
// an agent has accumulated enough trade history.
package main

import (
	"math"
	"sync"
)

// ConfidenceModel maintains one calibration weight per AgentKind,
// nudged by recorded trade outcomes via online gradient descent.
type ConfidenceModel struct {
	mu      sync.Mutex
	weights map[AgentKind]float64
	bias    map[AgentKind]float64
	lr      float64
}

func NewConfidenceModel() *ConfidenceModel {
	return &ConfidenceModel{
		weights: make(map[AgentKind]float64),
		bias:    make(map[AgentKind]float64),
		lr:      0.05,
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Calibrate blends a Decision's raw confidence with the agent's learned
// calibration weight, producing the value risk.go actually sizes on.
func (m *ConfidenceModel) Calibrate(agent AgentKind, rawConfidence float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.weights[agent]
	b := m.bias[agent]
	calibrated := sigmoid(w*rawConfidence + b)
	if calibrated < 0 {
		return 0
	}
	if calibrated > 1 {
		return 1
	}
	return calibrated
}

// Update performs one online gradient-descent step toward the observed
// outcome (1.0 for a win, 0.0 for a loss) given the raw confidence that
// was used to size the trade.
func (m *ConfidenceModel) Update(agent AgentKind, rawConfidence float64, win bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.weights[agent]
	b := m.bias[agent]

	target := 0.0
	if win {
		target = 1.0
	}
	pred := sigmoid(w*rawConfidence + b)
	grad := pred - target

	m.weights[agent] = w - m.lr*grad*rawConfidence
	m.bias[agent] = b - m.lr*grad
}
