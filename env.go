// FILE: env.go
// Package main – environment helpers for secrets that never belong in YAML:
// exchange API keys/secrets and the LLM provider API key. Everything else
// (thresholds, symbols, intervals) lives in config.go's YAML-backed Config.
package main

import (
	"os"
	"strconv"
	"strings"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes":
		return true
	case "0", "false", "n", "no":
		return false
	case "":
		return def
	default:
		return def
	}
}
func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// --------- Secrets (collaborator credentials, never in YAML) ---------

// Secrets bundles the handful of credentials the exchange and LLM
// collaborators need, read directly from the process environment.
type Secrets struct {
	ExchangeAPIKey    string
	ExchangeAPISecret string
	LLMAPIKey         string
}

func loadSecretsFromEnv() Secrets {
	return Secrets{
		ExchangeAPIKey:    getEnv("EXCHANGE_API_KEY", ""),
		ExchangeAPISecret: getEnv("EXCHANGE_API_SECRET", ""),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
	}
}
