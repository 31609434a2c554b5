// FILE: llm.go
// Package main – two-tier LLM client (fast/deep), circuit-broken and
// retried.
//
// The provider adapter itself (chat(messages, schema_hint) -> text) is a
// collaborator; LLMClient wraps it with exponential backoff on
// transport errors (cenkalti/backoff) and a circuit breaker that opens
// after K consecutive failures and serves HOLD verdicts during cooldown
// (sony/gobreaker), so a flaky or unreachable provider degrades the
// pipeline rather than hanging it.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// LLMTier selects which of the two model roles a call uses.
type LLMTier string

const (
	TierFast LLMTier = "fast"
	TierDeep LLMTier = "deep"
)

// LLMProvider is the raw collaborator surface: a single chat call.
type LLMProvider interface {
	Chat(ctx context.Context, tier LLMTier, model string, prompt string, jsonResponseHint bool) (string, error)
}

// LLMClient adds retry + circuit-breaking on top of a raw LLMProvider.
type LLMClient struct {
	provider  LLMProvider
	fastModel string
	deepModel string
	breaker   *gobreaker.CircuitBreaker[string]
}

func NewLLMClient(provider LLMProvider, fastModel, deepModel string, failureThreshold uint32, cooldown time.Duration) *LLMClient {
	st := gobreaker.Settings{
		Name:        "llm",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
	}
	return &LLMClient{
		provider:  provider,
		fastModel: fastModel,
		deepModel: deepModel,
		breaker:   gobreaker.NewCircuitBreaker[string](st),
	}
}

// Call issues a chat request on the given tier, retrying transport
// errors with exponential backoff and short-circuiting via the breaker.
// Breaker-open and exhausted-retry both surface as ErrLLMTransport so
// callers have one failure mode to handle.
func (c *LLMClient) Call(ctx context.Context, tier LLMTier, prompt string, jsonResponseHint bool) (string, error) {
	model := c.fastModel
	if tier == TierDeep {
		model = c.deepModel
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	result, err := c.breaker.Execute(func() (string, error) {
		var text string
		opErr := backoff.Retry(func() error {
			t, err := c.provider.Chat(ctx, tier, model, prompt, jsonResponseHint)
			if err != nil {
				return err
			}
			text = t
			return nil
		}, bo)
		return text, opErr
	})
	if err != nil {
		metricLLMCallsTotal.WithLabelValues(string(tier), "error").Inc()
		return "", fmt.Errorf("%w: %v", ErrLLMTransport, err)
	}
	metricLLMCallsTotal.WithLabelValues(string(tier), "ok").Inc()
	return result, nil
}

// CircuitOpen reports whether the breaker is currently refusing calls,
// for the /readyz surface.
func (c *LLMClient) CircuitOpen() bool {
	return c.breaker.State() == gobreaker.StateOpen
}
