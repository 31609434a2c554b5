// FILE: parse.go
// Package main – robust LLM response parsing.
//
// Three-tier layered parser: strict JSON, then a balanced-brace
// extractor scanning from the tail of the payload, then a keyword
// fallback with a fixed synonym table. Stdlib only: tolerant,
// free-text-salvaging parsing of a chat model's reply isn't something
// any JSON or NLP library in the dependency graph does off the shelf,
// so the tail-scanning brace balancer and keyword table are
// hand-written.
package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// llmVerdict is the wire shape the LLM is asked to emit.
type llmVerdict struct {
	Decision   string  `json:"decision"`
	Confidence float64 `json:"confidence"`
	Entry      string  `json:"entry"`
	StopLoss   string  `json:"stop_loss"`
	TakeProfit string  `json:"take_profit"`
	Reasoning  string  `json:"reasoning"`
}

// ParseLLMResponse runs the three-tier parser and returns a Decision
// skeleton (action/confidence/prices/reasoning); Agent/Regime are filled
// in by the caller.
func ParseLLMResponse(raw string) (Decision, error) {
	if v, ok := tryStrictJSON(raw); ok {
		return verdictToDecision(v), nil
	}
	if v, ok := tryTailBraceExtract(raw); ok {
		return verdictToDecision(v), nil
	}
	if d, ok := tryKeywordFallback(raw); ok {
		return d, nil
	}
	return Decision{}, fmt.Errorf("%w: no JSON or recognizable keyword in response", ErrLLMParse)
}

// tryStrictJSON attempts json.Unmarshal on the entire payload.
func tryStrictJSON(raw string) (llmVerdict, bool) {
	var v llmVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return llmVerdict{}, false
	}
	if v.Decision == "" {
		return llmVerdict{}, false
	}
	return v, true
}

// tryTailBraceExtract scans from the end of the payload, balancing
// braces, and accepts the outermost object that contains both
// "decision" and "confidence" keys.
func tryTailBraceExtract(raw string) (llmVerdict, bool) {
	for end := len(raw); end > 0; end-- {
		if raw[end-1] != '}' {
			continue
		}
		depth := 0
		for start := end - 1; start >= 0; start-- {
			switch raw[start] {
			case '}':
				depth++
			case '{':
				depth--
				if depth == 0 {
					candidate := raw[start:end]
					if strings.Contains(candidate, `"decision"`) && strings.Contains(candidate, `"confidence"`) {
						var v llmVerdict
						if err := json.Unmarshal([]byte(candidate), &v); err == nil && v.Decision != "" {
							return v, true
						}
					}
					start = -1 // stop this inner scan, try an earlier '}'
				}
			}
		}
	}
	return llmVerdict{}, false
}

var keywordSynonyms = map[string]Action{
	"buy": ActionBuy, "compra": ActionBuy, "long": ActionBuy,
	"sell": ActionSell, "venta": ActionSell, "short": ActionSell,
	"hold": ActionHold, "espera": ActionHold, "wait": ActionHold, "neutral": ActionHold,
}

// tryKeywordFallback scans free text for the synonym table in spec
// §4.5.4 item 3 and emits HOLD with confidence 0 if the leading keywords
// tie. It reports false when no keyword appears at all.
func tryKeywordFallback(raw string) (Decision, bool) {
	lower := strings.ToLower(raw)
	counts := map[Action]int{}
	for kw, action := range keywordSynonyms {
		counts[action] += strings.Count(lower, kw)
	}
	best := ActionHold
	bestCount := 0
	tie := false
	for action, n := range counts {
		if n > bestCount {
			best = action
			bestCount = n
			tie = false
		} else if n == bestCount && n > 0 {
			tie = true
		}
	}
	if bestCount == 0 {
		return Decision{}, false
	}
	if tie {
		return Decision{Action: ActionHold, Confidence: 0, Reasoning: "keyword fallback: no dominant signal"}, true
	}
	return Decision{Action: best, Confidence: 0, Reasoning: "keyword fallback"}, true
}

func verdictToDecision(v llmVerdict) Decision {
	action := normalizeAction(v.Decision)
	d := Decision{
		Action:     action,
		Confidence: clamp01(v.Confidence),
		Reasoning:  truncateReasoning(v.Reasoning),
	}
	if action != ActionHold {
		d.EntryPrice = parseDecimalOrZero(v.Entry)
		d.StopLoss = parseDecimalOrZero(v.StopLoss)
		d.TakeProfit = parseDecimalOrZero(v.TakeProfit)
	}
	return d
}

func normalizeAction(s string) Action {
	if a, ok := keywordSynonyms[strings.ToLower(strings.TrimSpace(s))]; ok {
		return a
	}
	return ActionHold
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func parseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

const maxReasoningLen = 600

func truncateReasoning(s string) string {
	if len(s) <= maxReasoningLen {
		return s
	}
	return s[:maxReasoningLen]
}
