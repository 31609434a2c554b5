package main

import (
	"strings"
	"testing"
)

func TestParseLLMResponseStrictJSON(t *testing.T) {
	raw := `{"decision":"buy","confidence":0.8,"entry":"100.5","stop_loss":"98","take_profit":"105","reasoning":"trend continuation"}`
	d, err := ParseLLMResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionBuy || d.Confidence != 0.8 {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.EntryPrice.String() != "100.5" {
		t.Fatalf("expected entry 100.5, got %s", d.EntryPrice)
	}
}

func TestParseLLMResponseTailBraceExtract(t *testing.T) {
	raw := "Here is my analysis of the market conditions...\n" +
		`some preamble { not json ` +
		`{"decision":"sell","confidence":0.6,"entry":"50","stop_loss":"52","take_profit":"45","reasoning":"reversal"}`
	d, err := ParseLLMResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionSell {
		t.Fatalf("expected sell from embedded JSON, got %+v", d)
	}
}

func TestParseLLMResponseKeywordFallback(t *testing.T) {
	d, err := ParseLLMResponse("I would recommend a strong BUY here given the momentum.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionBuy || d.Confidence != 0 {
		t.Fatalf("expected keyword-fallback buy with zero confidence, got %+v", d)
	}
}

func TestParseLLMResponseKeywordTieGoesToHold(t *testing.T) {
	d, err := ParseLLMResponse("buy or sell, hard to say")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionHold {
		t.Fatalf("a tie between opposing keywords must fall back to HOLD, got %+v", d)
	}
}

func TestParseLLMResponseNoSignalErrors(t *testing.T) {
	_, err := ParseLLMResponse("")
	if err == nil {
		t.Fatalf("expected an error for a payload with no JSON and no keywords")
	}
}

func TestClamp01Bounds(t *testing.T) {
	if clamp01(-1) != 0 || clamp01(2) != 1 || clamp01(0.5) != 0.5 {
		t.Fatalf("clamp01 failed to bound its input")
	}
}

func TestTruncateReasoningRespectsLimit(t *testing.T) {
	long := strings.Repeat("a", maxReasoningLen+100)
	got := truncateReasoning(long)
	if len(got) != maxReasoningLen {
		t.Fatalf("expected truncation to %d chars, got %d", maxReasoningLen, len(got))
	}
}
