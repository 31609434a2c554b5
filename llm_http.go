// FILE: llm_http.go
// Package main – resty-based LLM provider transport.
//
// A single REST provider adapter serves both the fast and the deep
// model tiers: both speak the same OpenAI-shaped chat-completions wire
// format, so only the model name passed per call differs.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type HTTPLLMProvider struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPLLMProvider(baseURL, apiKey string) *HTTPLLMProvider {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(30 * time.Second)
	return &HTTPLLMProvider{client: c, baseURL: baseURL}
}

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *HTTPLLMProvider) Chat(ctx context.Context, tier LLMTier, model, prompt string, jsonResponseHint bool) (string, error) {
	body := chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if jsonResponseHint {
		body.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	var out chatCompletionResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("llm transport: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("llm transport: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("llm transport: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}
