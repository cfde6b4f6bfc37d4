package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenRouterEngine struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	// CostPerUnit converts total token units into an estimated dollar cost.
	CostPerUnit float64
	Client      *http.Client
}

func NewOpenRouterEngine(baseURL, apiKey, model, siteURL, appName string) *OpenRouterEngine {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterEngine{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model    string          `json:"model"`
	Messages []openRouterMsg `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate mirrors the Ollama engine's draft-then-revise flow against the
// OpenRouter chat completions API.
func (e *OpenRouterEngine) Generate(ctx context.Context, req Request) (*Result, error) {
	progress := sink(req)

	progress.Step(ctx, 10, "drafting passage")
	draft, draftUsage, err := e.chat(ctx, "draft", []openRouterMsg{
		{Role: "system", Content: writerSystemPrompt},
		{Role: "user", Content: draftPrompt(req)},
	})
	if err != nil {
		return nil, err
	}
	ReportUsage(ctx, draftUsage)

	progress.Step(ctx, 60, "revising passage")
	revised, reviseUsage, err := e.chat(ctx, "revise", []openRouterMsg{
		{Role: "system", Content: writerSystemPrompt},
		{Role: "user", Content: revisePrompt(req, draft)},
	})
	if err != nil {
		return nil, err
	}
	ReportUsage(ctx, reviseUsage)

	content := strings.TrimSpace(revised)
	if content == "" {
		progress.Failed(ctx, "revision produced empty passage")
		return &Result{
			Source:      "openrouter:" + e.Model,
			EditHistory: []string{draft},
			Steps:       []StepUsage{draftUsage, reviseUsage},
		}, nil
	}

	progress.Step(ctx, 90, "finalizing passage")
	return &Result{
		Content:     content,
		Source:      "openrouter:" + e.Model,
		EditHistory: []string{strings.TrimSpace(draft)},
		Steps:       []StepUsage{draftUsage, reviseUsage},
	}, nil
}

func (e *OpenRouterEngine) chat(ctx context.Context, step string, messages []openRouterMsg) (string, StepUsage, error) {
	if e.Client == nil {
		return "", StepUsage{}, errors.New("openrouter: http client is nil")
	}
	if strings.TrimSpace(e.APIKey) == "" {
		return "", StepUsage{}, errors.New("openrouter: api key is required")
	}
	model := strings.TrimSpace(e.Model)
	if model == "" {
		return "", StepUsage{}, errors.New("openrouter: model is required")
	}

	b, err := json.Marshal(openRouterChatReq{Model: model, Stream: false, Messages: messages})
	if err != nil {
		return "", StepUsage{}, err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(e.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", StepUsage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	if e.SiteURL != "" {
		req.Header.Set("HTTP-Referer", e.SiteURL)
	}
	if e.AppName != "" {
		req.Header.Set("X-Title", e.AppName)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", StepUsage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", StepUsage{}, fmt.Errorf("openrouter: %s", msg)
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", StepUsage{}, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", StepUsage{}, errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", StepUsage{}, errors.New("openrouter: empty response")
	}

	usage := StepUsage{
		Operation:       "article_generation",
		Step:            step,
		Model:           model,
		PromptUnits:     decoded.Usage.PromptTokens,
		CompletionUnits: decoded.Usage.CompletionTokens,
		TotalUnits:      decoded.Usage.TotalTokens,
		EstimatedCost:   float64(decoded.Usage.TotalTokens) * e.CostPerUnit,
	}
	return decoded.Choices[0].Message.Content, usage, nil
}
