package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type OllamaEngine struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaEngine(baseURL, model string) *OllamaEngine {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaEngine{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResp struct {
	Message         ollamaMsg `json:"message"`
	PromptEvalCount int       `json:"prompt_eval_count"`
	EvalCount       int       `json:"eval_count"`
	Error           string    `json:"error,omitempty"`
}

// Generate produces a reading passage in two chat rounds: a draft from the
// request inputs, then a revision pass that tightens it to the target level.
// Each round reports its token cost through the usage hook.
func (e *OllamaEngine) Generate(ctx context.Context, req Request) (*Result, error) {
	progress := sink(req)

	progress.Step(ctx, 10, "drafting passage")
	draft, draftUsage, err := e.chat(ctx, "draft", []ollamaMsg{
		{Role: "system", Content: writerSystemPrompt},
		{Role: "user", Content: draftPrompt(req)},
	})
	if err != nil {
		return nil, err
	}
	ReportUsage(ctx, draftUsage)

	progress.Step(ctx, 60, "revising passage")
	revised, reviseUsage, err := e.chat(ctx, "revise", []ollamaMsg{
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
			Source:      "ollama:" + e.Model,
			EditHistory: []string{draft},
			Steps:       []StepUsage{draftUsage, reviseUsage},
		}, nil
	}

	progress.Step(ctx, 90, "finalizing passage")
	return &Result{
		Content:     content,
		Source:      "ollama:" + e.Model,
		EditHistory: []string{strings.TrimSpace(draft)},
		Steps:       []StepUsage{draftUsage, reviseUsage},
	}, nil
}

func (e *OllamaEngine) chat(ctx context.Context, step string, messages []ollamaMsg) (string, StepUsage, error) {
	if e.Client == nil {
		return "", StepUsage{}, errors.New("ollama: http client is nil")
	}

	b, err := json.Marshal(ollamaChatReq{Model: e.Model, Stream: false, Messages: messages})
	if err != nil {
		return "", StepUsage{}, err
	}

	url := fmt.Sprintf("%s/api/chat", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", StepUsage{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", StepUsage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", StepUsage{}, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", StepUsage{}, err
	}
	if decoded.Error != "" {
		return "", StepUsage{}, errors.New(decoded.Error)
	}

	usage := StepUsage{
		Operation:       "article_generation",
		Step:            step,
		Model:           e.Model,
		PromptUnits:     decoded.PromptEvalCount,
		CompletionUnits: decoded.EvalCount,
		TotalUnits:      decoded.PromptEvalCount + decoded.EvalCount,
		// Local inference, no billable cost.
		EstimatedCost: 0,
	}
	return decoded.Message.Content, usage, nil
}
