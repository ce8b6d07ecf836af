package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"doc-translator/internal/config"
	"doc-translator/internal/logger"
)

// OllamaConfig holds connection settings for an Ollama server
type OllamaConfig struct {
	BaseURL string
	Timeout time.Duration
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// OllamaClient 通过 /api/generate 调用本地 Ollama 模型
type OllamaClient struct {
	client  *resty.Client
	timeout time.Duration
}

// NewOllamaClient creates a client for the server at cfg.BaseURL
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultOllamaEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &OllamaClient{client: client, timeout: timeout}
}

// Translate sends one non-streaming generate request. Single attempt.
func (c *OllamaClient) Translate(ctx context.Context, text, model string) Response {
	if strings.TrimSpace(text) == "" {
		return passthrough(text, nil)
	}
	if model == "" {
		model = config.DefaultModel
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	answer, err := c.generate(ctx, model, BuildPrompt(text))
	return finish("ollama", text, answer, err, c.timeout)
}

func (c *OllamaClient) generate(ctx context.Context, model, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(generateRequest{Model: model, Prompt: prompt, Stream: false}).
		Post("/api/generate")
	if err != nil {
		return "", err
	}

	logger.Debug("ollama response received",
		logger.Int("status", resp.StatusCode()),
		logger.String("model", model),
		logger.Duration("elapsed", time.Since(start)))

	if resp.IsError() {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 200))
	}

	var out generateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("failed to parse ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
