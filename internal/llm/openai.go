package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"doc-translator/internal/config"
	"doc-translator/internal/logger"
)

// OpenAIConfig holds settings for an OpenAI-compatible chat endpoint
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIClient 使用 eino 的 OpenAI 聊天模型进行翻译
type OpenAIClient struct {
	chat    model.BaseChatModel
	timeout time.Duration
}

// NewOpenAIClient creates an eino chat model for cfg
func NewOpenAIClient(ctx context.Context, cfg OpenAIConfig) (*OpenAIClient, error) {
	chatConfig := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		chatConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if chatConfig.Model == "" {
		chatConfig.Model = config.DefaultModel
	}

	chat, err := openai.NewChatModel(ctx, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newOpenAIClient(chat, cfg.Timeout), nil
}

func newOpenAIClient(chat model.BaseChatModel, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAIClient{chat: chat, timeout: timeout}
}

// Translate sends the prompt as a single user message. Single attempt.
func (c *OpenAIClient) Translate(ctx context.Context, text, modelName string) Response {
	if strings.TrimSpace(text) == "" {
		return passthrough(text, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var opts []model.Option
	if modelName != "" {
		opts = append(opts, model.WithModel(modelName))
	}

	start := time.Now()
	msg, err := c.chat.Generate(ctx, []*schema.Message{schema.UserMessage(BuildPrompt(text))}, opts...)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	var answer string
	if err == nil {
		if msg == nil {
			err = fmt.Errorf("chat model returned no message")
		} else {
			answer = msg.Content
			logger.Debug("chat completion received",
				logger.String("model", modelName),
				logger.Duration("elapsed", time.Since(start)))
		}
	}
	return finish("openai", text, answer, err, c.timeout)
}
