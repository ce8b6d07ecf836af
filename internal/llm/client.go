// Package llm is the translation client: a narrow text-in/text-out interface
// over a local Ollama server or an OpenAI-compatible chat endpoint.
//
// Clients never fail the caller. Every problem (timeout, transport error,
// HTTP status, bad payload, empty answer) degrades to a passthrough Response
// carrying the original text and the cause.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"doc-translator/internal/config"
	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	SourceLanguage = "Finnish"
	TargetLanguage = "English"

	// ModelHelper is a smaller model kept for quick manual runs
	ModelHelper = "mistral"

	DefaultTimeout = config.DefaultTimeoutSeconds * time.Second
)

// Outcome 翻译结果类型
type Outcome string

const (
	OutcomeTranslated  Outcome = "translated"
	OutcomePassthrough Outcome = "passthrough"
)

// Response 单次翻译的结果
type Response struct {
	Text    string
	Outcome Outcome
	// Err is the reason for a passthrough; nil for blank input
	Err error
}

// Translated reports whether the backend produced a usable translation
func (r Response) Translated() bool {
	return r.Outcome == OutcomeTranslated
}

// Client translates one unit of text with the given model
type Client interface {
	Translate(ctx context.Context, text, model string) Response
}

// BuildPrompt returns the fixed Finnish to English instruction followed by text
func BuildPrompt(text string) string {
	return fmt.Sprintf("Translate the following text from %s to %s. "+
		"Just give the best translated sentences without quotes. "+
		"Do not give alternatives or other comments.\n\n%s",
		SourceLanguage, TargetLanguage, text)
}

func translated(text string) Response {
	return Response{Text: text, Outcome: OutcomeTranslated}
}

func passthrough(text string, err error) Response {
	return Response{Text: text, Outcome: OutcomePassthrough, Err: err}
}

// finish turns a raw backend answer or error into a Response, logging the
// reason for any passthrough.
func finish(backend, original, answer string, err error, timeout time.Duration) Response {
	if err != nil {
		if isTimeout(err) {
			logger.Warn("translation request timed out, is the backend running?",
				logger.String("backend", backend),
				logger.Duration("timeout", timeout))
			return passthrough(original, types.NewAppErrorWithDetails(types.ErrTranslationUnitFailed,
				"translation timed out", backend, err))
		}
		logger.Warn("translation request failed, keeping original text",
			logger.String("backend", backend),
			logger.Err(err))
		return passthrough(original, types.NewAppErrorWithDetails(types.ErrTranslationUnitFailed,
			"translation request failed", backend, err))
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		logger.Warn("backend returned an empty translation, keeping original text",
			logger.String("backend", backend))
		return passthrough(original, types.NewAppErrorWithDetails(types.ErrTranslationUnitFailed,
			"empty translation", backend, nil))
	}
	return translated(answer)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// New builds the client selected by cfg.Backend
func New(ctx context.Context, cfg *types.Config) (Client, error) {
	switch cfg.Backend {
	case config.BackendOllama, "":
		return NewOllamaClient(OllamaConfig{BaseURL: cfg.Endpoint, Timeout: cfg.Timeout()}), nil
	case config.BackendOpenAI:
		return NewOpenAIClient(ctx, OpenAIConfig{
			BaseURL: cfg.Endpoint,
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			Timeout: cfg.Timeout(),
		})
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "unknown backend", cfg.Backend, nil)
	}
}
