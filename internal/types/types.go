// Package types defines the configuration and error types shared by the
// document translator packages.
package types

import (
	"errors"
	"time"
)

// Config 翻译流水线配置
// All paths are resolved against WorkDir by the config package before the
// pipeline sees them.
type Config struct {
	WorkDir        string `json:"work_dir"`
	InputPath      string `json:"input_path"`      // 源 PDF
	StructuredPath string `json:"structured_path"` // 抽取后的中间结构化文档
	TranslatedPath string `json:"translated_path"` // 翻译中的结构化文档，检查点覆盖写入
	OutputPath     string `json:"output_path"`     // 最终渲染的 PDF

	Backend        string `json:"backend"` // "ollama" 或 "openai"
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key,omitempty"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	CheckpointInterval int    `json:"checkpoint_interval"`
	CachePath          string `json:"cache_path,omitempty"` // 空值表示不启用翻译缓存
	ErrorLogPath       string `json:"error_log,omitempty"`  // 失败记录，空值表示不记录

	LogFile  string `json:"log_file"`
	LogLevel string `json:"log_level"`
}

// Timeout returns the per-request backend timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	// ErrExtractionFailed means every extraction strategy failed; terminal
	ErrExtractionFailed ErrorCode = "EXTRACTION_FAILED"
	// ErrTranslationUnitFailed means one unit's backend call failed; recovered by passthrough
	ErrTranslationUnitFailed ErrorCode = "TRANSLATION_UNIT_FAILED"
	// ErrPersistenceFailed means a checkpoint or save could not be written; terminal
	ErrPersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	// ErrRenderFailed means the final PDF could not be produced; terminal
	ErrRenderFailed ErrorCode = "RENDER_FAILED"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// IsCode reports whether any AppError in err's chain carries code
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// IsTerminal reports whether err should stop the pipeline
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code != ErrTranslationUnitFailed
	}
	return true
}
