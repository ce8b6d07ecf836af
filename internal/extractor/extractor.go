// Package extractor converts a source PDF into a StructuredDocument by trying
// strategies of decreasing fidelity until one succeeds.
package extractor

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"doc-translator/internal/document"
	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// Strategy 一种抽取方式
type Strategy interface {
	Name() string
	Extract(ctx context.Context, src *SourceDocument) (*document.StructuredDocument, error)
}

// Extractor 按顺序尝试各抽取策略
type Extractor struct {
	strategies []Strategy
}

// New creates an extractor over strategies, tried in order
func New(strategies ...Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

// NewDefault returns the full, no-images, text-only cascade
func NewDefault() *Extractor {
	return New(NewFullStrategy(), NewNoImagesStrategy(), NewTextOnlyStrategy())
}

// Strategies returns the strategy names in the order they are tried
func (e *Extractor) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract opens sourcePath and runs the cascade. It moves to the next strategy
// only when the current one fails or yields no units. When all fail the
// result is an EXTRACTION_FAILED error wrapping the last cause.
func (e *Extractor) Extract(ctx context.Context, sourcePath string) (*document.StructuredDocument, error) {
	src, err := OpenSource(sourcePath)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrExtractionFailed, "extraction failed", sourcePath, err)
	}
	defer src.Close()

	logger.Info("extracting document",
		logger.String("path", src.Path),
		logger.String("mime", src.MIME),
		logger.Int("size", int(src.Size)))

	lastErr := fmt.Errorf("no extraction strategies configured")
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		doc, err := runStrategy(ctx, s, src)
		if err == nil && len(doc.Units) == 0 {
			err = fmt.Errorf("strategy %s produced no units", s.Name())
		}
		if err != nil {
			logger.Warn("extraction strategy failed, trying next",
				logger.String("strategy", s.Name()),
				logger.Err(err))
			lastErr = err
			continue
		}

		doc.Strategy = s.Name()
		doc.Renumber()
		logger.Info("extraction succeeded",
			logger.String("strategy", s.Name()),
			logger.Int("units", len(doc.Units)),
			logger.Int("nonBlank", doc.CountNonBlank()),
			logger.Duration("elapsed", time.Since(start)))
		return doc, nil
	}

	return nil, types.NewAppErrorWithDetails(types.ErrExtractionFailed, "all extraction strategies failed", sourcePath, lastErr)
}

// runStrategy turns a parser panic into an error
func runStrategy(ctx context.Context, s Strategy, src *SourceDocument) (doc *document.StructuredDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("strategy panic", logger.String("strategy", s.Name()), logger.String("stack", string(debug.Stack())))
			doc = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	doc, err = s.Extract(ctx, src)
	if err == nil && doc == nil {
		err = fmt.Errorf("strategy %s returned no document", s.Name())
	}
	return doc, err
}
