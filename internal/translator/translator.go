// Package translator walks a StructuredDocument unit by unit, sends each
// non-blank unit to the translation client, keeps the first run's formatting
// and checkpoints the document to disk as it goes.
package translator

import (
	"context"
	"io"
	"time"

	"doc-translator/internal/config"
	"doc-translator/internal/document"
	"doc-translator/internal/llm"
	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// Checkpointer persists the document; *document.Store satisfies it
type Checkpointer interface {
	Save(doc *document.StructuredDocument, path string) error
}

// Stats summarizes one Translate call
type Stats struct {
	Total       int
	NonEmpty    int
	Translated  int
	Passthrough int
	Checkpoints int
	Elapsed     time.Duration
}

// Translator 段落翻译器
type Translator struct {
	client     llm.Client
	store      Checkpointer
	interval   int
	bar        *ProgressBar
	onProgress ProgressCallback
}

// Option configures a Translator
type Option func(*Translator)

// WithCheckpointInterval saves every n processed units; n <= 0 keeps the default
func WithCheckpointInterval(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.interval = n
		}
	}
}

// WithProgressWriter draws the progress bar on w; nil disables it
func WithProgressWriter(w io.Writer) Option {
	return func(t *Translator) {
		if w == nil {
			t.bar = nil
			return
		}
		t.bar = NewProgressBar(w)
	}
}

// WithProgressCallback registers cb for per-unit progress
func WithProgressCallback(cb ProgressCallback) Option {
	return func(t *Translator) {
		t.onProgress = cb
	}
}

// New creates a translator. Without options there is no progress output and
// checkpoints happen every config.DefaultCheckpointEvery units.
func New(client llm.Client, store Checkpointer, opts ...Option) *Translator {
	t := &Translator{
		client:   client,
		store:    store,
		interval: config.DefaultCheckpointEvery,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate translates doc in place, unit by unit in document order.
//
// Blank units are skipped and left untouched but still count as processed.
// A unit with runs ends up with exactly one run carrying the first run's
// attributes. The document is saved to outputPath whenever the processed
// count reaches a multiple of the checkpoint interval, and once more at the
// end. The returned document is always doc; the error is non-nil only when a
// save fails or ctx is cancelled.
func (t *Translator) Translate(ctx context.Context, doc *document.StructuredDocument, outputPath, model string) (*document.StructuredDocument, Stats, error) {
	start := time.Now()
	stats := Stats{Total: len(doc.Units), NonEmpty: doc.CountNonBlank()}

	logger.Info("starting translation",
		logger.Int("units", stats.Total),
		logger.Int("nonEmpty", stats.NonEmpty),
		logger.String("model", model),
		logger.Int("checkpointInterval", t.interval))
	if t.bar != nil {
		t.bar.Printf("Found %d paragraphs (%d non-empty)", stats.Total, stats.NonEmpty)
	}

	processed := 0
	for _, u := range doc.Units {
		if err := ctx.Err(); err != nil {
			logger.Warn("translation interrupted, saving progress",
				logger.Int("processed", processed),
				logger.Int("total", stats.Total))
			if saveErr := t.checkpoint(doc, outputPath, &stats); saveErr != nil {
				return doc, stats, saveErr
			}
			stats.Elapsed = time.Since(start)
			return doc, stats, err
		}

		if !u.IsBlank() {
			resp := t.client.Translate(ctx, u.Text, model)
			if resp.Translated() {
				stats.Translated++
			} else {
				stats.Passthrough++
				logger.Debug("unit kept original text",
					logger.Int("index", u.Index),
					logger.Err(resp.Err))
			}
			u.ReplaceText(resp.Text)
		}

		processed++
		t.report(processed, stats.Total)

		if processed%t.interval == 0 {
			if err := t.checkpoint(doc, outputPath, &stats); err != nil {
				return doc, stats, err
			}
		}
	}

	if err := t.checkpoint(doc, outputPath, &stats); err != nil {
		return doc, stats, err
	}
	stats.Elapsed = time.Since(start)

	if t.bar != nil {
		t.bar.Printf("Translation completed!")
	}
	logger.Info("translation completed",
		logger.Int("translated", stats.Translated),
		logger.Int("passthrough", stats.Passthrough),
		logger.Int("checkpoints", stats.Checkpoints),
		logger.Duration("elapsed", stats.Elapsed))
	return doc, stats, nil
}

func (t *Translator) report(processed, total int) {
	if t.bar != nil {
		t.bar.Update(processed, total)
	}
	if t.onProgress != nil {
		t.onProgress(processed, total, Percent(processed, total))
	}
}

func (t *Translator) checkpoint(doc *document.StructuredDocument, path string, stats *Stats) error {
	if err := t.store.Save(doc, path); err != nil {
		if t.bar != nil {
			t.bar.Finish()
		}
		logger.Error("failed to save translated document", err, logger.String("path", path))
		if types.IsCode(err, types.ErrPersistenceFailed) {
			return err
		}
		return types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to save translated document", path, err)
	}
	stats.Checkpoints++
	logger.Debug("checkpoint saved", logger.String("path", path), logger.Int("checkpoints", stats.Checkpoints))
	return nil
}
