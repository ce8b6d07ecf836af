// Package pipeline runs extraction, translation and rendering in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"doc-translator/internal/document"
	"doc-translator/internal/errlog"
	"doc-translator/internal/extractor"
	"doc-translator/internal/llm"
	"doc-translator/internal/logger"
	"doc-translator/internal/renderer"
	"doc-translator/internal/translator"
	"doc-translator/internal/types"
)

// Phase 流水线阶段
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseExtracting  Phase = "extracting"
	PhaseTranslating Phase = "translating"
	PhaseRendering   Phase = "rendering"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// Status is a snapshot of pipeline progress
type Status struct {
	Phase     Phase
	Processed int
	Total     int
	Message   string
	Error     string
}

// Extractor produces a structured document from a source file
type Extractor interface {
	Extract(ctx context.Context, sourcePath string) (*document.StructuredDocument, error)
}

// Result summarizes a completed run
type Result struct {
	Strategy   string
	Stats      translator.Stats
	OutputPath string
	Elapsed    time.Duration
}

// Components are the stages a Pipeline drives
type Components struct {
	Store     *document.Store
	Extractor Extractor
	Client    llm.Client
	Renderer  renderer.Renderer
	// Progress receives the terminal progress bar; nil disables it
	Progress io.Writer
}

// Pipeline 翻译流水线
type Pipeline struct {
	cfg        *types.Config
	store      *document.Store
	extractor  Extractor
	client     llm.Client
	cache      *llm.CachingClient
	renderer   renderer.Renderer
	translator *translator.Translator
	failures   *errlog.ErrorManager

	mu     sync.RWMutex
	status Status
}

// New wires the default stages for cfg, whose paths must already be resolved
func New(ctx context.Context, cfg *types.Config, progress io.Writer) (*Pipeline, error) {
	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := document.NewOSStore()
	return NewWithComponents(cfg, Components{
		Store:     store,
		Extractor: extractor.NewDefault(),
		Client:    client,
		Renderer:  renderer.NewPDFRenderer(store),
		Progress:  progress,
	}), nil
}

// NewWithComponents builds a pipeline from explicit stages. When cfg names a
// cache path the client is wrapped in a persistent translation cache.
func NewWithComponents(cfg *types.Config, c Components) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		store:     c.Store,
		extractor: c.Extractor,
		client:    c.Client,
		renderer:  c.Renderer,
		status:    Status{Phase: PhaseIdle},
	}
	if cfg.CachePath != "" {
		p.cache = llm.NewCachingClient(c.Client, c.Store.Fs(), cfg.CachePath)
		p.client = p.cache
	}

	opts := []translator.Option{
		translator.WithCheckpointInterval(cfg.CheckpointInterval),
		translator.WithProgressCallback(p.onProgress),
	}
	if c.Progress != nil {
		opts = append(opts, translator.WithProgressWriter(c.Progress))
	}
	p.translator = translator.New(p.client, p.store, opts...)

	if cfg.ErrorLogPath != "" {
		em, err := errlog.NewErrorManager(c.Store.Fs(), cfg.ErrorLogPath)
		if err != nil {
			logger.Warn("error log unavailable", logger.String("path", cfg.ErrorLogPath), logger.Err(err))
		} else {
			p.failures = em
		}
	}
	return p
}

// Run executes the three stages. Extraction, persistence and render failures
// stop the run; per-unit translation failures never do.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{OutputPath: p.cfg.OutputPath}

	// 1. extraction
	p.setPhase(PhaseExtracting, "extracting "+p.cfg.InputPath)
	doc, err := p.extractor.Extract(ctx, p.cfg.InputPath)
	if err != nil {
		return nil, p.fail(errlog.StageExtract, "extraction failed", err, 0)
	}
	result.Strategy = doc.Strategy
	if err := p.store.Save(doc, p.cfg.StructuredPath); err != nil {
		return nil, p.fail(errlog.StagePersist, "failed to save structured document", err, 0)
	}
	logger.Info("structured document saved",
		logger.String("path", p.cfg.StructuredPath),
		logger.String("strategy", doc.Strategy),
		logger.Int("units", len(doc.Units)))

	// 2. translation, starting from the intermediate file on disk
	p.setPhase(PhaseTranslating, "translating")
	doc, err = p.store.Load(p.cfg.StructuredPath)
	if err != nil {
		return nil, p.fail(errlog.StagePersist, "failed to reload structured document",
			types.NewAppErrorWithDetails(types.ErrPersistenceFailed, "failed to reload structured document", p.cfg.StructuredPath, err), 0)
	}
	if p.cache != nil {
		if err := p.cache.Load(); err != nil {
			logger.Warn("translation cache unavailable, continuing without it", logger.Err(err))
		}
	}

	_, stats, err := p.translator.Translate(ctx, doc, p.cfg.TranslatedPath, p.cfg.Model)
	result.Stats = stats
	p.saveCache()
	if err != nil {
		stage := errlog.StageTranslation
		if types.IsCode(err, types.ErrPersistenceFailed) {
			stage = errlog.StagePersist
		}
		return result, p.fail(stage, "translation stopped", err, stats.Passthrough)
	}

	// 3. rendering
	p.setPhase(PhaseRendering, "rendering "+p.cfg.OutputPath)
	if err := p.renderer.Render(ctx, p.cfg.TranslatedPath, p.cfg.OutputPath); err != nil {
		return result, p.fail(errlog.StageRender, "rendering failed", err, stats.Passthrough)
	}

	result.Elapsed = time.Since(start)
	p.recordOutcome(stats.Passthrough)
	p.setPhase(PhaseComplete, "done")
	logger.Info("pipeline completed",
		logger.String("output", p.cfg.OutputPath),
		logger.String("strategy", result.Strategy),
		logger.Int("translated", stats.Translated),
		logger.Int("passthrough", stats.Passthrough),
		logger.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (p *Pipeline) saveCache() {
	if p.cache == nil {
		return
	}
	if err := p.cache.Save(); err != nil {
		logger.Warn("failed to save translation cache", logger.Err(err))
		return
	}
	hits, misses := p.cache.Stats()
	logger.Debug("translation cache saved", logger.Int("hits", hits), logger.Int("misses", misses))
}

// Status returns a snapshot of the current progress
func (p *Pipeline) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Pipeline) setPhase(phase Phase, msg string) {
	p.mu.Lock()
	p.status = Status{Phase: phase, Message: msg}
	p.mu.Unlock()
	logger.Info("pipeline phase", logger.String("phase", string(phase)), logger.String("message", msg))
}

func (p *Pipeline) onProgress(processed, total int, _ float64) {
	p.mu.Lock()
	p.status.Processed = processed
	p.status.Total = total
	p.mu.Unlock()
}

func (p *Pipeline) fail(stage errlog.ErrorStage, msg string, err error, passthrough int) error {
	p.mu.Lock()
	p.status.Phase = PhaseError
	p.status.Message = msg
	p.status.Error = err.Error()
	p.mu.Unlock()
	logger.Error(msg, err, logger.String("stage", string(stage)))

	if p.failures != nil {
		rec := errlog.ErrorRecord{
			Source:      p.cfg.InputPath,
			Stage:       stage,
			ErrorMsg:    err.Error(),
			Passthrough: passthrough,
		}
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			rec.Code = string(appErr.Code)
		}
		if recErr := p.failures.RecordError(rec); recErr != nil {
			logger.Warn("failed to update error log", logger.Err(recErr))
		}
	}
	return err
}

// recordOutcome clears the source from the error log, or keeps it listed
// when some units fell back to their original text.
func (p *Pipeline) recordOutcome(passthrough int) {
	if p.failures == nil {
		return
	}
	var err error
	if passthrough > 0 {
		err = p.failures.RecordError(errlog.ErrorRecord{
			Source:      p.cfg.InputPath,
			Stage:       errlog.StageTranslation,
			Code:        string(types.ErrTranslationUnitFailed),
			ErrorMsg:    fmt.Sprintf("%d units kept their original text", passthrough),
			Passthrough: passthrough,
		})
	} else {
		err = p.failures.RemoveError(p.cfg.InputPath)
	}
	if err != nil {
		logger.Warn("failed to update error log", logger.Err(err))
	}
}
