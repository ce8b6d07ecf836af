package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-translator/internal/document"
	"doc-translator/internal/errlog"
	"doc-translator/internal/llm"
	"doc-translator/internal/renderer"
	"doc-translator/internal/types"
)

type fakeExtractor struct {
	texts []string
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, sourcePath string) (*document.StructuredDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc := document.New(sourcePath, "full")
	doc.Add(&document.TextUnit{Kind: document.KindHeading, Page: 1, Text: "Page 1"})
	for _, t := range f.texts {
		doc.Add(&document.TextUnit{Kind: document.KindParagraph, Page: 1, Text: t})
	}
	doc.Renumber()
	return doc, nil
}

// dictClient translates from a fixed dictionary and passes everything else through
type dictClient struct {
	dict  map[string]string
	calls int
}

func (c *dictClient) Translate(ctx context.Context, text, model string) llm.Response {
	c.calls++
	if out, ok := c.dict[text]; ok {
		return llm.Response{Text: out, Outcome: llm.OutcomeTranslated}
	}
	return llm.Response{Text: text, Outcome: llm.OutcomePassthrough,
		Err: types.NewAppError(types.ErrTranslationUnitFailed, "no answer", nil)}
}

type failingRenderer struct{}

func (failingRenderer) Render(ctx context.Context, structuredPath, outputPath string) error {
	return types.NewAppError(types.ErrRenderFailed, "printer on fire", nil)
}

func testConfig() *types.Config {
	return &types.Config{
		InputPath:          "raw/document.pdf",
		StructuredPath:     "raw/temp.json",
		TranslatedPath:     "raw/translated.json",
		OutputPath:         "raw/translated.pdf",
		Model:              "gemma3:4b",
		CheckpointInterval: 10,
	}
}

func newTestPipeline(cfg *types.Config, fs afero.Fs, ext Extractor, client llm.Client, r renderer.Renderer) *Pipeline {
	store := document.NewStore(fs)
	if r == nil {
		r = renderer.NewPDFRenderer(store)
	}
	return NewWithComponents(cfg, Components{
		Store:     store,
		Extractor: ext,
		Client:    client,
		Renderer:  r,
	})
}

func TestRun_Success(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := &dictClient{dict: map[string]string{
		"Page 1":         "Page 1",
		"Hei maailma":    "Hello world",
		"Toinen kappale": "Second paragraph",
	}}
	p := newTestPipeline(testConfig(), fs, &fakeExtractor{texts: []string{"Hei maailma", "", "Toinen kappale"}}, client, nil)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "full", res.Strategy)
	assert.Equal(t, "raw/translated.pdf", res.OutputPath)
	assert.Equal(t, 4, res.Stats.Total)
	assert.Equal(t, 3, res.Stats.Translated)
	assert.Equal(t, 3, client.calls)

	store := document.NewStore(fs)
	raw, err := store.Load("raw/temp.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Page 1", "Hei maailma", "", "Toinen kappale"}, raw.Texts(), "intermediate keeps the source text")

	translated, err := store.Load("raw/translated.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Page 1", "Hello world", "", "Second paragraph"}, translated.Texts())

	pdf, err := afero.ReadFile(fs, "raw/translated.pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	st := p.Status()
	assert.Equal(t, PhaseComplete, st.Phase)
	assert.Equal(t, 4, st.Processed)
	assert.Equal(t, 4, st.Total)
}

func TestRun_BackendDownStillRenders(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := newTestPipeline(testConfig(), fs, &fakeExtractor{texts: []string{"Hei maailma"}}, &dictClient{}, nil)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Passthrough)

	translated, err := document.NewStore(fs).Load("raw/translated.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Page 1", "Hei maailma"}, translated.Texts())

	exists, _ := afero.Exists(fs, "raw/translated.pdf")
	assert.True(t, exists)
}

func TestRun_ExtractionFailureStopsEarly(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := &dictClient{}
	cause := types.NewAppError(types.ErrExtractionFailed, "all extraction strategies failed", errors.New("not a pdf"))
	p := newTestPipeline(testConfig(), fs, &fakeExtractor{err: cause}, client, nil)

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, types.IsCode(err, types.ErrExtractionFailed))
	assert.Zero(t, client.calls)

	for _, path := range []string{"raw/temp.json", "raw/translated.json", "raw/translated.pdf"} {
		exists, _ := afero.Exists(fs, path)
		assert.False(t, exists, path)
	}

	st := p.Status()
	assert.Equal(t, PhaseError, st.Phase)
	assert.Contains(t, st.Error, "not a pdf")
}

func TestRun_PersistenceFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	client := &dictClient{}
	p := newTestPipeline(testConfig(), fs, &fakeExtractor{texts: []string{"Hei"}}, client, nil)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrPersistenceFailed))
	assert.Zero(t, client.calls)
}

func TestRun_RenderFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	client := &dictClient{dict: map[string]string{"Hei": "Hi"}}
	p := newTestPipeline(testConfig(), fs, &fakeExtractor{texts: []string{"Hei"}}, client, failingRenderer{})

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRenderFailed))
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Stats.Translated)

	// the translated document survives a render failure
	translated, err := document.NewStore(fs).Load("raw/translated.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"Page 1", "Hi"}, translated.Texts())
	assert.Equal(t, PhaseError, p.Status().Phase)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := afero.NewMemMapFs()
	client := &dictClient{}
	p := newTestPipeline(testConfig(), fs, &fakeExtractor{texts: []string{"Hei"}}, client, nil)

	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, client.calls)
}

func TestRun_CacheReusedAcrossRuns(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig()
	cfg.CachePath = "raw/cache.json"
	ext := &fakeExtractor{texts: []string{"Hei maailma"}}

	first := &dictClient{dict: map[string]string{"Page 1": "Page 1", "Hei maailma": "Hello world"}}
	_, err := newTestPipeline(cfg, fs, ext, first, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.calls)

	second := &dictClient{}
	res, err := newTestPipeline(cfg, fs, ext, second, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.calls, "every unit answered from the cache")
	assert.Equal(t, 2, res.Stats.Translated)
}

func TestRun_ErrorLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := testConfig()
	cfg.ErrorLogPath = "raw/errors.json"

	cause := types.NewAppError(types.ErrExtractionFailed, "all extraction strategies failed", nil)
	_, err := newTestPipeline(cfg, fs, &fakeExtractor{err: cause}, &dictClient{}, nil).Run(context.Background())
	require.Error(t, err)

	em, err := errlog.NewErrorManager(fs, cfg.ErrorLogPath)
	require.NoError(t, err)
	rec, ok := em.GetError(cfg.InputPath)
	require.True(t, ok)
	assert.Equal(t, errlog.StageExtract, rec.Stage)
	assert.Equal(t, "EXTRACTION_FAILED", rec.Code)

	// a run where the backend is down succeeds but stays listed
	ext := &fakeExtractor{texts: []string{"Hei"}}
	_, err = newTestPipeline(cfg, fs, ext, &dictClient{}, nil).Run(context.Background())
	require.NoError(t, err)

	em, err = errlog.NewErrorManager(fs, cfg.ErrorLogPath)
	require.NoError(t, err)
	rec, ok = em.GetError(cfg.InputPath)
	require.True(t, ok)
	assert.Equal(t, errlog.StageTranslation, rec.Stage)
	assert.Equal(t, 2, rec.Passthrough)
	assert.Equal(t, 1, rec.RetryCount)

	// a clean run clears the entry
	client := &dictClient{dict: map[string]string{"Page 1": "Page 1", "Hei": "Hi"}}
	_, err = newTestPipeline(cfg, fs, ext, client, nil).Run(context.Background())
	require.NoError(t, err)

	em, err = errlog.NewErrorManager(fs, cfg.ErrorLogPath)
	require.NoError(t, err)
	assert.Empty(t, em.ListErrors())
}
