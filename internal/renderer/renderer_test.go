package renderer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-translator/internal/document"
	"doc-translator/internal/types"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 100, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sampleDoc(t *testing.T) *document.StructuredDocument {
	doc := document.New("raw/document.pdf", "full")
	doc.Add(&document.TextUnit{Kind: document.KindHeading, Page: 1, Text: "Introduction"})
	doc.Add(document.NewParagraph(1,
		document.FormattingRun{Text: "Bold start, ", Bold: document.Ptr(true), FontName: document.Ptr("Times-Bold"), FontSize: document.Ptr(12.0)},
		document.FormattingRun{Text: "italic middle ", Italic: document.Ptr(true), Color: &document.RGB{R: 200}},
		document.FormattingRun{Text: "and underlined end.", Underline: document.Ptr(true), FontName: document.Ptr("CourierNew")},
	))
	doc.Add(&document.TextUnit{Kind: document.KindParagraph, Page: 1, Text: ""})
	doc.Add(&document.TextUnit{Kind: document.KindImage, Page: 1, Image: testPNG(t)})
	doc.Add(&document.TextUnit{Kind: document.KindHeading, Page: 2, Text: "Page 2"})
	doc.Add(&document.TextUnit{Kind: document.KindParagraph, Page: 2, Text: "Käännös valmis ✓ Ωmega"})
	return doc
}

func TestRender_WritesValidPDF(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := document.NewStore(fs)
	require.NoError(t, store.Save(sampleDoc(t), "raw/translated.json"))

	r := NewPDFRenderer(store)
	require.NoError(t, r.Render(context.Background(), "raw/translated.json", "raw/translated.pdf"))

	data, err := afero.ReadFile(fs, "raw/translated.pdf")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	pages, err := api.PageCount(bytes.NewReader(data), r.conf)
	require.NoError(t, err)
	assert.Equal(t, 2, pages, "a page break per source page")

	exists, _ := afero.Exists(fs, "raw/translated.pdf.tmp")
	assert.False(t, exists)
}

func TestRenderDocument_EmptyDocument(t *testing.T) {
	r := NewPDFRenderer(document.NewStore(afero.NewMemMapFs()))
	data, err := r.RenderDocument(context.Background(), document.New("x.pdf", "full"))
	require.NoError(t, err)
	require.NoError(t, api.Validate(bytes.NewReader(data), r.conf))
}

func TestRenderDocument_UnitsWithoutPages(t *testing.T) {
	doc := document.New("x.pdf", "text-only")
	for i := 0; i < 3; i++ {
		doc.Add(&document.TextUnit{Kind: document.KindParagraph, Text: "rivi"})
	}
	r := NewPDFRenderer(document.NewStore(afero.NewMemMapFs()))
	data, err := r.RenderDocument(context.Background(), doc)
	require.NoError(t, err)

	pages, err := api.PageCount(bytes.NewReader(data), r.conf)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestRenderDocument_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewPDFRenderer(document.NewStore(afero.NewMemMapFs()))
	_, err := r.RenderDocument(ctx, sampleDoc(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender_MissingInput(t *testing.T) {
	r := NewPDFRenderer(document.NewStore(afero.NewMemMapFs()))
	err := r.Render(context.Background(), "raw/missing.json", "raw/out.pdf")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRenderFailed))
	assert.True(t, types.IsTerminal(err))
}

func TestRender_UnwritableOutput(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, document.NewStore(base).Save(sampleDoc(t), "raw/translated.json"))

	r := NewPDFRenderer(document.NewStore(afero.NewReadOnlyFs(base)), WithValidation(false))
	err := r.Render(context.Background(), "raw/translated.json", "out/translated.pdf")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrRenderFailed))
}

func TestFontFamily(t *testing.T) {
	tests := map[string]string{
		"Times-Roman":     "Times",
		"TimesNewRomanPS": "Times",
		"DejaVuSerif":     "Times",
		"DejaVuSans":      "Helvetica",
		"Arial-BoldMT":    "Helvetica",
		"Courier":         "Courier",
		"FiraMono":        "Courier",
		"Georgia-Italic":  "Times",
	}
	for in, want := range tests {
		assert.Equal(t, want, fontFamily(&in), in)
	}
	assert.Equal(t, "Helvetica", fontFamily(nil))
}

func TestFontStyleAndSize(t *testing.T) {
	assert.Equal(t, "", fontStyle(document.FormattingRun{}))
	assert.Equal(t, "", fontStyle(document.FormattingRun{Bold: document.Ptr(false)}))
	assert.Equal(t, "BIU", fontStyle(document.FormattingRun{
		Bold: document.Ptr(true), Italic: document.Ptr(true), Underline: document.Ptr(true),
	}))

	assert.Equal(t, defaultFontSize, fontSize(nil))
	assert.Equal(t, defaultFontSize, fontSize(document.Ptr(0.0)))
	assert.Equal(t, minFontSize, fontSize(document.Ptr(2.0)))
	assert.Equal(t, maxFontSize, fontSize(document.Ptr(300.0)))
	assert.Equal(t, 12.5, fontSize(document.Ptr(12.5)))
}

func TestEncode(t *testing.T) {
	enc := newEncoder()
	assert.Equal(t, "K\xe4\xe4nn\xf6s", encode(enc, "Käännös"))
	assert.Equal(t, "\x80", encode(enc, "€"))
	assert.Equal(t, "ok \x1a", encode(enc, "ok ✓"), "unsupported runes become the SUB byte")
	assert.Equal(t, "a\x1ab", encode(enc, "a\xffb"))
}
