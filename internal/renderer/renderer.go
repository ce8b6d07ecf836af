// Package renderer turns a persisted StructuredDocument into a PDF.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"doc-translator/internal/document"
	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	margin          = 56.0 // pt, about 2 cm
	defaultFontSize = 11.0
	headingFontSize = 16.0
	minFontSize     = 6.0
	maxFontSize     = 72.0
	lineFactor      = 1.25
	paragraphGap    = 6.0
)

// Renderer produces the final document from a structured document on disk
type Renderer interface {
	Render(ctx context.Context, structuredPath, outputPath string) error
}

// PDFRenderer 使用 gofpdf 渲染 PDF
// Core fonts only, so text is transcoded to Windows-1252 and runes outside it
// are replaced.
type PDFRenderer struct {
	store    *document.Store
	conf     *model.Configuration
	validate bool
}

// Option configures a PDFRenderer
type Option func(*PDFRenderer)

// WithValidation toggles pdfcpu validation of the produced file
func WithValidation(enabled bool) Option {
	return func(r *PDFRenderer) {
		r.validate = enabled
	}
}

// NewPDFRenderer reads and writes through store's filesystem
func NewPDFRenderer(store *document.Store, opts ...Option) *PDFRenderer {
	r := &PDFRenderer{
		store:    store,
		conf:     model.NewDefaultConfiguration(),
		validate: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render loads the document at structuredPath and writes a PDF to outputPath.
// Every failure is a RENDER_FAILED error.
func (r *PDFRenderer) Render(ctx context.Context, structuredPath, outputPath string) error {
	doc, err := r.store.Load(structuredPath)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrRenderFailed, "failed to load structured document", structuredPath, err)
	}

	data, err := r.RenderDocument(ctx, doc)
	if err != nil {
		return err
	}

	if r.validate {
		if err := api.Validate(bytes.NewReader(data), r.conf); err != nil {
			return types.NewAppErrorWithDetails(types.ErrRenderFailed, "generated PDF is invalid", outputPath, err)
		}
	}

	if err := r.write(outputPath, data); err != nil {
		return types.NewAppErrorWithDetails(types.ErrRenderFailed, "failed to write PDF", outputPath, err)
	}

	logger.Info("document rendered",
		logger.String("path", outputPath),
		logger.Int("units", len(doc.Units)),
		logger.Int("bytes", len(data)))
	return nil
}

func (r *PDFRenderer) write(path string, data []byte) error {
	fs := r.store.Fs()
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0644); err != nil {
		fs.Remove(tmp)
		return err
	}
	if err := fs.Rename(tmp, path); err != nil {
		fs.Remove(tmp)
		return err
	}
	return nil
}

// RenderDocument lays out doc and returns the PDF bytes
func (r *PDFRenderer) RenderDocument(ctx context.Context, doc *document.StructuredDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetCreator("doc-translator", true)
	if title := documentTitle(doc); title != "" {
		pdf.SetTitle(title, true)
	}
	pdf.AddPage()

	enc := newEncoder()
	page := 0
	for _, u := range doc.Units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if u.Page > 0 {
			if page > 0 && u.Page != page {
				pdf.AddPage()
			}
			page = u.Page
		}

		switch u.Kind {
		case document.KindImage:
			renderImage(pdf, u)
		case document.KindHeading:
			renderHeading(pdf, enc, u)
		default:
			renderParagraph(pdf, enc, u)
		}
		if err := pdf.Error(); err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrRenderFailed, "failed to lay out unit",
				fmt.Sprintf("unit %d", u.Index), err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrRenderFailed, "failed to produce PDF", doc.Source, err)
	}
	return buf.Bytes(), nil
}

func documentTitle(doc *document.StructuredDocument) string {
	if doc.Title != "" {
		return doc.Title
	}
	if doc.Source == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(doc.Source), filepath.Ext(doc.Source))
}

func renderHeading(pdf *gofpdf.Fpdf, enc *encoding.Encoder, u *document.TextUnit) {
	family := "Helvetica"
	if len(u.Runs) > 0 {
		family = fontFamily(u.Runs[0].FontName)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(family, "B", headingFontSize)
	pdf.MultiCell(0, headingFontSize*lineFactor, encode(enc, u.Text), "", "L", false)
	pdf.Ln(paragraphGap)
}

func renderParagraph(pdf *gofpdf.Fpdf, enc *encoding.Encoder, u *document.TextUnit) {
	if len(u.Runs) == 0 {
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", defaultFontSize)
		pdf.MultiCell(0, defaultFontSize*lineFactor, encode(enc, u.Text), "", "L", false)
		pdf.Ln(paragraphGap)
		return
	}

	lineHeight := 0.0
	for _, run := range u.Runs {
		if h := fontSize(run.FontSize) * lineFactor; h > lineHeight {
			lineHeight = h
		}
	}
	for _, run := range u.Runs {
		size := fontSize(run.FontSize)
		pdf.SetFont(fontFamily(run.FontName), fontStyle(run), size)
		if run.Color != nil {
			pdf.SetTextColor(int(run.Color.R), int(run.Color.G), int(run.Color.B))
		} else {
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.Write(lineHeight, encode(enc, run.Text))
	}
	pdf.Ln(lineHeight + paragraphGap)
}

func renderImage(pdf *gofpdf.Fpdf, u *document.TextUnit) {
	if len(u.Image) == 0 {
		return
	}
	name := fmt.Sprintf("unit-%d", u.Index)
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(u.Image))
	if info == nil || pdf.Error() != nil {
		return
	}

	pageW, pageH := pdf.GetPageSize()
	maxW := pageW - 2*margin
	maxH := pageH - 2*margin
	w, h := info.Width(), info.Height()
	if w <= 0 || h <= 0 {
		return
	}
	scale := 1.0
	if w > maxW {
		scale = maxW / w
	}
	if h*scale > maxH {
		scale = maxH / h
	}
	pdf.ImageOptions(name, margin, 0, w*scale, h*scale, true, opts, 0, "")
	pdf.Ln(paragraphGap)
}

func fontSize(p *float64) float64 {
	if p == nil || *p <= 0 {
		return defaultFontSize
	}
	return min(max(*p, minFontSize), maxFontSize)
}

func fontStyle(run document.FormattingRun) string {
	var style string
	if run.Bold != nil && *run.Bold {
		style += "B"
	}
	if run.Italic != nil && *run.Italic {
		style += "I"
	}
	if run.Underline != nil && *run.Underline {
		style += "U"
	}
	return style
}

// fontFamily maps a source font name onto a core PDF family
func fontFamily(name *string) string {
	if name == nil {
		return "Helvetica"
	}
	lower := strings.ToLower(*name)
	switch {
	case strings.Contains(lower, "courier"), strings.Contains(lower, "mono"), strings.Contains(lower, "consol"):
		return "Courier"
	case strings.Contains(lower, "times"), strings.Contains(lower, "serif") && !strings.Contains(lower, "sans"),
		strings.Contains(lower, "georgia"), strings.Contains(lower, "garamond"), strings.Contains(lower, "cambria"):
		return "Times"
	default:
		return "Helvetica"
	}
}

func newEncoder() *encoding.Encoder {
	return encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
}

// encode converts UTF-8 text to Windows-1252 for the core fonts
func encode(enc *encoding.Encoder, s string) string {
	out, err := enc.String(s)
	if err != nil {
		// ReplaceUnsupported only fails on invalid UTF-8
		out, _ = enc.String(strings.ToValidUTF8(s, "?"))
	}
	return out
}
