package extractor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/layout"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/text"

	"doc-translator/internal/document"
	"doc-translator/internal/logger"
)

const (
	StrategyFull      = "full"
	StrategyNoImages  = "no-images"
	StrategyTextOnly  = "text-only"
	wordGapFactor     = 0.15
	fontSizeTolerance = 0.05
)

// layoutStrategy 基于 tabula 的版面分析抽取段落与图片
type layoutStrategy struct {
	name          string
	includeImages bool
}

// NewFullStrategy extracts paragraphs with run formatting plus embedded images
func NewFullStrategy() Strategy {
	return &layoutStrategy{name: StrategyFull, includeImages: true}
}

// NewNoImagesStrategy is the full strategy without image handling
func NewNoImagesStrategy() Strategy {
	return &layoutStrategy{name: StrategyNoImages}
}

func (s *layoutStrategy) Name() string { return s.name }

func (s *layoutStrategy) Extract(ctx context.Context, src *SourceDocument) (*document.StructuredDocument, error) {
	r, err := reader.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer r.Close()

	pageCount, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("read page tree: %w", err)
	}

	doc := document.New(src.Path, s.name)
	detector := layout.NewReadingOrderDetector()

	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageNum := i + 1

		page, err := r.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNum, err)
		}
		frags, err := r.ExtractTextFragments(page)
		if err != nil {
			return nil, fmt.Errorf("page %d text: %w", pageNum, err)
		}

		if len(frags) > 0 {
			width, err := page.Width()
			if err != nil {
				return nil, fmt.Errorf("page %d width: %w", pageNum, err)
			}
			height, err := page.Height()
			if err != nil {
				return nil, fmt.Errorf("page %d height: %w", pageNum, err)
			}
			paras := detector.Detect(frags, width, height).GetParagraphs()
			fonts := pageFonts(r, page)
			for _, u := range unitsFromParagraphs(pageNum, paras.Paragraphs, fonts) {
				doc.Add(u)
			}
		}

		if !s.includeImages {
			continue
		}
		images, err := pageImages(r, page)
		if err != nil {
			return nil, fmt.Errorf("page %d images: %w", pageNum, err)
		}
		for j := range images {
			png, err := images[j].ToPNG()
			if err != nil {
				return nil, fmt.Errorf("page %d image %s: %w", pageNum, images[j].Name, err)
			}
			doc.Add(&document.TextUnit{Kind: document.KindImage, Page: pageNum, Image: png})
		}
		if len(images) > 0 {
			logger.Debug("page images extracted", logger.Int("page", pageNum), logger.Int("count", len(images)))
		}
	}
	return doc, nil
}

// pageFonts maps the page's font resource names to their BaseFont.
// Fragments carry the resource name ("/F1"), not the font itself.
func pageFonts(r *reader.Reader, page *pages.Page) map[string]string {
	fonts := make(map[string]string)
	res, err := page.Resources()
	if err != nil {
		return fonts
	}
	obj := res.Get("Font")
	if obj == nil {
		return fonts
	}
	resolved, err := r.Resolve(obj)
	if err != nil {
		return fonts
	}
	dict, ok := resolved.(core.Dict)
	if !ok {
		return fonts
	}
	for name, ref := range dict {
		fontObj, err := r.Resolve(ref)
		if err != nil {
			continue
		}
		fontDict, ok := fontObj.(core.Dict)
		if !ok {
			continue
		}
		if base, ok := fontDict.GetName("BaseFont"); ok {
			fonts[strings.TrimPrefix(name, "/")] = strings.TrimPrefix(string(base), "/")
		}
	}
	return fonts
}

// baseFont resolves a fragment font name through the page font map
func baseFont(name string, fonts map[string]string) string {
	key := strings.TrimPrefix(name, "/")
	if base, ok := fonts[key]; ok {
		return base
	}
	return key
}

// pageImages returns the images the page actually draws, in drawing order.
// Resource dictionaries may be shared between pages, so the XObject list
// alone is not enough.
func pageImages(r *reader.Reader, page *pages.Page) ([]reader.PageImage, error) {
	images, err := r.ExtractPageImages(page)
	if err != nil || len(images) == 0 {
		return nil, err
	}
	drawn, err := drawnXObjects(page)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]reader.PageImage, len(images))
	for _, img := range images {
		byName[strings.TrimPrefix(img.Name, "/")] = img
	}
	out := make([]reader.PageImage, 0, len(drawn))
	for _, name := range drawn {
		if img, ok := byName[name]; ok {
			out = append(out, img)
		}
	}
	return out, nil
}

// drawnXObjects lists the XObject names invoked with Do, each once
func drawnXObjects(page *pages.Page) ([]string, error) {
	contents, err := page.Contents()
	if err != nil {
		return nil, err
	}
	var names []string
	seen := make(map[string]bool)
	for _, obj := range contents {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		data, err := stream.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode content stream: %w", err)
		}
		ops, err := contentstream.NewParser(data).Parse()
		if err != nil {
			return nil, fmt.Errorf("parse content stream: %w", err)
		}
		for _, op := range ops {
			if op.Operator != "Do" || len(op.Operands) != 1 {
				continue
			}
			n, ok := op.Operands[0].(core.Name)
			if !ok {
				continue
			}
			name := strings.TrimPrefix(string(n), "/")
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// unitsFromParagraphs maps detected paragraphs to units, dropping empty ones
func unitsFromParagraphs(page int, paras []layout.Paragraph, fonts map[string]string) []*document.TextUnit {
	units := make([]*document.TextUnit, 0, len(paras))
	for _, p := range paras {
		runs := runsFromLines(p.Lines, fonts)
		if len(runs) == 0 {
			continue
		}
		u := document.NewParagraph(page, runs...)
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		if p.Style == layout.StyleHeading {
			u.Kind = document.KindHeading
		}
		units = append(units, u)
	}
	return units
}

// runsFromLines groups consecutive fragments sharing font name and size into
// runs. Lines are joined with a single space; a space at a run boundary stays
// on the earlier run. Font names are resolved through fonts first.
func runsFromLines(lines []layout.Line, fonts map[string]string) []document.FormattingRun {
	var runs []document.FormattingRun
	var cur *document.FormattingRun
	var sb strings.Builder
	var curFont string
	var curSize float64
	var lastText string

	flush := func() {
		if cur != nil {
			cur.Text = sb.String()
			runs = append(runs, *cur)
			cur = nil
			sb.Reset()
		}
	}

	for _, line := range lines {
		var prev *text.TextFragment
		for i := range line.Fragments {
			frag := line.Fragments[i]
			if frag.Text == "" {
				continue
			}

			space := false
			if lastText != "" {
				if prev == nil {
					space = true
				} else {
					space = needsSpace(*prev, frag)
				}
				if strings.HasSuffix(lastText, " ") || strings.HasPrefix(frag.Text, " ") {
					space = false
				}
			}

			font := cleanFontName(baseFont(frag.FontName, fonts))
			if cur == nil || font != curFont || !sameSize(frag.FontSize, curSize) {
				if space {
					sb.WriteByte(' ')
					space = false
				}
				flush()
				r := styleFromFont(font, frag.FontSize)
				cur = &r
				curFont, curSize = font, frag.FontSize
			}
			if space {
				sb.WriteByte(' ')
			}
			sb.WriteString(frag.Text)
			lastText = frag.Text
			prev = &line.Fragments[i]
		}
	}
	flush()
	return runs
}

func needsSpace(prev, next text.TextFragment) bool {
	if strings.HasSuffix(prev.Text, " ") || strings.HasPrefix(next.Text, " ") {
		return false
	}
	gap := next.X - (prev.X + prev.Width)
	size := math.Max(prev.FontSize, next.FontSize)
	return gap > size*wordGapFactor
}

func sameSize(a, b float64) bool {
	return math.Abs(a-b) <= fontSizeTolerance
}

// cleanFontName strips the subset tag, e.g. "ABCDEF+Times-Bold" becomes "Times-Bold"
func cleanFontName(name string) string {
	if i := strings.IndexByte(name, '+'); i == 6 {
		return name[i+1:]
	}
	return name
}

// styleFromFont infers bold and italic from the font name
func styleFromFont(font string, size float64) document.FormattingRun {
	var r document.FormattingRun
	if font != "" {
		r.FontName = document.Ptr(font)
	}
	if size > 0 {
		r.FontSize = document.Ptr(math.Round(size*10) / 10)
	}
	lower := strings.ToLower(font)
	if strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy") {
		r.Bold = document.Ptr(true)
	}
	if strings.Contains(lower, "italic") || strings.Contains(lower, "oblique") {
		r.Italic = document.Ptr(true)
	}
	return r
}
