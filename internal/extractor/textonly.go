package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"doc-translator/internal/document"
	"doc-translator/internal/logger"
)

// textOnlyStrategy 纯文本抽取，作为最后的兜底
type textOnlyStrategy struct{}

// NewTextOnlyStrategy emits a "Page N" heading per non-empty page followed by
// one paragraph per non-blank line. Units carry no formatting runs.
func NewTextOnlyStrategy() Strategy {
	return textOnlyStrategy{}
}

func (textOnlyStrategy) Name() string { return StrategyTextOnly }

func (textOnlyStrategy) Extract(ctx context.Context, src *SourceDocument) (*document.StructuredDocument, error) {
	r, err := pdf.NewReader(src, src.Size)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	texts := make([]string, total)
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// one unreadable page should not sink the fallback
			logger.Warn("failed to read page text", logger.Int("page", n), logger.Err(err))
			continue
		}
		texts[n-1] = content
	}

	doc := document.New(src.Path, StrategyTextOnly)
	for _, u := range unitsFromPageTexts(texts) {
		doc.Add(u)
	}
	return doc, nil
}

// unitsFromPageTexts builds units from per-page plain text; pages[i] is page i+1
func unitsFromPageTexts(pages []string) []*document.TextUnit {
	var units []*document.TextUnit
	for i, content := range pages {
		if strings.TrimSpace(content) == "" {
			continue
		}
		pageNum := i + 1
		units = append(units, &document.TextUnit{
			Kind: document.KindHeading,
			Page: pageNum,
			Text: fmt.Sprintf("Page %d", pageNum),
		})
		for _, line := range strings.Split(content, "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			units = append(units, &document.TextUnit{Kind: document.KindParagraph, Page: pageNum, Text: line})
		}
	}
	return units
}
