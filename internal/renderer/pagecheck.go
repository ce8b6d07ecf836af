package renderer

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/spf13/afero"

	"doc-translator/internal/logger"
)

// PageCountThreshold 页数差异阈值（15%）
const PageCountThreshold = 0.15

// PageCountResult 页数对比结果
type PageCountResult struct {
	OriginalPages   int     `json:"original_pages"`
	TranslatedPages int     `json:"translated_pages"`
	Difference      int     `json:"difference"`    // 差异页数
	DiffPercent     float64 `json:"diff_percent"`  // 差异百分比
	IsSuspicious    bool    `json:"is_suspicious"` // 差异超过阈值
}

// String formats the result for the console
func (r *PageCountResult) String() string {
	s := fmt.Sprintf("original %d pages, translated %d pages", r.OriginalPages, r.TranslatedPages)
	if r.IsSuspicious {
		s += fmt.Sprintf(" (%.1f%% fewer, over the %.0f%% threshold: content may be missing)",
			r.DiffPercent*100, PageCountThreshold*100)
	}
	return s
}

// PageCount returns the number of pages of the PDF at path
func PageCount(fs afero.Fs, path string, conf *model.Configuration) (int, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return api.PageCount(f, conf)
}

// CheckPageCountDifference flags a translated PDF that lost a large share of
// the original's pages. Extra pages are never suspicious since translations
// reflow text.
func CheckPageCountDifference(fs afero.Fs, originalPath, translatedPath string) (*PageCountResult, error) {
	conf := model.NewDefaultConfiguration()
	originalPages, err := PageCount(fs, originalPath, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to get original PDF page count: %w", err)
	}
	translatedPages, err := PageCount(fs, translatedPath, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to get translated PDF page count: %w", err)
	}

	result := &PageCountResult{
		OriginalPages:   originalPages,
		TranslatedPages: translatedPages,
		Difference:      originalPages - translatedPages,
	}
	if originalPages > 0 {
		result.DiffPercent = float64(result.Difference) / float64(originalPages)
	}
	result.IsSuspicious = result.DiffPercent > PageCountThreshold

	if result.IsSuspicious {
		logger.Warn("suspicious page count difference detected",
			logger.Int("originalPages", originalPages),
			logger.Int("translatedPages", translatedPages),
			logger.Float64("diffPercent", result.DiffPercent*100))
	}
	return result, nil
}
