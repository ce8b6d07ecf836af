package extractor

import (
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const mimePDF = "application/pdf"

// SourceDocument 源文档句柄
// The file stays open until Close so strategies that take an io.ReaderAt can
// share it; strategies backed by path-based parsers use Path.
type SourceDocument struct {
	Path string
	MIME string
	Size int64

	file *os.File
}

// OpenSource opens path, records its size and sniffs its content type.
// A non-PDF type is only logged; the strategies decide whether they can cope.
func OpenSource(path string) (*SourceDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "cannot open source document", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "cannot stat source document", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "source document is a directory", path, nil)
	}

	mime, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "cannot read source document", path, err)
	}
	if !mime.Is(mimePDF) {
		logger.Warn("source does not look like a PDF",
			logger.String("path", path),
			logger.String("mime", mime.String()))
	}

	return &SourceDocument{
		Path: path,
		MIME: mime.String(),
		Size: info.Size(),
		file: f,
	}, nil
}

// ReadAt reads from the underlying file
func (s *SourceDocument) ReadAt(p []byte, off int64) (int, error) {
	if s.file == nil {
		return 0, fmt.Errorf("source %s is closed", s.Path)
	}
	return s.file.ReadAt(p, off)
}

// IsPDF reports whether the sniffed content type is PDF
func (s *SourceDocument) IsPDF() bool {
	return s.MIME == mimePDF
}

// Close releases the file handle; safe to call twice
func (s *SourceDocument) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
