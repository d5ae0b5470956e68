package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	// Resumes longer than this are padding, not signal. Extraction truncates
	// at the cap instead of failing.
	maxExtractPages = 6
	maxExtractChars = 25000
)

// Extractor pulls plain text out of an uploaded resume document.
type Extractor interface {
	// Extract reads the artifact behind fileRef and returns its text. The
	// declared filename decides the parser. Format and empty-text failures
	// are deterministic; artifact reads are the only retryable errors.
	Extract(ctx context.Context, fileRef, filename string) (string, error)
}

type documentExtractor struct {
	store  ArtifactStore
	logger *zap.Logger
}

func NewDocumentExtractor(store ArtifactStore, logger *zap.Logger) Extractor {
	return &documentExtractor{store: store, logger: logger}
}

func (e *documentExtractor) Extract(ctx context.Context, fileRef, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf", ".docx":
	case ".doc":
		return "", ErrLegacyDocFormat
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := e.store.Get(fileRef)
	if err != nil {
		// Storage reads can fail transiently (network-backed stores).
		return "", Transientf("read resume artifact: %w", err)
	}

	var text string
	switch ext {
	case ".pdf":
		text, err = e.extractPDF(data)
	case ".docx":
		text, err = e.extractDOCX(data)
	}
	if err != nil {
		return "", err
	}

	text = truncateText(text, maxExtractChars)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyExtraction
	}

	e.logger.Debug("extracted resume text",
		zap.String("file_ref", fileRef),
		zap.Int("chars", len(text)),
	)

	return text, nil
}

func (e *documentExtractor) extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var textBuilder strings.Builder
	totalPage := reader.NumPage()
	if totalPage > maxExtractPages {
		totalPage = maxExtractPages
	}

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			e.logger.Warn("skipping unreadable pdf page", zap.Int("page", pageIndex), zap.Error(err))
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")

		if textBuilder.Len() >= maxExtractChars {
			break
		}
	}

	return textBuilder.String(), nil
}

func (e *documentExtractor) extractDOCX(data []byte) (string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse DOCX: %w", err)
	}
	return text, nil
}

// truncateText caps text at limit characters without splitting a rune.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
