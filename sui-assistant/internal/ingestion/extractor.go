package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFile is returned for extensions with no extractor.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Extractor turns files into plain text.
type Extractor struct {
	// OCRLanguages are passed to tesseract, e.g. "eng".
	OCRLanguages []string
}

// ExtractText detects file type and returns text via direct extraction or OCR.
func (e Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case ".pdf":
		// try text layer
		text, err := ExtractTextFromPDF(ctx, path)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		//fallback to OCR
		return ExtractTextWithOCR(ctx, path, e.OCRLanguages)
	case ".png", ".jpg", ".jpeg":
		return ExtractTextWithOCR(ctx, path, e.OCRLanguages)
	default:
		return "", ErrUnsupportedFile
	}
}
