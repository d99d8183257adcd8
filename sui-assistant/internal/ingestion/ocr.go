package ingestion

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// ExtractTextWithOCR runs OCR on images or scanned PDFs.
// For PDFs we convert pages to PNGs using pdftoppm (poppler).
func ExtractTextWithOCR(ctx context.Context, path string, langs []string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return runTesseract(path, langs)
	}

	tmpDir, err := os.MkdirTemp("", "vivon-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	// pdftoppm -png input.pdf outprefix
	prefix := filepath.Join(tmpDir, "page")
	if err := exec.CommandContext(ctx, "pdftoppm", "-png", path, prefix).Run(); err != nil {
		return "", fmt.Errorf("pdftoppm convert failed: %w", err)
	}
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", err
	}
	sort.Strings(matches)

	var combined strings.Builder
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		t, err := runTesseract(m, langs)
		if err != nil {
			continue
		}
		combined.WriteString(t)
		combined.WriteString("\n")
	}
	return strings.TrimSpace(combined.String()), nil
}

func runTesseract(imgPath string, langs []string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()
	if len(langs) > 0 {
		if err := client.SetLanguage(langs...); err != nil {
			return "", err
		}
	}
	if err := client.SetImage(imgPath); err != nil {
		return "", err
	}
	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
