package ingestion

import (
	"io/fs"
	"path/filepath"
	"strings"
)

var allowedExt = []string{".pdf", ".txt", ".md", ".png", ".jpg", ".jpeg"}

// Supported reports whether the file extension can be extracted.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowedExt {
		if ext == a {
			return true
		}
	}
	return false
}

// LoadLocalFiles walks root and returns every supported file, skipping hidden
// directories.
func LoadLocalFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
