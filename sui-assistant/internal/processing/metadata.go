package processing

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Sources a document can come from.
const (
	SourceLocal  = "local"
	SourceGDrive = "gdrive"
	SourceSample = "sample"
)

type Metadata struct {
	Path       string
	Source     string // "local", "gdrive" or "sample"
	ImportedAt time.Time
	Title      string
	Category   string
	Collection string
}

var (
	titleRe   = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	headingRe = regexp.MustCompile(`(?m)^#+\s+(.+)$`)
)

// ExtractTitle returns the first level-one markdown heading, or "Untitled".
func ExtractTitle(content string) string {
	if m := titleRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return "Untitled"
}

// ExtractCategory returns the first directory of a relative path, e.g.
// "concepts/objects.md" is in "concepts". Top-level files are "General".
func ExtractCategory(relPath string) string {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) > 1 && parts[0] != "" && parts[0] != "." {
		return parts[0]
	}
	return "General"
}

// ExtractSection returns the first heading inside a chunk, falling back to title.
func ExtractSection(chunk, title string) string {
	if m := headingRe.FindStringSubmatch(chunk); m != nil {
		return strings.TrimSpace(m[1])
	}
	return title
}
