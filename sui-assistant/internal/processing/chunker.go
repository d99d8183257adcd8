package processing

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Markdown chunking defaults tuned for long technical documentation.
const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 400
)

// MarkdownSeparators are tried in order, from major sections down to words.
var MarkdownSeparators = []string{"\n## ", "\n### ", "\n#### ", "\n\n", "\n", " "}

// ChunkText splits into paragraph chunks and limits size.
func ChunkText(text string) []string {
	re := regexp.MustCompile(`\n{2,}`)
	paras := re.Split(text, -1)
	var out []string
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// further split very long paragraphs into ~1000-char chunks with overlap
		out = append(out, splitLong(p, 1000, 200)...)
	}
	return out
}

// Splitter recursively splits text on a ranked list of separators, merging
// neighbouring pieces into chunks of at most ChunkSize bytes that share up to
// ChunkOverlap bytes with the previous chunk.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewMarkdownSplitter returns a splitter that prefers markdown heading boundaries.
func NewMarkdownSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Splitter{ChunkSize: size, ChunkOverlap: overlap, Separators: MarkdownSeparators}
}

// Split returns the chunks of text. Empty input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}
	if sep == "" {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return splitLong(trimmed, s.ChunkSize, s.ChunkOverlap)
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, sep) {
		if len(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		final = append(final, s.split(piece, rest)...)
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

func (s *Splitter) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	for _, p := range pieces {
		if total+len(p) > s.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for len(current) > 0 && (total > s.ChunkOverlap || total+len(p) > s.ChunkSize) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += len(p)
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeepSeparator splits on sep and keeps sep at the start of each
// following piece, so headings stay attached to their section.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitLong cuts s into windows of at most max bytes with overlap bytes
// shared between neighbours. Cut points never fall inside a rune.
func splitLong(s string, max, overlap int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var res []string
	for start := 0; start < len(s); {
		end := start + max
		if end >= len(s) {
			end = len(s)
		} else {
			end = runeBoundary(s, end)
			if end <= start {
				// a single rune wider than max
				_, size := utf8.DecodeRuneInString(s[start:])
				end = start + size
			}
		}
		res = append(res, strings.TrimSpace(s[start:end]))
		if end == len(s) {
			break
		}
		next := runeBoundary(s, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return res
}

// runeBoundary moves i back to the first byte of the rune containing it.
func runeBoundary(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
