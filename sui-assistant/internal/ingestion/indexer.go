package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivon-labs/vivon/sui-assistant/internal/processing"
	"github.com/vivon-labs/vivon/sui-assistant/internal/storage"
)

// Document collections.
const (
	CollectionSuiDocs   = "sui_docs"
	CollectionVivonDocs = "vivon_docs"
)

// DefaultBatchSize bounds how many chunks are embedded per request.
const DefaultBatchSize = 100

// Embedder embeds chunk texts in order.
type Embedder interface {
	EmbedChunks(ctx context.Context, chunks []string) ([][]float32, error)
}

// Store persists embedded chunks.
type Store interface {
	InsertBatch(ctx context.Context, chunks []storage.Chunk) error
	Clear(ctx context.Context, collection string) (int64, error)
}

// SourceDocument is a document read from a source, before splitting.
type SourceDocument struct {
	Content  string
	RelPath  string
	FullPath string
	Source   string
}

// Stats summarizes an indexing run.
type Stats struct {
	Files         int
	Skipped       int
	Chunks        int
	Stored        int
	FailedBatches int
	Cleared       int64
	Categories    []string
	Duration      time.Duration
}

// Options tune an indexer.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	OCRLanguages []string
}

// Indexer splits documents, embeds them in batches and stores the chunks.
type Indexer struct {
	splitter  *processing.Splitter
	extractor Extractor
	embedder  Embedder
	store     Store
	batchSize int
	logger    zerolog.Logger

	// extract is ExtractText by default and swapped in tests.
	extract func(ctx context.Context, path string) (string, error)
}

// NewIndexer creates an indexer writing to store.
func NewIndexer(opts Options, embedder Embedder, store Store, logger zerolog.Logger) *Indexer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	ix := &Indexer{
		splitter:  processing.NewMarkdownSplitter(opts.ChunkSize, opts.ChunkOverlap),
		extractor: Extractor{OCRLanguages: opts.OCRLanguages},
		embedder:  embedder,
		store:     store,
		batchSize: opts.BatchSize,
		logger:    logger.With().Str("component", "indexer").Logger(),
	}
	ix.extract = ix.extractor.ExtractText
	return ix
}

// IndexDir reads every supported file under root and indexes it into
// collection. When clearFirst is set the collection is emptied first.
func (ix *Indexer) IndexDir(ctx context.Context, root, collection string, clearFirst bool) (*Stats, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("docs directory not found at %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	paths, err := LoadLocalFiles(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	ix.logger.Info().Str("root", root).Int("files", len(paths)).Msg("Reading documentation")

	docs, skipped := ix.read(ctx, root, paths, processing.SourceLocal)
	stats, err := ix.Index(ctx, docs, collection, clearFirst)
	if stats != nil {
		stats.Skipped += skipped
	}
	return stats, err
}

// IndexDrive downloads every supported file of a Drive folder into a
// temporary directory and indexes it like a local directory.
func (ix *Indexer) IndexDrive(ctx context.Context, src *DriveSource, collection string, clearFirst bool) (*Stats, error) {
	files, err := src.List(ctx)
	if err != nil {
		return nil, err
	}
	ix.logger.Info().Int("files", len(files)).Msg("Listed Drive folder")

	tmpDir, err := os.MkdirTemp("", "vivon-drive-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	var paths []string
	skipped := 0
	for _, f := range files {
		p, err := src.Download(ctx, f, tmpDir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			ix.logger.Warn().Err(err).Str("file", f.Path).Msg("Skipping Drive file")
			skipped++
			continue
		}
		paths = append(paths, p)
	}

	docs, unreadable := ix.read(ctx, tmpDir, paths, processing.SourceGDrive)
	stats, err := ix.Index(ctx, docs, collection, clearFirst)
	if stats != nil {
		stats.Skipped += skipped + unreadable
	}
	return stats, err
}

func (ix *Indexer) read(ctx context.Context, root string, paths []string, source string) ([]SourceDocument, int) {
	var docs []SourceDocument
	skipped := 0
	for _, p := range paths {
		text, err := ix.extract(ctx, p)
		if err != nil || strings.TrimSpace(text) == "" {
			ix.logger.Warn().Err(err).Str("file", p).Msg("Skipping file without text")
			skipped++
			continue
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			rel = filepath.Base(p)
		}
		docs = append(docs, SourceDocument{
			Content:  text,
			RelPath:  filepath.ToSlash(rel),
			FullPath: p,
			Source:   source,
		})
	}
	return docs, skipped
}

// Index splits docs into chunks and stores them in batches. A failing batch
// is logged and skipped; the run only fails on context cancellation or when
// clearing the collection fails.
func (ix *Indexer) Index(ctx context.Context, docs []SourceDocument, collection string, clearFirst bool) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Files: len(docs)}
	if len(docs) == 0 {
		return stats, errors.New("no documents to index")
	}

	categories := map[string]struct{}{}
	var chunks []storage.Chunk
	for _, d := range docs {
		title := processing.ExtractTitle(d.Content)
		category := processing.ExtractCategory(d.RelPath)
		categories[category] = struct{}{}

		parts := ix.split(d)
		for _, part := range parts {
			chunks = append(chunks, storage.Chunk{
				Collection: collection,
				Source:     d.RelPath,
				Title:      title,
				Section:    processing.ExtractSection(part, title),
				Category:   category,
				FilePath:   d.FullPath,
				Content:    part,
			})
		}
		ix.logger.Debug().Str("file", d.RelPath).Int("chunks", len(parts)).Msg("Processed file")
	}
	stats.Chunks = len(chunks)
	for c := range categories {
		stats.Categories = append(stats.Categories, c)
	}
	sort.Strings(stats.Categories)

	if clearFirst {
		n, err := ix.store.Clear(ctx, collection)
		if err != nil {
			return stats, err
		}
		stats.Cleared = n
		ix.logger.Info().Int64("deleted", n).Str("collection", collection).Msg("Cleared existing documents")
	}

	batches := (len(chunks) + ix.batchSize - 1) / ix.batchSize
	for i := 0; i < len(chunks); i += ix.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(i+ix.batchSize, len(chunks))
		batch := chunks[i:end]
		n := i/ix.batchSize + 1

		if err := ix.storeBatch(ctx, batch); err != nil {
			stats.FailedBatches++
			ix.logger.Error().Err(err).Int("batch", n).Int("batches", batches).Msg("Error processing batch")
			continue
		}
		stats.Stored += len(batch)
		ix.logger.Info().Int("batch", n).Int("batches", batches).Int("stored", stats.Stored).Int("total", len(chunks)).Msg("Stored batch")
	}

	stats.Duration = time.Since(start)
	ix.logger.Info().
		Int("files", stats.Files).
		Int("chunks", stats.Chunks).
		Int("stored", stats.Stored).
		Strs("categories", stats.Categories).
		Dur("duration", stats.Duration).
		Msg("Ingestion completed")
	return stats, nil
}

// split uses the markdown splitter for markdown and paragraph chunks for
// text extracted from everything else.
func (ix *Indexer) split(d SourceDocument) []string {
	if strings.EqualFold(path.Ext(d.RelPath), ".md") {
		return ix.splitter.Split(d.Content)
	}
	return processing.ChunkText(d.Content)
}

func (ix *Indexer) storeBatch(ctx context.Context, batch []storage.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}
	embs, err := ix.embedder.EmbedChunks(ctx, texts)
	if err != nil {
		return err
	}
	if len(embs) != len(batch) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(embs), len(batch))
	}
	for i := range batch {
		batch[i].Embedding = embs[i]
	}
	return ix.store.InsertBatch(ctx, batch)
}

// Seed stores the built-in sample documents, one chunk each.
func (ix *Indexer) Seed(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{Files: len(SampleDocuments)}

	byCollection := map[string][]storage.Chunk{}
	var order []string
	for _, s := range SampleDocuments {
		if _, ok := byCollection[s.Collection]; !ok {
			order = append(order, s.Collection)
		}
		byCollection[s.Collection] = append(byCollection[s.Collection], storage.Chunk{
			Collection: s.Collection,
			Source:     s.Collection,
			Title:      s.Type,
			Section:    s.Type,
			Category:   processing.SourceSample,
			Content:    s.Content,
		})
	}

	for _, c := range order {
		batch := byCollection[c]
		stats.Chunks += len(batch)
		ix.logger.Info().Str("collection", c).Int("documents", len(batch)).Msg("Adding sample documentation")
		if err := ix.storeBatch(ctx, batch); err != nil {
			return stats, fmt.Errorf("seed %s: %w", c, err)
		}
		stats.Stored += len(batch)
	}
	stats.Categories = []string{processing.SourceSample}
	stats.Duration = time.Since(start)
	return stats, nil
}
