package ingestion

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivon-labs/vivon/sui-assistant/internal/storage"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	calls   int
	failOn  int
	batches [][]string
}

func (f *fakeEmbedder) EmbedChunks(_ context.Context, chunks []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, chunks)
	if f.calls == f.failOn {
		return nil, errors.New("rate limited")
	}
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		out[i] = []float32{float32(len(c)), 1}
	}
	return out, nil
}

type fakeStore struct {
	chunks   []storage.Chunk
	cleared  []string
	clearErr error
}

func (f *fakeStore) InsertBatch(_ context.Context, chunks []storage.Chunk) error {
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeStore) Clear(_ context.Context, collection string) (int64, error) {
	if f.clearErr != nil {
		return 0, f.clearErr
	}
	f.cleared = append(f.cleared, collection)
	n := int64(len(f.chunks))
	f.chunks = nil
	return n, nil
}

func newTestIndexer(opts Options, emb Embedder, store Store) *Indexer {
	return NewIndexer(opts, emb, store, zerolog.Nop())
}

func TestIndexDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "intro.md"), "# Sui Intro\n\nSui is a layer-1 blockchain.")
	writeFile(t, filepath.Join(root, "concepts", "objects.md"), "# Objects\n\n## Ownership\n\nObjects can be owned or shared.")
	writeFile(t, filepath.Join(root, "guides", "empty.md"), "   ")

	emb := &fakeEmbedder{}
	store := &fakeStore{}
	stats, err := newTestIndexer(Options{}, emb, store).IndexDir(context.Background(), root, CollectionSuiDocs, false)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []string{"General", "concepts"}, stats.Categories)
	assert.Equal(t, stats.Chunks, stats.Stored)
	require.Len(t, store.chunks, stats.Chunks)
	assert.Empty(t, store.cleared)

	for _, c := range store.chunks {
		assert.Equal(t, CollectionSuiDocs, c.Collection)
		assert.NotEmpty(t, c.Embedding)
		switch c.Source {
		case "intro.md":
			assert.Equal(t, "Sui Intro", c.Title)
			assert.Equal(t, "General", c.Category)
		case "concepts/objects.md":
			assert.Equal(t, "Objects", c.Title)
			assert.Equal(t, "concepts", c.Category)
		default:
			t.Errorf("unexpected source %q", c.Source)
		}
	}
}

func TestIndexDir_NotFound(t *testing.T) {
	_, err := newTestIndexer(Options{}, &fakeEmbedder{}, &fakeStore{}).
		IndexDir(context.Background(), filepath.Join(t.TempDir(), "sui-docs"), CollectionSuiDocs, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docs directory not found")
}

func TestIndex_BatchesAndSkipsFailures(t *testing.T) {
	var docs []SourceDocument
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		docs = append(docs, SourceDocument{Content: "# " + name + "\n\ncontent " + name, RelPath: name + ".md"})
	}

	emb := &fakeEmbedder{failOn: 2}
	store := &fakeStore{}
	stats, err := newTestIndexer(Options{BatchSize: 2}, emb, store).Index(context.Background(), docs, CollectionSuiDocs, false)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Chunks)
	assert.Equal(t, 3, emb.calls)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.Equal(t, 3, stats.Stored)
	require.Len(t, store.chunks, 3)
	assert.Equal(t, "a.md", store.chunks[0].Source)
	assert.Equal(t, "e.md", store.chunks[2].Source)
}

func TestIndex_ClearsCollectionFirst(t *testing.T) {
	store := &fakeStore{chunks: []storage.Chunk{{Content: "stale"}}}
	stats, err := newTestIndexer(Options{}, &fakeEmbedder{}, store).Index(context.Background(),
		[]SourceDocument{{Content: "fresh", RelPath: "fresh.md"}}, CollectionVivonDocs, true)
	require.NoError(t, err)

	assert.Equal(t, []string{CollectionVivonDocs}, store.cleared)
	assert.Equal(t, int64(1), stats.Cleared)
	require.Len(t, store.chunks, 1)
	assert.Equal(t, "fresh", store.chunks[0].Content)
	assert.Equal(t, "Untitled", store.chunks[0].Title)
}

func TestIndex_ClearError(t *testing.T) {
	store := &fakeStore{clearErr: errors.New("permission denied")}
	_, err := newTestIndexer(Options{}, &fakeEmbedder{}, store).Index(context.Background(),
		[]SourceDocument{{Content: "x", RelPath: "x.md"}}, CollectionSuiDocs, true)
	assert.EqualError(t, err, "permission denied")
}

func TestIndex_NoDocuments(t *testing.T) {
	_, err := newTestIndexer(Options{}, &fakeEmbedder{}, &fakeStore{}).Index(context.Background(), nil, CollectionSuiDocs, false)
	assert.Error(t, err)
}

func TestIndex_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	_, err := newTestIndexer(Options{}, &fakeEmbedder{}, store).Index(ctx,
		[]SourceDocument{{Content: "x", RelPath: "x.md"}}, CollectionSuiDocs, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.chunks)
}

func TestIndex_SplitsLongDocuments(t *testing.T) {
	content := "# Guide\n\n## One\n\n" + strings.Repeat("alpha ", 40) + "\n\n## Two\n\n" + strings.Repeat("beta ", 40)
	store := &fakeStore{}
	stats, err := newTestIndexer(Options{ChunkSize: 300, ChunkOverlap: 30}, &fakeEmbedder{}, store).Index(context.Background(),
		[]SourceDocument{{Content: content, RelPath: "guides/guide.md"}}, CollectionSuiDocs, false)
	require.NoError(t, err)

	assert.Greater(t, stats.Chunks, 1)
	sections := map[string]bool{}
	for _, c := range store.chunks {
		assert.LessOrEqual(t, len(c.Content), 300)
		assert.Equal(t, "guides", c.Category)
		sections[c.Section] = true
	}
	assert.True(t, sections["Two"])
}

func TestIndex_PlainTextUsesParagraphChunks(t *testing.T) {
	content := "First paragraph.\n\nSecond paragraph.\n\n\nThird paragraph."
	store := &fakeStore{}
	stats, err := newTestIndexer(Options{}, &fakeEmbedder{}, store).Index(context.Background(),
		[]SourceDocument{{Content: content, RelPath: "notes/scan.pdf"}}, CollectionSuiDocs, false)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, "Second paragraph.", store.chunks[1].Content)
	assert.Equal(t, "notes", store.chunks[1].Category)
}

func TestSeed(t *testing.T) {
	emb := &fakeEmbedder{}
	store := &fakeStore{}
	stats, err := newTestIndexer(Options{}, emb, store).Seed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, stats.Stored)
	assert.Equal(t, 2, emb.calls)
	require.Len(t, store.chunks, 8)

	counts := map[string]int{}
	for _, c := range store.chunks {
		counts[c.Collection]++
		assert.NotEmpty(t, c.Embedding)
	}
	assert.Equal(t, map[string]int{CollectionSuiDocs: 4, CollectionVivonDocs: 4}, counts)
}

func TestSeed_EmbedError(t *testing.T) {
	_, err := newTestIndexer(Options{}, &fakeEmbedder{failOn: 1}, &fakeStore{}).Seed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed sui_docs")
}
