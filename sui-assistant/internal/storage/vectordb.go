package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// Document is one stored chunk.
type Document struct {
	ID         int64
	Collection string
	Source     string
	Title      string
	Section    string
	Category   string
	FilePath   string
	Content    string
	Distance   float64
}

// Chunk is a chunk ready to be stored together with its embedding.
type Chunk struct {
	Collection string
	Source     string
	Title      string
	Section    string
	Category   string
	FilePath   string
	Content    string
	Embedding  []float32
}

// InsertEmbedding adds a chunk with its embedding.
func (db *VectorDB) InsertEmbedding(ctx context.Context, c Chunk) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO documents (collection, source, title, section, category, file_path, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.Collection, c.Source, c.Title, c.Section, c.Category, c.FilePath, c.Content, pgvector.NewVector(c.Embedding))
	if err != nil {
		return fmt.Errorf("insert chunk from %s: %w", c.Source, err)
	}
	return nil
}

// InsertBatch stores chunks in a single round trip.
func (db *VectorDB) InsertBatch(ctx context.Context, chunks []Chunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(
			`INSERT INTO documents (collection, source, title, section, category, file_path, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.Collection, c.Source, c.Title, c.Section, c.Category, c.FilePath, c.Content, pgvector.NewVector(c.Embedding))
	}

	results := db.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert chunk %d from %s: %w", i, chunks[i].Source, err)
		}
	}
	return nil
}

// QuerySimilar returns the top-k documents closest to queryEmb by cosine
// distance. An empty collection searches every collection. Ties are broken by
// id so repeated queries return the same ranking.
func (db *VectorDB) QuerySimilar(ctx context.Context, queryEmb []float32, topK int, collection string) ([]Document, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, collection, source, title, section, category, file_path, content, embedding <=> $1 AS distance
		 FROM documents
		 WHERE ($3 = '' OR collection = $3)
		 ORDER BY distance, id
		 LIMIT $2`,
		pgvector.NewVector(queryEmb), topK, collection)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Collection, &doc.Source, &doc.Title, &doc.Section,
			&doc.Category, &doc.FilePath, &doc.Content, &doc.Distance); err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}

// Clear deletes every document of a collection, or all documents when
// collection is empty.
func (db *VectorDB) Clear(ctx context.Context, collection string) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM documents WHERE ($1 = '' OR collection = $1)`, collection)
	if err != nil {
		return 0, fmt.Errorf("clear documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of stored chunks.
func (db *VectorDB) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
