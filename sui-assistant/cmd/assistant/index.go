package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vivon-labs/vivon/sui-assistant/internal/ingestion"
	"github.com/vivon-labs/vivon/sui-assistant/internal/storage"
)

var (
	indexPath       string
	indexCollection string
	indexDrive      bool
	indexClear      bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a documentation folder into the document store",
	Long: `Reads markdown, text, pdf and image files from a local folder, or from the
configured Google Drive folder with --drive, splits them into chunks, embeds
them in batches and stores them in a collection.

Example:
  assistant index --path ./sui-docs --collection sui_docs --clear`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the built-in Sui and VIVON sample documents",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	indexCmd.Flags().StringVar(&indexPath, "path", "./sui-docs", "path to folder to index")
	indexCmd.Flags().StringVar(&indexCollection, "collection", ingestion.CollectionSuiDocs, "collection to store chunks in")
	indexCmd.Flags().BoolVar(&indexDrive, "drive", false, "index the configured Google Drive folder instead of --path")
	indexCmd.Flags().BoolVar(&indexClear, "clear", false, "delete existing documents of the collection first")
}

// openIndexer connects to the store, creates the schema and returns an indexer.
func openIndexer(ctx context.Context) (*ingestion.Indexer, *storage.VectorDB, error) {
	if cfg.Retriever.DatabaseURL == "" {
		logger.Warn().Str("url", storage.DefaultDatabaseURL).Msg("No database URL configured, using default")
	}
	db, err := storage.Open(ctx, cfg.Retriever.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx, cfg.Embedding.Dims); err != nil {
		db.Close()
		return nil, nil, err
	}

	var langs []string
	if cfg.Ingestion.OCRLanguage != "" {
		langs = strings.Split(cfg.Ingestion.OCRLanguage, "+")
	}
	ix := ingestion.NewIndexer(ingestion.Options{
		ChunkSize:    cfg.Ingestion.ChunkSize,
		ChunkOverlap: cfg.Ingestion.ChunkOverlap,
		BatchSize:    cfg.Ingestion.BatchSize,
		OCRLanguages: langs,
	}, newEmbedder(), db, logger)
	return ix, db, nil
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	ix, db, err := openIndexer(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var stats *ingestion.Stats
	if indexDrive {
		if cfg.Ingestion.DriveFolderID == "" {
			return fmt.Errorf("no Google Drive folder configured (ingestion.drive_folder_id)")
		}
		svc, err := ingestion.NewDriveService(ctx, cfg.Ingestion.DriveCredentialsFile, cfg.Ingestion.DriveAccessToken)
		if err != nil {
			return err
		}
		logger.Info().Str("folder", cfg.Ingestion.DriveFolderID).Msg("Starting Drive indexing")
		stats, err = ix.IndexDrive(ctx, ingestion.NewDriveSource(svc, cfg.Ingestion.DriveFolderID), indexCollection, indexClear)
		if err != nil {
			return err
		}
	} else {
		logger.Info().Str("path", indexPath).Msg("Starting indexing")
		stats, err = ix.IndexDir(ctx, indexPath, indexCollection, indexClear)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Processed %d files (%d skipped)\n", stats.Files, stats.Skipped)
	fmt.Fprintf(cmd.OutOrStdout(), "Created %d document chunks, stored %d\n", stats.Chunks, stats.Stored)
	fmt.Fprintf(cmd.OutOrStdout(), "Categories: %s\n", strings.Join(stats.Categories, ", "))
	if stats.FailedBatches > 0 {
		return fmt.Errorf("%d batches failed", stats.FailedBatches)
	}
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	ix, db, err := openIndexer(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := ix.Seed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sample documents added: %d\n", stats.Stored)
	return nil
}
