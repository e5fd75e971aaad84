package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/embedding"
	"github.com/hyperjump/manabu/internal/indexer"
	"github.com/hyperjump/manabu/internal/ingest"
	"github.com/hyperjump/manabu/internal/storage"
)

func TestIngestHandler_FileReady(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	blobs, err := storage.NewDiskBlobStore(filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	chunker, err := indexer.NewChunker(16, 4)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, blobs, chunker, nil)
	proc := ingest.NewProcessor(store, embedding.NewMockEmbedder(8), idx, config.IngestConfig{})
	h := NewIngestHandler(idx, proc, []string{".txt"}, 2, nil)

	inbox := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(inbox, 0755); err != nil {
		t.Fatal(err)
	}
	fPath := filepath.Join(inbox, "lecture.txt")
	if err := writeFile(fPath, "Enzymes lower the activation energy of reactions."); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	h.FileReady(ctx, fPath)
	docs, err := store.ListDocuments(ctx, 0, 10)
	if err != nil || len(docs) != 1 {
		t.Fatalf("docs = %v, err = %v", docs, err)
	}
	chunks, _ := store.CountChunksByDocument(ctx, docs[0].ID)
	embedded, _ := store.CountEmbeddings(ctx, docs[0].ID)
	if chunks == 0 || embedded != chunks {
		t.Errorf("chunks=%d embedded=%d", chunks, embedded)
	}

	// Disallowed files and removals leave the store unchanged.
	h.FileReady(ctx, filepath.Join(inbox, "image.png"))
	h.FileRemoved(ctx, fPath)
	if n, _ := store.CountDocuments(ctx); n != 1 {
		t.Errorf("CountDocuments = %d, want 1", n)
	}
}
