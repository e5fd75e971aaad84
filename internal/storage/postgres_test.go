package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

// Postgres tests need a database with the pgvector extension available.
func TestPostgresStorage_suite(t *testing.T) {
	url := os.Getenv("MANABU_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MANABU_TEST_DATABASE_URL not set")
	}
	store, err := NewPostgresStorage(context.Background(), url, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runStorageSuite(t, store, uuid.NewString()[:8]+"_")
}
