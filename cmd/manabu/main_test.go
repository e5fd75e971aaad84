package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/ingest"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"what is ATP", "-doc", "d1"},
			expected: []string{"-doc", "d1", "what is ATP"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-doc", "d1", "what is ATP"},
			expected: []string{"-doc", "d1", "what is ATP"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"what is ATP"},
			expected: []string{"what is ATP"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-top-k", "5"},
			expected: []string{"-top-k", "5", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"osmosis"}, "osmosis"},
		{"multiple words", []string{"what", "is", "osmosis"}, "what is osmosis"},
		{"single quoted phrase", []string{"what is osmosis"}, "what is osmosis"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinArgs(tt.args); got != tt.expected {
				t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestStringList(t *testing.T) {
	var s stringList
	_ = s.Set("a, b")
	_ = s.Set("c")
	_ = s.Set(" ,")
	if !reflect.DeepEqual([]string(s), []string{"a", "b", "c"}) {
		t.Errorf("stringList = %v", s)
	}
	if s.String() != "a,b,c" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.PDF", "c.go", "sub/d.md"} {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	got := listFiles(dir, []string{".txt", ".pdf", ".md"})
	sort.Strings(got)
	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.PDF"), filepath.Join(dir, "sub/d.md")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("listFiles = %v, want %v", got, want)
	}
	if n := len(listFiles(dir, nil)); n != 3 {
		t.Errorf("default extensions matched %d files, want 3", n)
	}
}

func TestEmbedViaHTTP(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ingest/batch" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			DocumentID string `json:"documentId"`
			BatchSize  int    `json:"batchSize"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.DocumentID != "doc_1" || req.BatchSize != 4 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		calls++
		res := ingest.BatchResult{Inserted: 4}
		if calls == 3 {
			res = ingest.BatchResult{Done: true}
		}
		_ = json.NewEncoder(w).Encode(res)
	}))
	defer ts.Close()

	total, err := embedViaHTTP(newAPIClient(ts.URL+"/"), "doc_1", 4)
	if err != nil {
		t.Fatal(err)
	}
	if total != 8 || calls != 3 {
		t.Errorf("total = %d, calls = %d", total, calls)
	}
}

func TestAPIClient_decodesErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"question: must not be empty","kind":"validation","field":"question"}`))
	}))
	defer ts.Close()

	err := newAPIClient(ts.URL).postJSON("/api/v1/ask", map[string]string{}, nil)
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Kind != "validation" || apiErr.Field != "question" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestInitializeComponents_mockEmbedder(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath: filepath.Join(dir, "db.sqlite"),
			UploadDir:    filepath.Join(dir, "uploads"),
		},
		Embedding: config.EmbeddingConfig{Provider: "mock", Dimensions: 16},
	}
	config.ApplyDefaults(cfg)

	c, err := initializeComponents(context.Background(), cfg, zap.NewNop(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Embedder.Dimensions() != 16 || c.Indexer == nil || c.Processor == nil || c.Grader == nil {
		t.Errorf("components = %+v", c)
	}
	if c.Answerer != nil || c.Quizzes != nil {
		t.Error("generation components should be skipped")
	}

	path := filepath.Join(dir, "bio.txt")
	if err := os.WriteFile(path, []byte("Mitochondria make ATP for the cell."), 0600); err != nil {
		t.Fatal(err)
	}
	doc, err := c.Indexer.IngestFile(context.Background(), path, nil)
	if err != nil {
		t.Fatal(err)
	}
	inserted, err := ingest.NewJob(c.Processor, doc.ID, 0).Run(context.Background())
	if err != nil || inserted != 1 {
		t.Errorf("Run = %d, %v", inserted, err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != filepath.Join(dir, "test.db") {
		t.Errorf("database path = %s", cfg.Storage.DatabasePath)
	}
}
