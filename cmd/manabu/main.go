// Package main is the manabu CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/cli"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/ingest"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/quiz"
	"github.com/hyperjump/manabu/internal/retrieval"
	"github.com/hyperjump/manabu/internal/server"
	"github.com/hyperjump/manabu/internal/storage"
	"github.com/hyperjump/manabu/internal/watcher"
	"github.com/hyperjump/manabu/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/manabu/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "embed":
		runEmbed()
	case "ask":
		runAsk()
	case "quiz":
		runQuiz()
	case "documents":
		runDocuments()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("manabu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// stringList is a repeatable flag; each value may also hold comma separated items.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument, so "manabu ask what is ATP --doc d1" would otherwise
// leave --doc unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word questions work the same
// with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fail("%v", err)
	}
	return format
}

// direct loads config and components for commands that run without a server.
func direct(configPath string, withGeneration bool) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fail("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(context.Background(), cfg, logger, withGeneration)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}
	return cfg, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, ingestion, model calls)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	exts := cfg.Watch.Extensions
	handler := watcher.NewIngestHandler(components.Indexer, components.Processor, exts, cfg.Ingest.BatchSize, logger)
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		exts,
		cfg.Watch.RecursiveOrDefault(),
		handler,
		watcher.WithLogger(logger),
	)
	if err := watchSvc.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(components.Deps(), cfg, logger, server.WithWatch(watchSvc, resolvedConfigPath))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	title := fs.String("title", "", "document title (server mode, single file)")
	batchSize := fs.Int("batch-size", 0, "chunks embedded per batch (default from config)")
	noEmbed := fs.Bool("no-embed", false, "upload and chunk only; skip embedding")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: manabu ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		fail("Failed to stat path: %v", err)
	}

	if *serverURL != "" {
		client := newAPIClient(*serverURL)
		files := []string{path}
		docTitle := *title
		if info.IsDir() {
			files = listFiles(path, nil)
			docTitle = ""
		}
		for _, f := range files {
			var doc models.Document
			if err := client.upload(f, docTitle, &doc); err != nil {
				fail("Upload %s failed: %v", f, err)
			}
			inserted := 0
			if !*noEmbed {
				if inserted, err = embedViaHTTP(client, doc.ID, *batchSize); err != nil {
					fail("Embedding %s failed: %v", doc.ID, err)
				}
			}
			fmt.Printf("Ingested %s: %s (%d embeddings)\n", f, doc.ID, inserted)
		}
		return
	}

	cfg, logger, components := direct(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	ctx := context.Background()

	var docs []*models.Document
	if info.IsDir() {
		docs, err = components.Indexer.IngestDirectory(ctx, path, cfg.Watch.Extensions)
		if err != nil {
			fail("Ingesting directory failed: %v", err)
		}
	} else {
		// Single file: no extension filter
		doc, err := components.Indexer.IngestFile(ctx, path, nil)
		if err != nil {
			fail("Ingesting failed: %v", err)
		}
		docs = append(docs, doc)
	}
	for _, doc := range docs {
		inserted := 0
		if !*noEmbed {
			inserted, err = ingest.NewJob(components.Processor, doc.ID, *batchSize).Run(ctx)
			if err != nil {
				fail("Embedding %s failed: %v", doc.ID, err)
			}
		}
		fmt.Printf("Ingested %s: %s (%d embeddings)\n", doc.Filename, doc.ID, inserted)
	}
}

// listFiles walks dir for files with an allowed extension. Empty exts uses the defaults.
func listFiles(dir string, exts []string) []string {
	if len(exts) == 0 {
		var cfg config.Config
		config.ApplyDefaults(&cfg)
		exts = cfg.Watch.Extensions
	}
	var files []string
	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		for _, e := range exts {
			if ext == strings.ToLower(e) {
				files = append(files, p)
				break
			}
		}
		return nil
	})
	return files
}

// embedViaHTTP calls the batch endpoint until the document reports done.
func embedViaHTTP(client *apiClient, docID string, batchSize int) (int, error) {
	total := 0
	for {
		var res ingest.BatchResult
		err := client.postJSON("/api/v1/ingest/batch", map[string]interface{}{
			"documentId": docID,
			"batchSize":  batchSize,
		}, &res)
		if err != nil {
			return total, err
		}
		if res.Done {
			return total, nil
		}
		if res.Inserted == 0 {
			return total, ingest.ErrNotConverged
		}
		total += res.Inserted
	}
}

func runEmbed() {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	batchSize := fs.Int("batch-size", 0, "chunks embedded per batch (default from config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: manabu embed [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	if *serverURL != "" {
		inserted, err := embedViaHTTP(newAPIClient(*serverURL), docID, *batchSize)
		if err != nil {
			fail("Embedding failed: %v", err)
		}
		fmt.Printf("Embedded %s: %d new vectors\n", docID, inserted)
		return
	}

	_, logger, components := direct(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	inserted, err := ingest.NewJob(components.Processor, docID, *batchSize).Run(context.Background())
	if err != nil {
		fail("Embedding failed: %v", err)
	}
	fmt.Printf("Embedded %s: %d new vectors\n", docID, inserted)
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: manabu ask --doc <id> [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	var docs stringList
	fs.Var(&docs, "doc", "document id to search (repeatable or comma separated)")
	topK := fs.Int("top-k", 0, "excerpts to retrieve (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := joinArgs(fs.Args())
	if question == "" || len(docs) == 0 {
		printAskUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	req := retrieval.AskRequest{DocumentIDs: docs, Question: question, TopK: *topK}

	var answer *retrieval.Answer
	if *serverURL != "" {
		answer = &retrieval.Answer{}
		if err := newAPIClient(*serverURL).postJSON("/api/v1/ask", req, answer); err != nil {
			fail("Ask failed: %v", err)
		}
	} else {
		_, logger, components := direct(*configPath, true)
		defer logger.Sync()
		defer components.Close()
		var err error
		answer, err = components.Answerer.Ask(context.Background(), req)
		if err != nil {
			fail("Ask failed: %v", err)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runQuiz() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: manabu quiz <generate|submit|attempts> [flags]")
		fmt.Println("  manabu quiz generate --doc <id> --mcq 3 --saq 2 --laq 1")
		fmt.Println("  manabu quiz submit --quiz <id> --answers answers.json")
		fmt.Println("  manabu quiz attempts --quiz <id>")
		os.Exit(1)
	}
	switch sub := os.Args[2]; sub {
	case "generate":
		runQuizGenerate(os.Args[3:])
	case "submit":
		runQuizSubmit(os.Args[3:])
	case "attempts":
		runQuizAttempts(os.Args[3:])
	default:
		fail("Unknown quiz subcommand: %s", sub)
	}
}

func runQuizGenerate(args []string) {
	fs := flag.NewFlagSet("quiz generate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	var docs stringList
	fs.Var(&docs, "doc", "document id in scope (repeatable or comma separated)")
	mcq := fs.Int("mcq", 0, "multiple-choice questions")
	saq := fs.Int("saq", 0, "short-answer questions")
	laq := fs.Int("laq", 0, "long-answer questions")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format := parseFormat(*outputFormat)
	counts := models.Counts{MCQ: *mcq, SAQ: *saq, LAQ: *laq}

	var generated *quiz.GeneratedQuiz
	if *serverURL != "" {
		generated = &quiz.GeneratedQuiz{}
		err := newAPIClient(*serverURL).postJSON("/api/v1/quiz/generate", map[string]interface{}{
			"documentScope": []string(docs),
			"counts":        counts,
		}, generated)
		if err != nil {
			fail("Quiz generation failed: %v", err)
		}
	} else {
		_, logger, components := direct(*configPath, true)
		defer logger.Sync()
		defer components.Close()
		var err error
		generated, err = components.Quizzes.Generate(context.Background(), docs, counts)
		if err != nil {
			fail("Quiz generation failed: %v", err)
		}
	}
	if err := cli.WriteQuiz(os.Stdout, generated, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// readAnswers reads a JSON answer set from path, or stdin when path is "-".
func readAnswers(path string) (json.RawMessage, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func runQuizSubmit(args []string) {
	fs := flag.NewFlagSet("quiz submit", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	quizID := fs.String("quiz", "", "quiz id")
	answersPath := fs.String("answers", "-", "JSON answers file: a list of {questionId, answer} or a map (- = stdin)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format := parseFormat(*outputFormat)
	raw, err := readAnswers(*answersPath)
	if err != nil {
		fail("Failed to read answers: %v", err)
	}

	var result *quiz.Result
	if *serverURL != "" {
		result = &quiz.Result{}
		err := newAPIClient(*serverURL).postJSON("/api/v1/quiz/submit", map[string]interface{}{
			"quizId":  *quizID,
			"answers": raw,
		}, result)
		if err != nil {
			fail("Submit failed: %v", err)
		}
	} else {
		answers, err := quiz.ParseAnswerSet(raw)
		if err != nil {
			fail("Invalid answers: %v", err)
		}
		_, logger, components := direct(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		result, err = components.Grader.Submit(context.Background(), *quizID, answers)
		if err != nil {
			fail("Submit failed: %v", err)
		}
	}
	if err := cli.WriteResult(os.Stdout, result, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runQuizAttempts(args []string) {
	fs := flag.NewFlagSet("quiz attempts", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	quizID := fs.String("quiz", "", "quiz id")
	_ = fs.Parse(args)

	var attempts []*models.QuizAttempt
	if *serverURL != "" {
		var out struct {
			Attempts []*models.QuizAttempt `json:"attempts"`
		}
		if err := newAPIClient(*serverURL).getJSON("/api/v1/quiz/"+url.PathEscape(*quizID)+"/attempts", &out); err != nil {
			fail("Listing attempts failed: %v", err)
		}
		attempts = out.Attempts
	} else {
		_, logger, components := direct(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		var err error
		attempts, err = components.Grader.Attempts(context.Background(), *quizID)
		if err != nil {
			fail("Listing attempts failed: %v", err)
		}
	}
	for _, a := range attempts {
		fmt.Printf("%s  %s  %d/%d (%d%%)\n", a.CreatedAt.Format(time.RFC3339), a.ID, a.Score, a.Total, a.Percentage())
	}
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	offset := fs.Int("offset", 0, "documents to skip")
	limit := fs.Int("limit", 50, "documents to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	var docs []*models.Document
	if *serverURL != "" {
		var out struct {
			Documents []*models.Document `json:"documents"`
		}
		path := fmt.Sprintf("/api/v1/documents?offset=%d&limit=%d", *offset, *limit)
		if err := newAPIClient(*serverURL).getJSON(path, &out); err != nil {
			fail("Listing documents failed: %v", err)
		}
		docs = out.Documents
	} else {
		_, logger, components := direct(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		var err error
		docs, err = components.Storage.ListDocuments(context.Background(), *offset, *limit)
		if err != nil {
			fail("Listing documents failed: %v", err)
		}
	}
	if err := cli.WriteDocuments(os.Stdout, docs, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	StorageDriver       string `json:"storage_driver"`
	EmbeddingProvider   string `json:"embedding_provider,omitempty"`
	EmbeddingModel      string `json:"embedding_model,omitempty"`
	EmbeddingDimensions int    `json:"embedding_dimensions,omitempty"`
	GenerationProvider  string `json:"generation_provider,omitempty"`
	AnswerModel         string `json:"answer_model,omitempty"`
	QuizModel           string `json:"quiz_model,omitempty"`
	ChunkSize           int    `json:"chunk_size,omitempty"`
	ChunkOverlap        int    `json:"chunk_overlap,omitempty"`
	BatchSize           int    `json:"batch_size,omitempty"`
	DefaultTopK         int    `json:"default_top_k,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Documents      int64                 `json:"documents"`
	Chunks         int64                 `json:"chunks"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func statusFromConfig(cfg *config.Config) *statusConfigResponse {
	return &statusConfigResponse{
		StorageDriver:       cfg.Storage.Driver,
		EmbeddingProvider:   cfg.Embedding.Provider,
		EmbeddingModel:      cfg.Embedding.Model,
		EmbeddingDimensions: cfg.Embedding.Dimensions,
		GenerationProvider:  cfg.Generation.Provider,
		AnswerModel:         cfg.Generation.AnswerModel,
		QuizModel:           cfg.Generation.QuizModel,
		ChunkSize:           cfg.Ingest.ChunkSize,
		ChunkOverlap:        cfg.Ingest.ChunkOverlap,
		BatchSize:           cfg.Ingest.BatchSize,
		DefaultTopK:         cfg.Retrieval.DefaultTopK,
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	var status statusResponse
	if *serverURL != "" {
		if err := newAPIClient(*serverURL).getJSON("/api/v1/status", &status); err != nil {
			fail("Status failed: %v", err)
		}
	} else {
		cfg, logger, components := direct(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		ctx := context.Background()
		docCount, err := components.Storage.CountDocuments(ctx)
		if err != nil {
			fail("Count documents failed: %v", err)
		}
		chunkCount, err := components.Storage.CountChunks(ctx)
		if err != nil {
			fail("Count chunks failed: %v", err)
		}
		status = statusResponse{
			Documents: docCount,
			Chunks:    chunkCount,
			Config:    statusFromConfig(cfg),
		}
		diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.UploadDir)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	if format == cli.OutputJSON {
		if err := cli.WriteJSON(os.Stdout, status); err != nil {
			fail("Output failed: %v", err)
		}
		return
	}
	fmt.Printf("documents:          %d   # uploaded documents\n", status.Documents)
	fmt.Printf("chunks:             %d   # text chunks across documents\n", status.Chunks)
	if status.DiskUsageBytes != nil {
		fmt.Printf("disk_usage_bytes:   %d   # database + uploads on disk\n", *status.DiskUsageBytes)
	}
	if c := status.Config; c != nil {
		fmt.Println()
		fmt.Println("# configuration")
		fmt.Printf("storage_driver:     %s\n", c.StorageDriver)
		if c.EmbeddingProvider != "" {
			fmt.Printf("embedding:          %s/%s (%d dims)\n", c.EmbeddingProvider, c.EmbeddingModel, c.EmbeddingDimensions)
		}
		if c.GenerationProvider != "" {
			fmt.Printf("generation:         %s (answers: %s, quizzes: %s)\n", c.GenerationProvider, c.AnswerModel, c.QuizModel)
		}
		if c.ChunkSize > 0 {
			fmt.Printf("chunk_size:         %d\n", c.ChunkSize)
			fmt.Printf("chunk_overlap:      %d\n", c.ChunkOverlap)
		}
		if c.BatchSize > 0 {
			fmt.Printf("batch_size:         %d\n", c.BatchSize)
		}
		if c.DefaultTopK > 0 {
			fmt.Printf("default_top_k:      %d\n", c.DefaultTopK)
		}
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: manabu watch <add|remove|list> [path]")
		fmt.Println("  manabu watch add <path>     Add directory to watch")
		fmt.Println("  manabu watch remove <path>  Remove directory from watch")
		fmt.Println("  manabu watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not ingest files already in the directory")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	client := newAPIClient(*serverURL)

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fail("Usage: manabu watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := client.postJSON("/api/v1/watch/directories", map[string]interface{}{"path": path, "sync": !*noSync}, nil); err != nil {
			fail("Add failed: %v", err)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fail("Usage: manabu watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := client.deleteJSON("/api/v1/watch/directories?path="+url.QueryEscape(path), nil); err != nil {
			fail("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := client.getJSON("/api/v1/watch/directories", &out); err != nil {
			fail("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fail("Unknown watch subcommand: %s", sub)
	}
}

func printUsage() {
	fmt.Println(`manabu - Study assistant over your own documents

Usage:
  manabu server [flags]                  Start the HTTP server
  manabu ingest [flags] <file|dir>       Upload, chunk and embed documents
  manabu embed [flags] <document-id>     Embed the remaining chunks of a document
  manabu ask --doc <id> [flags] <q>      Ask a question over documents
  manabu quiz generate [flags]           Generate a quiz from documents
  manabu quiz submit [flags]             Grade answers to a quiz
  manabu quiz attempts --quiz <id>       List graded attempts
  manabu documents [flags]               List documents
  manabu status [flags]                  Show storage and configuration status
  manabu watch <add|remove|list>         Manage watched inbox directories
  manabu version                         Show version
  manabu help                            Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/manabu/config.yaml)
  --server string    Server URL. When set, the command calls the HTTP API instead of opening storage.
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Ingest/Embed Flags:
  --batch-size int   Chunks embedded per batch (default from config)
  --no-embed         Upload and chunk only
  --title string     Document title (single file, server mode)

Quiz Flags:
  --doc string       Document id in scope (repeatable)
  --mcq, --saq, --laq int   Question counts
  --quiz string      Quiz id
  --answers string   JSON answers file (- = stdin)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)
  --no-sync          Do not ingest existing files when adding

Examples:
  manabu server
  manabu ingest notes/biology.pdf
  manabu ask --doc doc_1a2b what do mitochondria do
  manabu quiz generate --doc doc_1a2b --mcq 3 --saq 2 --laq 1 --output json
  manabu quiz submit --quiz 7f3c... --answers answers.json
  manabu status --server http://localhost:8080
  manabu watch add ~/study/inbox`)
}
