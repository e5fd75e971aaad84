package config

import "time"

const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 300
	DefaultBatchSize    = 10
	DefaultTopK         = 5
	DefaultDimensions   = 1536
	LocalDimensions     = 384
)

func intPtr(v int) *int { return &v }

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 180 * time.Second
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/manabu/data/db/manabu.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/manabu/data/uploads"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.Model = "text-embedding-3-small"
		case "onnx":
			cfg.Embedding.Model = "all-MiniLM-L6-v2"
		default:
			cfg.Embedding.Model = "gemini-embedding-001"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
		if cfg.Embedding.Provider == "onnx" {
			cfg.Embedding.Dimensions = LocalDimensions
		}
	}
	if cfg.Embedding.Provider == "onnx" {
		if cfg.Embedding.ModelPath == "" {
			cfg.Embedding.ModelPath = "/usr/local/var/manabu/data/models/all-MiniLM-L6-v2.onnx"
		}
		if cfg.Embedding.MaxTokens == 0 {
			cfg.Embedding.MaxTokens = 256
		}
	}
	if cfg.Embedding.MaxBatchSize == 0 {
		cfg.Embedding.MaxBatchSize = 100
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = defaultKeyEnv(cfg.Embedding.Provider)
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "gemini"
	}
	if cfg.Generation.AnswerModel == "" {
		switch cfg.Generation.Provider {
		case "openai":
			cfg.Generation.AnswerModel = "gpt-4o-mini"
		default:
			cfg.Generation.AnswerModel = "gemini-2.5-flash"
		}
	}
	if cfg.Generation.QuizModel == "" {
		switch cfg.Generation.Provider {
		case "openai":
			cfg.Generation.QuizModel = "gpt-4o-mini"
		default:
			cfg.Generation.QuizModel = "gemini-2.0-flash"
		}
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60 * time.Second
	}
	if cfg.Generation.MaxRetries == nil {
		cfg.Generation.MaxRetries = intPtr(1)
	}
	if cfg.Generation.Burst == 0 {
		cfg.Generation.Burst = 4
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = defaultKeyEnv(cfg.Generation.Provider)
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = DefaultChunkSize
	}
	if cfg.Ingest.ChunkOverlap == 0 && cfg.Ingest.ChunkSize > DefaultChunkOverlap {
		cfg.Ingest.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = DefaultBatchSize
	}
	if cfg.Ingest.MaxBatchSize == 0 {
		cfg.Ingest.MaxBatchSize = 200
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = DefaultTopK
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 50
	}
	if cfg.Retrieval.Timeout == 0 {
		cfg.Retrieval.Timeout = 20 * time.Second
	}
	if cfg.Retrieval.MaxRetries == nil {
		cfg.Retrieval.MaxRetries = intPtr(1)
	}
	if cfg.Quiz.MaxContextChunks == 0 {
		cfg.Quiz.MaxContextChunks = 200
	}
	if cfg.Quiz.MaxContextChars == 0 {
		cfg.Quiz.MaxContextChars = 12000
	}
	if cfg.Quiz.MaxQuestions == 0 {
		cfg.Quiz.MaxQuestions = 50
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt", ".md", ".rst", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

func defaultKeyEnv(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}
