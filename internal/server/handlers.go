package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/apperr"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/indexer"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/quiz"
	"github.com/hyperjump/manabu/internal/retrieval"
	"github.com/hyperjump/manabu/internal/storage"
)

const defaultListLimit = 50

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.deps.Storage.CountDocuments(ctx)
	if err != nil {
		s.respondErr(w, apperr.Upstream("count documents", err))
		return
	}
	chunkCount, err := s.deps.Storage.CountChunks(ctx)
	if err != nil {
		s.respondErr(w, apperr.Upstream("count chunks", err))
		return
	}
	resp := map[string]interface{}{
		"documents": docCount,
		"chunks":    chunkCount,
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"storage_driver":       cfg.Storage.Driver,
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_model":      cfg.Embedding.Model,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"generation_provider":  cfg.Generation.Provider,
		"answer_model":         cfg.Generation.AnswerModel,
		"quiz_model":           cfg.Generation.QuizModel,
		"chunk_size":           cfg.Ingest.ChunkSize,
		"chunk_overlap":        cfg.Ingest.ChunkOverlap,
		"batch_size":           cfg.Ingest.BatchSize,
		"default_top_k":        cfg.Retrieval.DefaultTopK,
	}
	diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.UploadDir)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	docs, err := s.deps.Storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.respondErr(w, apperr.Upstream("list documents", err))
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondErr(w, apperr.Validation("file", "multipart form with a file is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondErr(w, apperr.Validation("file", "file is required"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondErr(w, apperr.ValidationErr("file", err))
		return
	}

	index := true
	if v := r.FormValue("index"); v != "" {
		index, err = strconv.ParseBool(v)
		if err != nil {
			s.respondErr(w, apperr.Validation("index", "must be a boolean"))
			return
		}
	}

	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	doc, err := s.deps.Indexer.Upload(r.Context(), indexer.UploadInput{
		Filename: header.Filename,
		Title:    r.FormValue("title"),
		Content:  content,
	})
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if index {
		doc, err = s.deps.Indexer.IndexDocument(r.Context(), doc.ID)
		if err != nil {
			s.respondErr(w, err)
			return
		}
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Storage.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Indexer.IndexDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.deps.Indexer.Chunks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if chunks == nil {
		chunks = []*models.Chunk{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"chunks": chunks})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondErr(w, apperr.Validation("file", "multipart form with a file is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondErr(w, apperr.Validation("file", "file is required"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondErr(w, apperr.ValidationErr("file", err))
		return
	}
	preview, err := s.deps.Indexer.Preview(content, filepath.Ext(header.Filename))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, preview)
}

type ingestBatchRequest struct {
	DocumentID string `json:"documentId"`
	BatchSize  int    `json:"batchSize"`
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req ingestBatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.deps.Processor.ProcessNextBatch(r.Context(), req.DocumentID, req.BatchSize)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req retrieval.AskRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.logger.Debug("ask request", zap.Int("documents", len(req.DocumentIDs)), zap.Int("top_k", req.TopK))
	answer, err := s.deps.Answerer.Ask(r.Context(), req)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

type quizGenerateRequest struct {
	DocumentScope []string      `json:"documentScope"`
	Counts        models.Counts `json:"counts"`
}

func (s *Server) handleQuizGenerate(w http.ResponseWriter, r *http.Request) {
	var req quizGenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	generated, err := s.deps.Quizzes.Generate(r.Context(), req.DocumentScope, req.Counts)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, generated)
}

type quizSubmitRequest struct {
	QuizID  string          `json:"quizId"`
	Answers json.RawMessage `json:"answers"`
}

func (s *Server) handleQuizSubmit(w http.ResponseWriter, r *http.Request) {
	var req quizSubmitRequest
	if !s.decode(w, r, &req) {
		return
	}
	answers, err := quiz.ParseAnswerSet(req.Answers)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	res, err := s.deps.Grader.Submit(r.Context(), req.QuizID, answers)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuizAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.deps.Grader.Attempts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if attempts == nil {
		attempts = []*models.QuizAttempt{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		s.respondErr(w, apperr.Validation("path", "path is required"))
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondErr(w, apperr.ValidationErr("path", err))
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondErr(w, apperr.NotFound("directory", abs))
			return
		}
		s.respondErr(w, err)
		return
	}
	if !info.IsDir() {
		s.respondErr(w, apperr.Validation("path", "path is not a directory"))
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.respondErr(w, err)
		return
	}
	s.persistWatch()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondErr(w, apperr.Validation("path", "path is required (query or body)"))
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondErr(w, apperr.ValidationErr("path", err))
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.respondErr(w, err)
		return
	}
	s.persistWatch()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatch writes the current watch directories back to the config file.
func (s *Server) persistWatch() {
	if s.configPath == "" {
		return
	}
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			s.respondErr(w, apperr.Validation("body", "request body is required"))
		} else {
			s.respondErr(w, apperr.Validation("body", "invalid request body"))
		}
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Validation(name, "must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondErr writes err with the status its kind maps to.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	body := map[string]string{
		"error": err.Error(),
		"kind":  apperr.KindOf(err).String(),
	}
	if field := apperr.FieldOf(err); field != "" {
		body["field"] = field
	}
	s.respondJSON(w, status, body)
}
