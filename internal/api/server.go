package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"echograph/internal/config"
	"echograph/internal/ingest"
	"echograph/internal/models"
	"echograph/internal/storage"
	"echograph/internal/util"
	"echograph/internal/workflows"
)

const maxUploadBytes = 64 << 20

// Ingestor runs one upload through segmentation and matching.
type Ingestor interface {
	IngestDocument(ctx context.Context, req ingest.Request) (models.UploadSummary, error)
}

// WorkflowClient is the part of the Temporal client the API uses.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Deps struct {
	Catalog  storage.Catalog
	Runs     storage.BatchRuns
	Ingestor Ingestor
	// Temporal may be nil, in which case batch matching is unavailable.
	Temporal       WorkflowClient
	EmbedProviders int
}

type Server struct {
	cfg            config.Config
	catalog        storage.Catalog
	runs           storage.BatchRuns
	ingestor       Ingestor
	temporal       WorkflowClient
	embedProviders int
	removeAll      func(string) error
	log            zerolog.Logger
}

func NewServer(cfg config.Config, deps Deps, log zerolog.Logger) *Server {
	return &Server{
		cfg:            cfg,
		catalog:        deps.Catalog,
		runs:           deps.Runs,
		ingestor:       deps.Ingestor,
		temporal:       deps.Temporal,
		embedProviders: deps.EmbedProviders,
		removeAll:      os.RemoveAll,
		log:            log.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/guidelines", s.handleGuidelines)
	mux.HandleFunc("/guidelines/", s.handleGuidelinesScoped)
	mux.HandleFunc("/regulations", s.handleRegulations)
	mux.HandleFunc("/matches/", s.handleMatchesScoped)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/batch-match", s.handleBatchMatch)
	mux.HandleFunc("/batch-match/", s.handleBatchMatchScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleGuidelines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	sections, err := s.catalog.ListGuidelines(r.Context(), models.GuidelineFilter{Language: r.URL.Query().Get("language")})
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sections)
}

func (s *Server) handleRegulations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	q := r.URL.Query()
	sections, err := s.catalog.ListRegulations(r.Context(), models.RegulationFilter{
		Region:         q.Get("region"),
		RegulationType: q.Get("regulation_type"),
	})
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sections)
}

func (s *Server) handleGuidelinesScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/guidelines/"), "/"), "/")
	if len(parts) != 2 || parts[1] != "matches" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid guideline id %q", parts[0]))
		return
	}
	matches, err := s.catalog.ListMatchesByGuideline(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleMatchesScoped(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/matches/"), "/")
	if raw == "" || strings.Contains(raw, "/") {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodPatch {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid match id %q", raw))
		return
	}
	var upd models.MatchUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if upd.Status != nil {
		status := strings.TrimSpace(*upd.Status)
		if status == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("status must not be empty"))
			return
		}
		upd.Status = &status
	}
	m, err := s.catalog.UpdateMatch(r.Context(), id, upd)
	if errors.Is(err, util.ErrNotFound) {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	fh, ok := uploadedFile(r.MultipartForm.File)
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	req, err := uploadRequest(r.MultipartForm.Value)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if req.MaxSegmentLength == 0 {
		req.MaxSegmentLength = s.cfg.MaxSegmentLength
	}
	if req.SimilarityThreshold == nil {
		req.SimilarityThreshold = ingest.Threshold(s.cfg.SimilarityThreshold)
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.TopK
	}

	summary, err := s.ingestUpload(r.Context(), fh, req)
	switch {
	case errors.Is(err, util.ErrInvalidArgument):
		writeErr(w, http.StatusBadRequest, err)
		return
	case err != nil:
		s.serverError(w, err)
		return
	}
	s.log.Info().Str("file", fh.Filename).Str("category", req.Category).Int("sections", summary.SectionsCreated).Int("matches", summary.MatchesCreated).Msg("upload ingested")
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleBatchMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.temporal == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("batch matching requires temporal"))
		return
	}
	var req struct {
		Language string `json:"language"`
		Region   string `json:"region"`
		Limit    int    `json:"limit"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
	}
	if req.Limit < 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("limit must not be negative"))
		return
	}
	runID := uuid.NewString()
	if err := s.runs.CreateRun(r.Context(), runID); err != nil {
		s.serverError(w, err)
		return
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       batchWorkflowID(runID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.BatchMatchWorkflow, workflows.BatchMatchInput{
		RunID:           runID,
		Language:        req.Language,
		Region:          req.Region,
		Limit:           req.Limit,
		EmbedProviders:  s.embedProviders,
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		_ = s.runs.UpdateRun(r.Context(), runID, storage.RunStatusFailed, 0, "")
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"batch_run_id": runID, "workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleBatchMatchScoped(w http.ResponseWriter, r *http.Request) {
	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/batch-match/"), "/")
	if runID == "" || strings.Contains(runID, "/") {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if s.temporal != nil {
		resp, err := s.temporal.QueryWorkflow(r.Context(), batchWorkflowID(runID), "", workflows.QueryGetBatchProgress)
		if err == nil {
			var prog workflows.BatchProgress
			if err := resp.Get(&prog); err != nil {
				s.serverError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, prog)
			return
		}
	}
	// Closed or unknown workflows fall back to the stored run row.
	run, err := s.runs.GetRun(r.Context(), runID)
	if errors.Is(err, util.ErrNotFound) {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, workflows.BatchProgress{
		RunID:       run.RunID,
		CurrentStep: run.Status,
		Status:      run.Status,
		Inserted:    run.MatchCount,
		ReportPath:  run.ReportPath,
	})
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("request failed")
	writeErr(w, http.StatusInternalServerError, err)
}

func batchWorkflowID(runID string) string {
	return "batch-match-" + runID
}

func uploadRequest(values map[string][]string) (ingest.Request, error) {
	get := func(k string) string {
		if v := values[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}
	req := ingest.Request{
		Category: get("category"),
		Title:    get("title"),
		Language: get("language"),
	}
	if req.Category == "" || req.Title == "" {
		return ingest.Request{}, fmt.Errorf("category and title are required")
	}
	var err error
	if raw := get("max_segment_length"); raw != "" {
		if req.MaxSegmentLength, err = strconv.Atoi(raw); err != nil || req.MaxSegmentLength <= 0 {
			return ingest.Request{}, fmt.Errorf("invalid max_segment_length %q", raw)
		}
	}
	if raw := get("similarity_threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(t) {
			return ingest.Request{}, fmt.Errorf("invalid similarity_threshold %q", raw)
		}
		req.SimilarityThreshold = ingest.Threshold(t)
	}
	if raw := get("top_k"); raw != "" {
		if req.TopK, err = strconv.Atoi(raw); err != nil || req.TopK <= 0 {
			return ingest.Request{}, fmt.Errorf("invalid top_k %q", raw)
		}
	}
	return req, nil
}

// ingestUpload stores the file in its own directory under UploadDir and
// removes that directory afterwards. A failed removal is joined into the
// returned error.
func (s *Server) ingestUpload(ctx context.Context, fh *multipart.FileHeader, req ingest.Request) (summary models.UploadSummary, err error) {
	dir := filepath.Join(s.cfg.UploadDir, uuid.NewString())
	defer func() {
		if rmErr := s.removeAll(dir); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("remove upload dir %s: %w", dir, rmErr))
		}
	}()
	path, err := saveUploadedFile(dir, fh)
	if err != nil {
		return models.UploadSummary{}, err
	}
	req.FilePath = path
	return s.ingestor.IngestDocument(ctx, req)
}

// saveUploadedFile keeps the client's base name so section ids follow the original file stem.
func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (string, error) {
	if err := util.EnsureDir(dstDir); err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	path := util.SafeJoin(dstDir, fh.Filename, "upload")
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	return path, nil
}

func uploadedFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	if files := m["file"]; len(files) > 0 {
		return files[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "EG-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusServiceUnavailable:
		return apiError{
			Code:    "EG-API-5030",
			Message: "Batch matching is not configured. Start the worker and Temporal, then retry.",
		}
	case status >= 500:
		switch {
		case strings.Contains(raw, "does not exist"), strings.Contains(raw, "no such table"):
			return apiError{
				Code:    "EG-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "EG-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "EG-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "EG-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "EG-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "EG-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusConflict:
		code = "EG-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "unsupported category"):
			msg = "Category must be guideline or regulation."
		case strings.Contains(raw, "category and title are required"):
			msg = "Both category and title are required."
		case strings.Contains(raw, "no file provided"):
			msg = "No file was provided."
		case strings.Contains(raw, "status must not be empty"):
			msg = "Status must not be empty."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.HasPrefix(raw, "invalid "):
			msg = err.Error()
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
