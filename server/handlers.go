package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/compute"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/core"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/engine"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/federation"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/memory"
	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/tools"
)

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type storeRequest struct {
	Key      string         `json:"key"`
	Data     any            `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type executeRequest struct {
	Tool      string          `json:"tool"`
	RequestID string          `json:"requestId,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req compute.Request
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.processor.Process(r.Context(), &req)
	if err != nil {
		s.logger.Error().Err(err).Str("type", req.Type).Msg("Processing error")
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.providers.ListBackends())
}

func (s *Server) handleMemoryStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, errors.New("key is required"))
		return
	}

	if err := s.memory.Store(r.Context(), req.Key, req.Data, req.Metadata); err != nil {
		s.logger.Error().Err(err).Str("key", req.Key).Msg("Memory store failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// memoryKey returns the key captured by a /memory catch-all route. chi routes
// on the escaped path when one is present, so %2F arrives still escaped.
func memoryKey(r *http.Request) (string, bool) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			return "", false
		}
		key = unescaped
	}
	return key, key != ""
}

func (s *Server) handleMemoryRetrieve(w http.ResponseWriter, r *http.Request) {
	key, ok := memoryKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("key is required"))
		return
	}
	rec, ok := s.memory.Retrieve(r.Context(), key)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("memory %q not found", key))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := memoryKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("key is required"))
		return
	}
	if err := s.memory.Delete(r.Context(), key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Memory delete failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	var q memory.Query
	if !s.decode(w, r, &q) {
		return
	}
	results := s.memory.Search(r.Context(), q)
	if results == nil {
		results = []memory.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleMemoryBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.memory.ListBackends())
}

func (s *Server) handleToolExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, errors.New("tool is required"))
		return
	}

	res, err := s.tools.Execute(r.Context(), req.Tool, &core.ToolParams{
		RequestID: req.RequestID,
		Input:     req.Params,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleToolList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count": s.tools.Count(),
		"tools": s.tools.Definitions(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		failed   *federation.AllProvidersFailedError
		notFound *tools.ToolNotFoundError
	)
	switch {
	case errors.Is(err, engine.ErrEmptyContent):
		return http.StatusBadRequest
	case errors.Is(err, federation.ErrNoHealthyBackend):
		return http.StatusServiceUnavailable
	case errors.As(err, &failed):
		return http.StatusBadGateway
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
