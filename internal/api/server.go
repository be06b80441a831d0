// Package api exposes the lending service as a JSON HTTP API.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"lending/internal/history"
	"lending/internal/lending"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server handles HTTP requests for the lending service.
type Server struct {
	service *lending.Service
	logger  *zap.Logger
}

// NewServer creates a new API server.
func NewServer(service *lending.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{service: service, logger: logger}
}

// RegisterRoutes registers all API routes on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /books", s.handleCreateBook)
	mux.HandleFunc("GET /books", s.handleListBooks)
	mux.HandleFunc("GET /books/available", s.handleListAvailableBooks)
	mux.HandleFunc("GET /books/{id}", s.handleGetBook)
	mux.HandleFunc("PUT /books/{id}", s.handleUpdateBook)
	mux.HandleFunc("DELETE /books/{id}", s.handleDeleteBook)

	mux.HandleFunc("POST /members", s.handleCreateMember)
	mux.HandleFunc("GET /members", s.handleListMembers)
	mux.HandleFunc("GET /members/{id}", s.handleGetMember)
	mux.HandleFunc("PUT /members/{id}", s.handleUpdateMember)
	mux.HandleFunc("DELETE /members/{id}", s.handleDeleteMember)

	mux.HandleFunc("POST /transactions/borrow", s.handleBorrow)
	mux.HandleFunc("POST /transactions/{id}/return", s.handleReturn)
	mux.HandleFunc("GET /transactions/overdue", s.handleListOverdue)

	mux.HandleFunc("POST /fines/{id}/pay", s.handlePayFine)

	mux.HandleFunc("GET /reports/top-books", s.handleTopBooks)
	mux.HandleFunc("GET /reports/activity", s.handleRecentActivity)

	mux.HandleFunc("GET /health", s.handleHealth)
}

// errorResponse is the body shape of every non-2xx response.
type errorResponse struct {
	Detail string `json:"detail"`
}

// messageResponse confirms an operation that returns no record.
type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

// writeServiceError maps service errors to HTTP status codes. Not-found and
// conflict errors carry their message through; anything else is an internal
// error and stays opaque to the client.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case lending.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case lending.IsConflict(err):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, history.ErrDisabled):
		s.writeError(w, http.StatusServiceUnavailable, "circulation history is not configured")
	default:
		s.logger.Error("Request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pathID parses the {id} path segment. The second return value reports
// whether parsing succeeded; on failure the response is already written.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
