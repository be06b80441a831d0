package api

import (
	"net/http"

	"go.uber.org/zap"

	"lending/internal/lending"
)

// BookRequest is the request body for creating and updating books.
type BookRequest struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	TotalCopies int    `json:"total_copies"`
}

func (s *Server) decodeBookRequest(w http.ResponseWriter, r *http.Request) (lending.BookInput, bool) {
	var req BookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("Failed to decode request body", zap.Error(err))
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return lending.BookInput{}, false
	}
	if req.ISBN == "" || req.Title == "" || req.Author == "" {
		s.writeError(w, http.StatusBadRequest, "isbn, title and author are required")
		return lending.BookInput{}, false
	}
	if req.TotalCopies < 0 {
		s.writeError(w, http.StatusBadRequest, "total_copies must not be negative")
		return lending.BookInput{}, false
	}
	return lending.BookInput{
		ISBN:        req.ISBN,
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		TotalCopies: req.TotalCopies,
	}, true
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeBookRequest(w, r)
	if !ok {
		return
	}

	book, err := s.service.CreateBook(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.service.ListBooks(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleListAvailableBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.service.ListAvailableBooks(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	book, err := s.service.GetBook(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	in, ok := s.decodeBookRequest(w, r)
	if !ok {
		return
	}

	book, err := s.service.UpdateBook(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteBook(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Book deleted successfully"})
}
