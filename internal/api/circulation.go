package api

import (
	"net/http"

	"go.uber.org/zap"
)

// BorrowRequest is the request body for borrowing a book.
type BorrowRequest struct {
	BookID   int64 `json:"book_id"`
	MemberID int64 `json:"member_id"`
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("Failed to decode request body", zap.Error(err))
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BookID == 0 || req.MemberID == 0 {
		s.writeError(w, http.StatusBadRequest, "book_id and member_id are required")
		return
	}

	txn, err := s.service.Borrow(r.Context(), req.BookID, req.MemberID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	txn, err := s.service.Return(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleListOverdue(w http.ResponseWriter, r *http.Request) {
	txns, err := s.service.ListOverdueTransactions(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handlePayFine(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	fine, err := s.service.PayFine(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fine)
}
