package api

import (
	"net/http"

	"go.uber.org/zap"

	"lending/internal/lending"
)

// MemberRequest is the request body for creating and updating members.
type MemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) decodeMemberRequest(w http.ResponseWriter, r *http.Request) (lending.MemberInput, bool) {
	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("Failed to decode request body", zap.Error(err))
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return lending.MemberInput{}, false
	}
	if req.Name == "" || req.Email == "" {
		s.writeError(w, http.StatusBadRequest, "name and email are required")
		return lending.MemberInput{}, false
	}
	return lending.MemberInput{Name: req.Name, Email: req.Email}, true
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeMemberRequest(w, r)
	if !ok {
		return
	}

	member, err := s.service.CreateMember(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, member)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.service.ListMembers(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	member, err := s.service.GetMember(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	in, ok := s.decodeMemberRequest(w, r)
	if !ok {
		return
	}

	member, err := s.service.UpdateMember(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.service.DeleteMember(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Member deleted successfully"})
}
