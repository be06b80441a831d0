package api

import (
	"net/http"
	"strconv"
	"time"
)

const (
	defaultTopBooksLimit = 10
	defaultActivityLimit = 20
	defaultTopBooksDays  = 30
)

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *Server) handleTopBooks(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultTopBooksLimit)
	days := queryInt(r, "days", defaultTopBooksDays)
	since := time.Now().UTC().AddDate(0, 0, -days)

	stats, err := s.service.TopBooks(r.Context(), limit, since)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultActivityLimit)

	events, err := s.service.RecentActivity(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}
