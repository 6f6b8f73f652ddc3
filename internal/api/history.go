package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/govee-local-bridge/internal/history"
	"github.com/nerrad567/govee-local-bridge/internal/report"
)

// handleListHistory returns the push log across all nodes.
//
// Query parameters:
//   - status: delivered, failed, rejected or skipped
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	s.listHistory(w, r, "")
}

// handleNodeHistory returns the push log for one node.
func (s *Server) handleNodeHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookupNode(w, r); !ok {
		return
	}
	s.listHistory(w, r, chi.URLParam(r, "address"))
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request, address string) {
	if s.history == nil {
		writeNotFound(w, "push history is disabled")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		Address: address,
		Status:  report.Status(q.Get("status")),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeBadRequest(w, name+" must be a non-negative integer")
			return
		}
		*dst = v
	}

	res, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing push history failed", "error", err)
		writeInternalError(w, "failed to list push history")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
