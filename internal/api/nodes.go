package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/govee-local-bridge/internal/node"
	"github.com/nerrad567/govee-local-bridge/internal/report"
)

// pushTextRequest is the request body for POST .../drivers/{driver}/text.
type pushTextRequest struct {
	Text string `json:"text"`
}

// pushValueRequest is the request body for POST .../drivers/{driver}/value.
type pushValueRequest struct {
	Value *int `json:"value"`
}

// handleListNodes returns every registered node, controller first.
func (s *Server) handleListNodes(w http.ResponseWriter, _ *http.Request) {
	snaps := snapshots(s.registry)()
	writeJSON(w, http.StatusOK, map[string]any{"nodes": snaps, "count": len(snaps)})
}

// handleGetNode returns a single node.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.lookupNode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n.Snapshot())
}

// handlePushText pushes a text update for one driver. The driver value
// toggles exactly as it does for host polls.
func (s *Server) handlePushText(w http.ResponseWriter, r *http.Request) {
	n, ok := s.lookupNode(w, r)
	if !ok {
		return
	}

	var req pushTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res := s.pusher.PushText(r.Context(), n, driverParam(r), req.Text)
	s.writeResult(w, r, res)
}

// handlePushValue sets and pushes a plain driver value.
func (s *Server) handlePushValue(w http.ResponseWriter, r *http.Request) {
	n, ok := s.lookupNode(w, r)
	if !ok {
		return
	}

	var req pushValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	res := s.pusher.PushValue(r.Context(), n, driverParam(r), *req.Value)
	s.writeResult(w, r, res)
}

// writeResult maps a push result onto an HTTP response.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res report.Result) {
	s.logger.Info("manual push",
		"address", res.Address,
		"driver", res.Driver,
		"status", res.Status,
		"subject", r.Context().Value(ctxKeySubject),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	switch {
	case res.OK():
		writeJSON(w, http.StatusOK, res)
	case res.Status == report.StatusSkipped:
		writeConflict(w, res.Error)
	case errors.Is(res.Err, node.ErrMissingDriver):
		writeNotFound(w, res.Error)
	default:
		writeJSON(w, http.StatusBadGateway, res)
	}
}

// lookupNode resolves {address}, writing a 404 when it is unknown.
func (s *Server) lookupNode(w http.ResponseWriter, r *http.Request) (*node.Node, bool) {
	address := chi.URLParam(r, "address")
	n, err := s.registry.Get(address)
	if err != nil {
		if errors.Is(err, node.ErrNodeNotFound) {
			writeNotFound(w, "node not found")
			return nil, false
		}
		writeInternalError(w, "failed to get node")
		return nil, false
	}
	return n, true
}

func driverParam(r *http.Request) node.DriverName {
	return node.DriverName(strings.ToUpper(chi.URLParam(r, "driver")))
}
