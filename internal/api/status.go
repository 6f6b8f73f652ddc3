package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemStatus is the response body of GET /api/v1/status.
type SystemStatus struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Transport     string         `json:"transport"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Nodes         NodeMetrics    `json:"nodes"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// NodeMetrics summarises the node registry.
type NodeMetrics struct {
	Total      int `json:"total"`
	Registered int `json:"registered"`
	Started    int `json:"started"`
}

// handleStatus returns bridge status for dashboards that do not scrape
// Prometheus.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Transport:     s.pusher.TransportName(),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
	}

	for _, n := range s.registry.List() {
		status.Nodes.Total++
		if n.Registered() {
			status.Nodes.Registered++
		}
		if n.Started() {
			status.Nodes.Started++
		}
	}

	writeJSON(w, http.StatusOK, status)
}
