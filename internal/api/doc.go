// Package api implements the HTTP status API and WebSocket stream for the bridge.
//
// This package provides:
//   - Read-only node endpoints backed by the node registry
//   - Manual push endpoints that go through the same lifecycle gate as host polls
//   - A WebSocket hub that streams every push result
//   - Prometheus metrics on /metrics
//
// # Security
//
// When security.jwt.secret is set, every route except health and metrics
// requires an HS256 bearer token. WebSocket connections authenticate with a
// single-use ticket obtained from POST /api/v1/auth/ws-ticket so the token
// never appears in a URL. With no secret the API is open; bind it to
// localhost in that case.
//
// # Graceful Degradation
//
// The server works without MQTT or InfluxDB. Health reports each optional
// dependency separately.
package api
