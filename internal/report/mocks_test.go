package report

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/nerrad567/govee-local-bridge/internal/node"
)

// mockSender records host messages.
type mockSender struct {
	mu       sync.Mutex
	messages []any
	channels []string
	err      error
}

func (m *mockSender) Send(message any, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, message)
	m.channels = append(m.channels, channel)
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// countingBody counts Close calls on a response body.
type countingBody struct {
	io.Reader
	mu     sync.Mutex
	closes int
}

func (b *countingBody) Close() error {
	b.mu.Lock()
	b.closes++
	b.mu.Unlock()
	return nil
}

// mockHTTPClient answers every request with a canned body or error and
// counts connection cleanups.
type mockHTTPClient struct {
	mu       sync.Mutex
	requests []*http.Request
	body     string
	status   int
	err      error
	bodies   []*countingBody
	closes   int
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	body := &countingBody{Reader: strings.NewReader(m.body)}
	m.bodies = append(m.bodies, body)
	status := m.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{StatusCode: status, Body: body, Request: req}, nil
}

func (m *mockHTTPClient) CloseIdleConnections() {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
}

func (m *mockHTTPClient) factory() ClientFactory {
	return func() HTTPClient { return m }
}

func (m *mockHTTPClient) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// mockTransport records reports and returns a fixed status.
type mockTransport struct {
	mu      sync.Mutex
	reports []Report
	status  Status
}

func (m *mockTransport) Name() string { return "mock" }

func (m *mockTransport) Deliver(_ context.Context, r Report) Result {
	m.mu.Lock()
	m.reports = append(m.reports, r)
	m.mu.Unlock()

	status := m.status
	if status == "" {
		status = StatusDelivered
	}
	var err error
	if status != StatusDelivered {
		err = errors.New("mock failure")
	}
	return resultFor(r, "mock").withErr(status, err)
}

// mockStore records driver saves.
type mockStore struct {
	mu    sync.Mutex
	saves []string
	err   error
}

func (m *mockStore) SaveDrivers(_ context.Context, n *node.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, n.Address())
	return m.err
}

// mockLogger records the level of every entry.
type mockLogger struct {
	mu     sync.Mutex
	levels []string
}

func (m *mockLogger) record(level string) {
	m.mu.Lock()
	m.levels = append(m.levels, level)
	m.mu.Unlock()
}

func (m *mockLogger) Debug(string, ...any) { m.record("debug") }
func (m *mockLogger) Info(string, ...any)  { m.record("info") }
func (m *mockLogger) Warn(string, ...any)  { m.record("warn") }
func (m *mockLogger) Error(string, ...any) { m.record("error") }

func (m *mockLogger) count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.levels {
		if l == level {
			n++
		}
	}
	return n
}
