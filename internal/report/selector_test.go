package report

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/config"
	"github.com/nerrad567/govee-local-bridge/internal/node"
)

func TestNewSelector(t *testing.T) {
	tests := []struct {
		name     string
		opts     SelectorOptions
		wantName string
		wantErr  bool
	}{
		{
			name:     "modern uses direct",
			opts:     SelectorOptions{Generation: config.GenerationModern, Sender: &mockSender{}},
			wantName: TransportDirect,
		},
		{
			name:    "modern without sender",
			opts:    SelectorOptions{Generation: config.GenerationModern},
			wantErr: true,
		},
		{
			name:     "legacy uses rest",
			opts:     SelectorOptions{Generation: config.GenerationLegacy},
			wantName: TransportREST,
		},
		{
			name:    "unknown generation",
			opts:    SelectorOptions{Generation: "pg4"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSelector(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewSelector() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSelector() error = %v", err)
			}
			if s.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.wantName)
			}
		})
	}
}

func TestSelector_LegacyUnauthorized(t *testing.T) {
	client := &mockHTTPClient{body: okBody}
	s, err := NewSelector(SelectorOptions{
		Generation: config.GenerationLegacy,
		REST: RESTOptions{
			Credentials: Credentials{Host: "10.0.0.1", Port: 80, Authorized: false},
			ProfileNum:  7,
			NewClient:   client.factory(),
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	res := s.Deliver(context.Background(), Report{Address: "gvld_0", Driver: node.DriverText, Value: 1})

	if res.Status != StatusRejected || !errors.Is(res.Err, ErrUnauthorized) {
		t.Errorf("result = %s/%v, want rejected/ErrUnauthorized", res.Status, res.Err)
	}
	if client.requestCount() != 0 {
		t.Error("unauthorised push must not reach the network")
	}
}

func TestSelector_ModernIgnoresAuthorization(t *testing.T) {
	sender := &mockSender{}
	s, err := NewSelector(SelectorOptions{
		Generation: config.GenerationModern,
		Sender:     sender,
		REST:       RESTOptions{Credentials: Credentials{Authorized: false}},
	})
	if err != nil {
		t.Fatal(err)
	}

	res := s.Deliver(context.Background(), Report{Address: "gvld_0", Driver: node.DriverText, Value: 1})

	if !res.OK() {
		t.Errorf("Status = %s, want delivered", res.Status)
	}
	if sender.count() != 1 {
		t.Errorf("messages = %d, want 1", sender.count())
	}
}
