package report

import (
	"context"
	"time"

	"github.com/nerrad567/govee-local-bridge/internal/node"
)

// Report is one driver update ready for delivery.
type Report struct {
	Address string
	Driver  node.DriverName
	Value   int
	UOM     node.UOM

	// Text is the percent-encoded text attribute.
	Text string

	// HasText marks a text report. Text may be empty, for instance when the
	// input was only dots, and is still sent.
	HasText bool
}

// IsText reports whether r carries a text attribute.
func (r Report) IsText() bool {
	return r.HasText || r.Text != ""
}

// Status is the outcome class of a push.
type Status string

// Push outcomes.
const (
	// StatusDelivered means the transport accepted the report (direct) or the
	// controller confirmed it (REST).
	StatusDelivered Status = "delivered"

	// StatusFailed means the report never reached the controller.
	StatusFailed Status = "failed"

	// StatusRejected means the controller answered without confirming, or the
	// push was refused before any network call.
	StatusRejected Status = "rejected"

	// StatusSkipped means the lifecycle gate was closed; nothing changed.
	StatusSkipped Status = "skipped"
)

// Result describes what happened to a push. It is a value, never an error.
type Result struct {
	ID        string          `json:"id"`
	Address   string          `json:"address"`
	Driver    node.DriverName `json:"driver"`
	Value     int             `json:"value"`
	Text      string          `json:"text,omitempty"`
	Transport string          `json:"transport,omitempty"`
	Status    Status          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Duration  time.Duration   `json:"duration_ns"`
	At        time.Time       `json:"at"`

	// Err is the cause for non-delivered results, for errors.Is checks.
	Err error `json:"-"`
}

// OK reports whether the push was delivered.
func (r Result) OK() bool {
	return r.Status == StatusDelivered
}

func (r Result) withErr(status Status, err error) Result {
	r.Status = status
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Transport delivers a report. Implementations never block on retries and
// always return a Result.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, r Report) Result
}

func resultFor(r Report, transport string) Result {
	return Result{
		Address:   r.Address,
		Driver:    r.Driver,
		Value:     r.Value,
		Text:      r.Text,
		Transport: transport,
	}
}
