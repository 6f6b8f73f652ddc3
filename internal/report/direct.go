package report

import (
	"context"
	"fmt"

	"github.com/nerrad567/govee-local-bridge/internal/node"
)

// StatusChannel is the host channel status messages are sent on.
const StatusChannel = "status"

// TransportDirect names the direct-message transport in results and metrics.
const TransportDirect = "direct"

// Sender hands a message to the host process. Send must not wait for the
// controller; the host owns queueing and retry.
type Sender interface {
	Send(message any, channel string) error
}

// StatusMessage is the body of a direct status message.
type StatusMessage struct {
	Set []StatusEntry `json:"set"`
}

// StatusEntry is one driver update inside a StatusMessage.
type StatusEntry struct {
	Address string          `json:"address"`
	Driver  node.DriverName `json:"driver"`
	Value   int             `json:"value"`
	UOM     node.UOM        `json:"uom"`
	Text    *string         `json:"text,omitempty"`
}

// DirectTransport sends reports to modern hosts as status messages.
type DirectTransport struct {
	sender Sender
}

// NewDirectTransport creates a transport on sender.
func NewDirectTransport(sender Sender) *DirectTransport {
	return &DirectTransport{sender: sender}
}

// Name implements Transport.
func (t *DirectTransport) Name() string { return TransportDirect }

// Deliver implements Transport. A report counts as delivered once the host
// accepted the message.
func (t *DirectTransport) Deliver(_ context.Context, r Report) Result {
	res := resultFor(r, TransportDirect)

	entry := StatusEntry{
		Address: r.Address,
		Driver:  r.Driver,
		Value:   r.Value,
		UOM:     r.UOM,
	}
	if r.IsText() {
		text := r.Text
		entry.Text = &text
	}
	msg := StatusMessage{Set: []StatusEntry{entry}}
	if err := t.sender.Send(msg, StatusChannel); err != nil {
		return res.withErr(StatusFailed, fmt.Errorf("%w: %w", ErrDeliveryFailed, err))
	}
	return res.withErr(StatusDelivered, nil)
}
