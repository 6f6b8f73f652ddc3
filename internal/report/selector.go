package report

import (
	"context"
	"fmt"

	"github.com/nerrad567/govee-local-bridge/internal/infrastructure/config"
)

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	// Generation is config.GenerationModern or config.GenerationLegacy.
	Generation string

	// Sender is required for modern hosts.
	Sender Sender

	// REST configures the legacy transport.
	REST RESTOptions
}

// Selector routes every report to the transport for the configured
// controller generation. The choice is made once, in NewSelector.
type Selector struct {
	transport Transport
	legacy    bool
	creds     Credentials
}

// NewSelector builds the transport for opts.Generation.
func NewSelector(opts SelectorOptions) (*Selector, error) {
	switch opts.Generation {
	case config.GenerationModern:
		if opts.Sender == nil {
			return nil, fmt.Errorf("report: modern generation requires a sender")
		}
		return &Selector{transport: NewDirectTransport(opts.Sender)}, nil
	case config.GenerationLegacy:
		return &Selector{
			transport: NewRESTTransport(opts.REST),
			legacy:    true,
			creds:     opts.REST.Credentials,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGeneration, opts.Generation)
	}
}

// Name implements Transport with the name of the selected transport.
func (s *Selector) Name() string { return s.transport.Name() }

// Deliver implements Transport. Legacy reports with unauthorised credentials
// are rejected without a network call.
func (s *Selector) Deliver(ctx context.Context, r Report) Result {
	if s.legacy && !s.creds.Authorized {
		return resultFor(r, s.transport.Name()).withErr(StatusRejected, ErrUnauthorized)
	}
	return s.transport.Deliver(ctx, r)
}
