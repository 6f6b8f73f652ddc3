package report

import "errors"

// Domain errors for status pushes.
var (
	// ErrUnauthorized is returned when the legacy transport is selected but
	// the controller credentials are not authorised.
	ErrUnauthorized = errors.New("report: controller credentials not authorised")

	// ErrDeliveryFailed is returned when the transport could not hand the
	// report to the controller.
	ErrDeliveryFailed = errors.New("report: delivery failed")

	// ErrBadStatus is returned when the controller answered without a
	// success status.
	ErrBadStatus = errors.New("report: controller did not confirm status 200")

	// ErrNoHost is returned when the legacy transport has no controller host.
	ErrNoHost = errors.New("report: controller host not configured")

	// ErrUnknownGeneration is returned for a generation other than modern or legacy.
	ErrUnknownGeneration = errors.New("report: unknown controller generation")
)
