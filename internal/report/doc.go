// Package report pushes node status to the remote controller.
//
// The controller only notifies its own listeners when a driver value changes,
// so text updates ride on a toggle: every push flips the target driver between
// 1 and 0 and attaches the new text as a percent-encoded attribute.
//
// A push flows through:
//
//	node.CheckReady → Encode (toggle + text) → Selector → DirectTransport | RESTTransport
//
// Which transport is used is fixed when the Selector is built from the
// controller generation in config: modern hosts accept a direct "status"
// message, legacy hosts are reached through the controller's REST report
// endpoint with basic auth.
//
// Nothing in this package returns delivery errors upward. Every push yields a
// Result whose Status says whether it was delivered, failed or rejected; the
// error that caused it is attached for logging and tests.
package report
