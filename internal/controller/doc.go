// Package controller runs the bridge's controller node.
//
// The controller turns host events into node-tree changes and status pushes:
//
//   - custom parameters: validate IP_Addresses / Device_Names, then reconcile
//     the child device nodes (create, rename, remove)
//   - add-node-done: mark a node registered and release any waiting creation
//   - start: open the lifecycle gate
//   - poll: push a timestamp to the controller (short) or every child (long)
//   - stop: report every child as unknown and close the gate
//   - commands: DISCOVER is accepted and ignored
//
// Node creation on the host is asynchronous. Each creation waits for its own
// add-node-done, bounded by the configured create timeout.
package controller
