// Package node holds the entity tree the bridge exposes to the remote
// controller: one controller node and its child device nodes.
//
// Each node owns an ordered set of drivers (named integer value slots with a
// fixed unit of measure) and two initialisation flags:
//
//   - registered: the host acknowledged the add-node request (persisted)
//   - started: the host sent its start signal after controller registration
//
// Pushes are only allowed once both flags are set; see CanPush.
//
// # Thread Safety
//
// Node and Registry are safe for concurrent use. Driver read-modify-write goes
// through UpdateDriver so two concurrent pushes never compute the same toggle.
package node
