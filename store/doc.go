// Package store defines the checkpoint data model and the storage provider
// abstraction used to persist agent execution snapshots.
//
// A checkpoint captures everything needed to resume an agent run: the node
// about to execute, the input it was about to receive, the conversation
// history accumulated so far and optional serializable side-state. Saving is
// strictly append-only; superseding state is expressed by appending a new
// checkpoint with a higher version, and "latest" is resolved by the
// (version, createdAt) pair. A completed run is marked with a tombstone
// record, which is distinct from having no checkpoints at all.
//
// The package ships five Provider implementations in subpackages:
//   - memory: process-lifetime map, the default for tests
//   - file: one JSON file per checkpoint with atomic writes
//   - sqlite: single-host persistent storage without an external database
//   - postgres: append-only table for multi-host deployments
//   - redis: keys plus a per-agent sorted set scored by version
//
// Inputs of arbitrary Go types round-trip through TypedValue: register the
// type once with RegisterType and restored checkpoints decode the input back
// into its concrete type.
//
//	var req TravelRequest
//	store.RegisterType(req, "TravelRequest")
package store
