package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrStorageRequired is returned when persistence is configured without
	// a storage provider.
	ErrStorageRequired = errors.New("persistence requires a storage provider")

	// ErrInvalidNodeName is returned at compile time for node names
	// containing '/', which is reserved for qualified ids.
	ErrInvalidNodeName = errors.New("node name must not contain '/'")
)

// DuplicateNodeError reports that a bare node name occurs more than once
// across the graph, including inside nested subgraphs. Checkpoints address
// nodes by name, so duplicates make restoration ambiguous.
type DuplicateNodeError struct {
	// Name is the duplicated bare node name.
	Name string
	// NodeIDs are the qualified ids of every node carrying the name.
	NodeIDs []string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node name %q (found at %s): checkpointing requires unique node names across the whole graph",
		e.Name, strings.Join(e.NodeIDs, ", "))
}

// AmbiguousNodeError reports that a teleport target name resolves to more
// than one node.
type AmbiguousNodeError struct {
	Name    string
	NodeIDs []string
}

func (e *AmbiguousNodeError) Error() string {
	return fmt.Sprintf("node name %q is ambiguous (candidates: %s)",
		e.Name, strings.Join(e.NodeIDs, ", "))
}
