// Package graph implements a directed graph runtime for agents with
// checkpointing, rollback and teleportation of the execution position.
//
// A graph is built from named nodes connected by edges, optionally nested
// into named subgraphs. All nodes live in a single flat arena indexed by a
// qualified id computed at build time, so position lookups are O(1) map
// access regardless of nesting depth. Execution is strictly sequential: one
// node is in flight at a time per run.
package graph

import (
	"context"
	"fmt"
	"strings"
)

// END is a special constant used to represent the end node in the graph.
// Inside a subgraph it marks the subgraph's finish: execution returns to the
// parent scope and continues from the subgraph node's outgoing edges.
const END = "END"

// NodeFunc is the body of a node. It receives the node's input and returns
// its output, which becomes the input of the next node along the edges.
// The live ExecutionContext is available via ExecutionFromContext(ctx).
type NodeFunc func(ctx context.Context, input any) (any, error)

// Edge represents a directed edge between two nodes of the same scope.
type Edge struct {
	From string
	To   string
}

// nodeEntry is a node registered in the arena. Subgraph boundary nodes have
// sub set and no function; entering one descends into its entry node.
type nodeEntry struct {
	id    string // qualified id, unique in the arena
	name  string // bare name as given by the caller
	desc  string
	fn    NodeFunc
	scope *Graph
	sub   *Graph
}

// arena is the flat node index shared by a graph and all its subgraphs.
type arena struct {
	nodes  map[string]*nodeEntry
	byName map[string][]*nodeEntry
	order  []string
}

func (a *arena) add(entry *nodeEntry) {
	if existing, ok := a.nodes[entry.id]; ok {
		// Re-adding a name within one scope replaces the node, like a map
		// assignment. The byName index must not double-count it.
		named := a.byName[existing.name]
		for i, e := range named {
			if e == existing {
				a.byName[existing.name] = append(named[:i], named[i+1:]...)
				break
			}
		}
	} else {
		a.order = append(a.order, entry.id)
	}
	a.nodes[entry.id] = entry
	a.byName[entry.name] = append(a.byName[entry.name], entry)
}

// resolve finds a node by qualified id or, failing that, by bare name.
// A bare name matching several nodes is an error: the caller cannot know
// which position is meant.
func (a *arena) resolve(target string) (*nodeEntry, error) {
	if entry, ok := a.nodes[target]; ok {
		return entry, nil
	}

	named := a.byName[target]
	switch len(named) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, target)
	case 1:
		return named[0], nil
	default:
		ids := make([]string, len(named))
		for i, e := range named {
			ids[i] = e.id
		}
		return nil, &AmbiguousNodeError{Name: target, NodeIDs: ids}
	}
}

// Graph is a buildable scope of nodes and edges. The root graph and every
// nested subgraph share one arena; a subgraph only adds a qualification
// prefix and its own edge list.
type Graph struct {
	arena            *arena
	prefix           string
	path             []string
	parent           *Graph
	boundary         *nodeEntry // the node representing this subgraph in the parent scope
	entryPoint       string     // qualified id
	edges            []Edge     // qualified ids
	conditionalEdges map[string]func(ctx context.Context, output any) string
}

// NewGraph creates a new empty root graph.
func NewGraph() *Graph {
	return &Graph{
		arena: &arena{
			nodes:  make(map[string]*nodeEntry),
			byName: make(map[string][]*nodeEntry),
		},
		conditionalEdges: make(map[string]func(ctx context.Context, output any) string),
	}
}

// qualify maps a bare name to the qualified id within this scope.
func (g *Graph) qualify(name string) string {
	return g.prefix + name
}

// AddNode adds a node with the given name, description and function to this
// scope. Names must not contain '/', which separates subgraph scopes in
// qualified ids; offending names are rejected by Compile.
func (g *Graph) AddNode(name string, description string, fn NodeFunc) {
	g.arena.add(&nodeEntry{
		id:    g.qualify(name),
		name:  name,
		desc:  description,
		fn:    fn,
		scope: g,
	})
}

// AddEdge adds an edge between the "from" and "to" nodes of this scope.
// END as "to" finishes the scope: the run for the root graph, the subgraph
// for a nested scope.
func (g *Graph) AddEdge(from, to string) {
	qualifiedTo := END
	if to != END {
		qualifiedTo = g.qualify(to)
	}
	g.edges = append(g.edges, Edge{
		From: g.qualify(from),
		To:   qualifiedTo,
	})
}

// AddConditionalEdge adds an edge whose target node is determined at runtime
// from the source node's output. The condition returns a bare node name in
// this scope, or END.
func (g *Graph) AddConditionalEdge(from string, condition func(ctx context.Context, output any) string) {
	g.conditionalEdges[g.qualify(from)] = condition
}

// SetEntryPoint sets the entry node of this scope.
func (g *Graph) SetEntryPoint(name string) {
	g.entryPoint = g.qualify(name)
}

// AddSubgraph adds a named nested scope as a node of this graph and returns
// its builder. Edges of this scope that point at the subgraph's name route
// into the subgraph's entry node; the subgraph reaching END continues from
// this node's outgoing edges.
func (g *Graph) AddSubgraph(name string) *Graph {
	sub := &Graph{
		arena:            g.arena,
		prefix:           g.qualify(name) + "/",
		path:             append(append([]string{}, g.path...), name),
		parent:           g,
		conditionalEdges: make(map[string]func(ctx context.Context, output any) string),
	}

	boundary := &nodeEntry{
		id:    g.qualify(name),
		name:  name,
		desc:  "Subgraph: " + name,
		scope: g,
		sub:   sub,
	}
	sub.boundary = boundary
	g.arena.add(boundary)
	return sub
}

// Compile validates the graph and returns a Runnable.
func (g *Graph) Compile() (*Runnable, error) {
	if g.parent != nil {
		return nil, fmt.Errorf("only the root graph can be compiled")
	}
	if err := g.checkNodeNames(); err != nil {
		return nil, err
	}
	if err := g.checkEntryPoints(); err != nil {
		return nil, err
	}

	return &Runnable{graph: g}, nil
}

// checkNodeNames rejects bare names containing the scope separator. Such a
// name would collide with the qualified id of a same-named node inside a
// subgraph.
func (g *Graph) checkNodeNames() error {
	for _, id := range g.arena.order {
		if name := g.arena.nodes[id].name; strings.Contains(name, "/") {
			return fmt.Errorf("%w: %q", ErrInvalidNodeName, name)
		}
	}
	return nil
}

func (g *Graph) checkEntryPoints() error {
	if g.entryPoint == "" {
		return ErrEntryPointNotSet
	}
	if _, ok := g.arena.nodes[g.entryPoint]; !ok {
		return fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}
	for _, id := range g.arena.order {
		entry := g.arena.nodes[id]
		if entry.sub != nil && entry.sub.parent == g {
			if err := entry.sub.checkSubEntry(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) checkSubEntry() error {
	if g.entryPoint == "" {
		return fmt.Errorf("%w for subgraph %s", ErrEntryPointNotSet, g.boundary.id)
	}
	if _, ok := g.arena.nodes[g.entryPoint]; !ok {
		return fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}
	for _, id := range g.arena.order {
		entry := g.arena.nodes[id]
		if entry.sub != nil && entry.sub.parent == g {
			if err := entry.sub.checkSubEntry(); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateUniqueNames checks that every bare node name, including inside
// nested subgraphs, occurs exactly once in the arena. The persistence
// feature calls this at run start: checkpoints record position by node
// name, so duplicates would make restoration unsound.
func (g *Graph) validateUniqueNames() error {
	for _, id := range g.arena.order {
		entry := g.arena.nodes[id]
		named := g.arena.byName[entry.name]
		if len(named) > 1 {
			ids := make([]string, len(named))
			for i, e := range named {
				ids[i] = e.id
			}
			return &DuplicateNodeError{Name: entry.name, NodeIDs: ids}
		}
	}
	return nil
}
