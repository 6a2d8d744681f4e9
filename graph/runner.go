package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/smallnest/agentgraph/log"
)

// Runnable is a compiled graph that can execute agent runs.
type Runnable struct {
	graph       *Graph
	persistence *Persistence
	logger      log.Logger
}

// WithPersistence attaches the checkpoint persistence feature to the
// runnable and returns it for chaining.
func (r *Runnable) WithPersistence(p *Persistence) *Runnable {
	r.persistence = p
	return r
}

// Persistence returns the attached persistence feature, or nil.
func (r *Runnable) Persistence() *Persistence {
	return r.persistence
}

// SetLogger sets the logger used by the runner. Defaults to the package
// logger from the log package.
func (r *Runnable) SetLogger(logger log.Logger) {
	r.logger = logger
}

func (r *Runnable) log() log.Logger {
	if r.logger != nil {
		return r.logger
	}
	return log.GetDefaultLogger()
}

// Run executes the graph for the given agent id, starting from the entry
// point with input, and returns the output of the last node before END.
//
// Nodes execute strictly sequentially. When the persistence feature is
// attached, the run may instead resume from the agent's latest checkpoint
// according to the configured rollback strategy, and a tombstone is written
// on successful completion.
func (r *Runnable) Run(ctx context.Context, agentID string, input any) (any, error) {
	if agentID == "" {
		agentID = fmt.Sprintf("agent_%s", uuid.New().String())
	}

	ec := &ExecutionContext{
		agentID:  agentID,
		runnable: r,
		current:  r.enter(r.graph.arena.nodes[r.graph.entryPoint]),
		pending:  input,
	}
	ctx = WithExecution(ctx, ec)

	if r.persistence != nil {
		if err := r.persistence.onRunStart(ctx, ec); err != nil {
			return nil, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := ec.current
		ec.redirect = false
		r.log().Debug("agent %s executing node %s", agentID, node.id)

		out, err := node.fn(ctx, ec.pending)
		if err != nil {
			return nil, fmt.Errorf("error in node %s: %w", node.name, err)
		}

		if !ec.redirect {
			next, err := r.nextNode(ctx, node, out)
			if err != nil {
				return nil, err
			}
			if next == nil {
				// Reached END of the root scope.
				if r.persistence != nil {
					if err := r.persistence.onRunFinish(ctx, ec); err != nil {
						return out, err
					}
				}
				return out, nil
			}
			ec.current = next
			ec.pending = out
		}

		if r.persistence != nil {
			if err := r.persistence.onNodeComplete(ctx, ec); err != nil {
				return nil, err
			}
		}
	}
}

// enter descends through subgraph boundary nodes to the first executable
// node. Entry points are validated at compile time.
func (r *Runnable) enter(entry *nodeEntry) *nodeEntry {
	for entry.sub != nil {
		entry = r.graph.arena.nodes[entry.sub.entryPoint]
	}
	return entry
}

// nextNode resolves the node to execute after from produced output.
// It returns (nil, nil) when the root scope reached END.
func (r *Runnable) nextNode(ctx context.Context, from *nodeEntry, output any) (*nodeEntry, error) {
	scope := from.scope

	if condition, ok := scope.conditionalEdges[from.id]; ok {
		name := condition(ctx, output)
		if name == "" {
			return nil, fmt.Errorf("conditional edge returned empty next node from %s", from.name)
		}
		if name == END {
			return r.exitScope(ctx, scope, output)
		}
		entry, ok := r.graph.arena.nodes[scope.qualify(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, scope.qualify(name))
		}
		return r.enter(entry), nil
	}

	for _, edge := range scope.edges {
		if edge.From != from.id {
			continue
		}
		if edge.To == END {
			return r.exitScope(ctx, scope, output)
		}
		entry, ok := r.graph.arena.nodes[edge.To]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, edge.To)
		}
		return r.enter(entry), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, from.name)
}

// exitScope handles END within a scope: the root scope finishes the run,
// a subgraph continues from its boundary node's edges in the parent scope.
func (r *Runnable) exitScope(ctx context.Context, scope *Graph, output any) (*nodeEntry, error) {
	if scope.parent == nil {
		return nil, nil
	}
	return r.nextNode(ctx, scope.boundary, output)
}
