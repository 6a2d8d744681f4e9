package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/smallnest/agentgraph/message"
)

// ToolCall records a forward tool invocation made during a run, so that a
// rollback can invoke registered compensations in reverse order.
type ToolCall struct {
	Name string
	Args any
	At   time.Time
}

// ExecutionContext tracks an agent run's position in the graph: the current
// node, its subgraph nesting path, the conversation history being built and
// the pending input of the next node.
//
// It is owned exclusively by its run. Node bodies, the persistence
// coordinator and rollback all mutate position through SetExecutionPoint,
// keeping a single writer at a time.
type ExecutionContext struct {
	agentID   string
	runnable  *Runnable
	current   *nodeEntry
	history   []message.Message
	pending   any
	redirect  bool
	toolCalls []ToolCall
}

// AgentID returns the agent identity of this run.
func (ec *ExecutionContext) AgentID() string {
	return ec.agentID
}

// CurrentNode returns the bare name of the node currently positioned.
func (ec *ExecutionContext) CurrentNode() string {
	if ec.current == nil {
		return ""
	}
	return ec.current.name
}

// CurrentNodeID returns the qualified id of the current node.
func (ec *ExecutionContext) CurrentNodeID() string {
	if ec.current == nil {
		return ""
	}
	return ec.current.id
}

// NodePath returns the subgraph nesting path of the current node, outermost
// first. It is empty for nodes of the root scope.
func (ec *ExecutionContext) NodePath() []string {
	if ec.current == nil {
		return nil
	}
	return append([]string{}, ec.current.scope.path...)
}

// PendingInput returns the input the current node is about to receive (or
// received, when read from inside the node body).
func (ec *ExecutionContext) PendingInput() any {
	return ec.pending
}

// History returns the conversation history accumulated so far.
func (ec *ExecutionContext) History() []message.Message {
	return message.CloneHistory(ec.history)
}

// SetHistory replaces the conversation history wholesale.
func (ec *ExecutionContext) SetHistory(history []message.Message) {
	ec.history = message.CloneHistory(history)
}

// AppendMessage appends a message to the conversation history.
func (ec *ExecutionContext) AppendMessage(m message.Message) {
	ec.history = append(ec.history, m)
}

// RecordToolCall records a forward tool invocation for later compensation.
func (ec *ExecutionContext) RecordToolCall(name string, args any) {
	ec.toolCalls = append(ec.toolCalls, ToolCall{Name: name, Args: args, At: time.Now()})
}

// ToolCalls returns the recorded tool invocations in chronological order.
func (ec *ExecutionContext) ToolCalls() []ToolCall {
	out := make([]ToolCall, len(ec.toolCalls))
	copy(out, ec.toolCalls)
	return out
}

// SetExecutionPoint overwrites the run's position: the next scheduling step
// executes target with input as if arriving there via an edge, and the
// conversation history is replaced wholesale with history.
//
// target may be a bare node name or a qualified id and may sit anywhere in
// the graph, forward or backward of the current position, inside any
// subgraph. A name that matches no node fails with ErrNodeNotFound; a name
// matching several nodes fails with AmbiguousNodeError.
//
// Teleporting from inside a node's own body causes that node to be
// re-entered if it targets itself (directly or via a cycle); guarding
// against infinite re-teleportation, for example with a one-shot flag, is
// the node logic's responsibility.
func (ec *ExecutionContext) SetExecutionPoint(target string, history []message.Message, input any) error {
	entry, err := ec.runnable.graph.arena.resolve(target)
	if err != nil {
		return err
	}
	// A subgraph boundary has no body of its own; land on its entry node.
	for entry.sub != nil {
		inner, ok := ec.runnable.graph.arena.nodes[entry.sub.entryPoint]
		if !ok {
			return fmt.Errorf("%w: entry point of subgraph %s", ErrNodeNotFound, entry.id)
		}
		entry = inner
	}

	ec.current = entry
	ec.pending = input
	ec.history = message.CloneHistory(history)
	ec.redirect = true
	return nil
}

type executionContextKey struct{}

// WithExecution attaches the execution context to ctx. The runner does this
// before invoking node bodies.
func WithExecution(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey{}, ec)
}

// ExecutionFromContext retrieves the live execution context inside a node
// body, or nil when called outside a run.
func ExecutionFromContext(ctx context.Context) *ExecutionContext {
	ec, _ := ctx.Value(executionContextKey{}).(*ExecutionContext)
	return ec
}
