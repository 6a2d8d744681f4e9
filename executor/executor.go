// Package executor defines the opaque prompt executor the graph calls into
// for nodes that need model responses. The checkpoint engine neither knows
// nor cares about the wire protocol behind it; it only persists whatever
// message history results.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/message"
)

// PromptExecutor produces a model response for a conversation history.
type PromptExecutor interface {
	Execute(ctx context.Context, history []message.Message) (message.Message, error)
}

// PromptExecutorFunc adapts a function to PromptExecutor.
type PromptExecutorFunc func(ctx context.Context, history []message.Message) (message.Message, error)

// Execute calls the wrapped function.
func (f PromptExecutorFunc) Execute(ctx context.Context, history []message.Message) (message.Message, error) {
	return f(ctx, history)
}

// NewLLMNode returns a node body that appends string input to the run's
// history as a user message, asks the executor for a response, appends it,
// and outputs the response content.
func NewLLMNode(exec PromptExecutor) graph.NodeFunc {
	return func(ctx context.Context, input any) (any, error) {
		ec := graph.ExecutionFromContext(ctx)
		if ec == nil {
			return nil, errors.New("llm node requires a graph run context")
		}

		if s, ok := input.(string); ok && s != "" {
			ec.AppendMessage(message.User(s))
		}

		reply, err := exec.Execute(ctx, ec.History())
		if err != nil {
			return nil, fmt.Errorf("prompt executor failed: %w", err)
		}
		ec.AppendMessage(reply)
		return reply.Content, nil
	}
}
