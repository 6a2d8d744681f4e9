// Package adapter bridges langchaingo models into the runtime's prompt
// executor interface, so any llms.Model can serve graph LLM nodes.
package adapter

import (
	"context"
	"fmt"

	"github.com/smallnest/agentgraph/message"
	"github.com/tmc/langchaingo/llms"
)

// LLMAdapter adapts a langchaingo llms.Model to executor.PromptExecutor.
type LLMAdapter struct {
	model   llms.Model
	options []llms.CallOption
}

// NewLLMAdapter creates an adapter around model. Call options are applied
// on every generation.
func NewLLMAdapter(model llms.Model, options ...llms.CallOption) *LLMAdapter {
	return &LLMAdapter{model: model, options: options}
}

// Execute converts the history to langchaingo message content, generates a
// response and returns it as an assistant message.
func (a *LLMAdapter) Execute(ctx context.Context, history []message.Message) (message.Message, error) {
	content := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		content = append(content, llms.TextParts(toChatMessageType(m.Role), m.Content))
	}

	resp, err := a.model.GenerateContent(ctx, content, a.options...)
	if err != nil {
		return message.Message{}, fmt.Errorf("model generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return message.Message{}, fmt.Errorf("model returned no choices")
	}

	return message.Assistant(resp.Choices[0].Content), nil
}

func toChatMessageType(role message.Role) llms.ChatMessageType {
	switch role {
	case message.RoleSystem:
		return llms.ChatMessageTypeSystem
	case message.RoleAssistant:
		return llms.ChatMessageTypeAI
	case message.RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}
