// Package openai provides a PromptExecutor backed by the OpenAI chat
// completion API.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/smallnest/agentgraph/message"
)

// OpenAIExecutor implements executor.PromptExecutor using go-openai.
type OpenAIExecutor struct {
	client *openai.Client
	model  string
}

// NewOpenAIExecutor creates an executor for the given API key and model.
// Model defaults to gpt-4o-mini.
func NewOpenAIExecutor(apiKey, model string) *OpenAIExecutor {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIExecutor{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// NewOpenAIExecutorWithClient creates an executor from an existing client.
// Useful for OpenAI-compatible endpoints.
func NewOpenAIExecutorWithClient(client *openai.Client, model string) *OpenAIExecutor {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIExecutor{client: client, model: model}
}

// Execute sends the history as a chat completion request and returns the
// assistant reply.
func (e *OpenAIExecutor) Execute(ctx context.Context, history []message.Message) (message.Message, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(m.Role),
			Content: m.Content,
		})
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    e.model,
		Messages: messages,
	})
	if err != nil {
		return message.Message{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return message.Message{}, fmt.Errorf("chat completion returned no choices")
	}

	return message.Assistant(resp.Choices[0].Message.Content), nil
}

func toOpenAIRole(role message.Role) string {
	switch role {
	case message.RoleSystem:
		return openai.ChatMessageRoleSystem
	case message.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case message.RoleTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}
