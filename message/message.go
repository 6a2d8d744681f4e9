// Package message defines the conversation messages accumulated during an
// agent run. A message carries a role, its text content and the time it was
// produced, which is what checkpoints persist and restore.
package message

import "time"

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem is used for system instructions.
	RoleSystem Role = "system"
	// RoleUser is used for user input.
	RoleUser Role = "user"
	// RoleAssistant is used for model responses.
	RoleAssistant Role = "assistant"
	// RoleTool is used for tool call results.
	RoleTool Role = "tool"
)

// Message is a single entry in an agent's conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// System creates a system message timestamped now.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content, CreatedAt: time.Now()}
}

// User creates a user message timestamped now.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now()}
}

// Assistant creates an assistant message timestamped now.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content, CreatedAt: time.Now()}
}

// Tool creates a tool result message timestamped now.
func Tool(content string) Message {
	return Message{Role: RoleTool, Content: content, CreatedAt: time.Now()}
}

// CloneHistory returns an independent copy of a message history so that a
// caller can mutate its copy without affecting checkpointed state.
func CloneHistory(history []Message) []Message {
	if history == nil {
		return nil
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out
}
