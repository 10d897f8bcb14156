package llm

import "strings"

// Role defines message roles in a conversation.
type Role string

const (
	// RoleSystem is for system instructions.
	RoleSystem Role = "system"

	// RoleUser is for user messages.
	RoleUser Role = "user"

	// RoleAssistant is for assistant responses.
	RoleAssistant Role = "assistant"
)

// Message represents one turn in a conversation.
type Message struct {
	// Role identifies the message sender.
	Role Role

	// Content is the text content of the message.
	Content string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// FormatContext renders ordered key/value pairs as a single context line,
// e.g. "Context: location=kitchen, time=morning".
func FormatContext(items []ContextItem) string {
	var b strings.Builder
	b.WriteString("Context: ")
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(item.Key)
		b.WriteByte('=')
		b.WriteString(item.Value)
	}
	return b.String()
}

// buildMessages assembles the full message sequence for a request: system
// prompt, context block if any, bounded history, then the user input.
func buildMessages(systemPrompt string, req *Request) []Message {
	msgs := make([]Message, 0, len(req.History)+3)
	if systemPrompt != "" {
		msgs = append(msgs, NewSystemMessage(systemPrompt))
	}
	if len(req.Context) > 0 {
		msgs = append(msgs, NewSystemMessage(FormatContext(req.Context)))
	}
	msgs = append(msgs, req.History...)
	msgs = append(msgs, NewUserMessage(req.UserInput))
	return msgs
}
