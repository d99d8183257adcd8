package graph

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
)

func toLLMMessages(msgs []Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := llm.ChatMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args := string(tc.Args)
			if args == "" {
				args = "{}"
			}
			cm.ToolCalls = append(cm.ToolCalls, llm.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: llm.ToolCallFunction{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		out = append(out, cm)
	}
	return out
}

// fromLLMMessage converts a model reply into an assistant message. Tool calls
// without an id get one so tool results can reference them.
func fromLLMMessage(cm *llm.ChatMessage) Message {
	m := Message{Role: RoleAssistant, Content: cm.Content}
	for _, tc := range cm.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		m.ToolCalls = append(m.ToolCalls, ToolCall{
			ID:   id,
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
		})
	}
	return m
}

func temperature(v float64) *float64 {
	return &v
}
