package graph

import (
	"context"
	"strings"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
)

// RewriterNode reformulates the original question into a more searchable
// query and appends it as a new user turn.
func (w *Workflow) RewriterNode(ctx context.Context, s *State) error {
	w.logger.Debug().Msg("---REWRITE QUERY---")

	resp, err := w.model.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: w.opts.Model,
		Messages: []llm.ChatMessage{
			{Role: string(RoleUser), Content: fill(rewriteTemplate, s.Question, "")},
		},
		Temperature: temperature(0.2),
	})
	if err != nil {
		return err
	}
	reply, err := resp.FirstMessage()
	if err != nil {
		return err
	}

	query := strings.TrimSpace(reply.Content)
	if query == "" {
		query = s.Question
	}
	s.Append(Message{Role: RoleUser, Content: query})
	return nil
}
