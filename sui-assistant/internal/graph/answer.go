package graph

import (
	"context"
	"strings"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
)

// AnswerNode streams the final answer from the most recent tool message.
// It is the only node that writes to the sink token by token.
func (w *Workflow) AnswerNode(ctx context.Context, s *State) error {
	w.logger.Debug().Msg("---GENERATE---")

	docs, ok := s.LastToolMessage()
	if !ok {
		return ErrNoToolMessage
	}

	req := &llm.ChatCompletionRequest{
		Model: w.opts.Model,
		Messages: []llm.ChatMessage{
			{Role: string(RoleSystem), Content: generateSystemPrompt},
			{Role: string(RoleUser), Content: fill(generateUserTemplate, s.Question, docs.Content)},
		},
		Temperature: temperature(0.3),
	}

	var answer strings.Builder
	_, err := w.model.CreateChatCompletionStream(ctx, req, func(chunk *llm.StreamChunk) error {
		token := chunk.DeltaContent()
		if token == "" {
			return nil
		}
		answer.WriteString(token)
		s.streamed = true
		return s.sink.Write(token)
	})
	if err != nil {
		return err
	}

	s.Append(Message{Role: RoleAssistant, Content: answer.String()})
	return nil
}
