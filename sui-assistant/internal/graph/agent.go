package graph

import (
	"context"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
)

const agentTemperature = 0.1

// AgentNode decides whether to answer directly or to call the retriever.
// Grading messages are hidden from the model.
func (w *Workflow) AgentNode(ctx context.Context, s *State) error {
	w.logger.Debug().Msg("---CALL AGENT---")

	msgs := make([]Message, 0, len(s.Messages)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: agentSystemPrompt})
	for _, m := range s.Messages {
		if m.IsGrading() {
			continue
		}
		msgs = append(msgs, m)
	}

	resp, err := w.model.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       w.opts.Model,
		Messages:    toLLMMessages(msgs),
		Temperature: temperature(agentTemperature),
		Tools:       []llm.Tool{w.tool.Tool()},
	})
	if err != nil {
		return err
	}
	reply, err := resp.FirstMessage()
	if err != nil {
		return err
	}

	s.Append(fromLLMMessage(reply))
	return nil
}

// shouldRetrieve routes to retrieval when the agent asked for a tool.
func shouldRetrieve(s *State) (Node, error) {
	last, ok := s.Last()
	if ok && last.HasToolCalls() {
		return NodeRetrieve, nil
	}
	return NodeEnd, nil
}
