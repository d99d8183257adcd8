package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
	"github.com/vivon-labs/vivon/sui-assistant/internal/retrieval"
)

// Tool is a retriever the agent can call.
type Tool interface {
	Name() string
	Tool() llm.Tool
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// RetrieverNode executes every tool call on the last message and appends one
// tool message per call. Documents are passed through unfiltered.
func (w *Workflow) RetrieverNode(ctx context.Context, s *State) error {
	last, ok := s.Last()
	if !ok || !last.HasToolCalls() {
		return ErrMissingToolCalls
	}

	for _, tc := range last.ToolCalls {
		msg := Message{Role: RoleTool, ToolCallID: tc.ID, Name: tc.Name}
		if tc.Name != w.tool.Name() {
			msg.Content = fmt.Sprintf("Error: %s is not a valid tool, try %s.", tc.Name, w.tool.Name())
			s.Append(msg)
			continue
		}

		w.logger.Debug().Str("query", tc.Query()).Msg("---RETRIEVE---")
		out, err := w.tool.Invoke(ctx, tc.Args)
		if errors.Is(err, retrieval.ErrInvalidToolArgs) {
			msg.Content = "Error: " + err.Error()
			s.Append(msg)
			continue
		}
		if err != nil {
			return err
		}
		msg.Content = out
		s.Append(msg)
	}
	return nil
}
