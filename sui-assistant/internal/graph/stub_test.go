package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
	"github.com/vivon-labs/vivon/sui-assistant/internal/retrieval"
)

// stubModel is a scripted ChatModel. Requests are routed by shape: a forced
// tool choice is the grader, bound tools are the agent, streaming is the
// generator and anything else is the rewriter.
type stubModel struct {
	mu sync.Mutex

	agentReply func(call int) llm.ChatMessage
	grades     []string
	gradeReply *llm.ChatMessage
	rewrite    string
	tokens     []string

	agentErr    error
	gradeErr    error
	generateErr error

	agentReqs     []*llm.ChatCompletionRequest
	gradeReqs     []*llm.ChatCompletionRequest
	rewriteReqs   []*llm.ChatCompletionRequest
	agentCalls    int
	gradeCalls    int
	rewriteCalls  int
	generateCalls int
}

func completion(msg llm.ChatMessage) *llm.ChatCompletionResponse {
	return &llm.ChatCompletionResponse{Choices: []llm.Choice{{Message: &msg}}}
}

func (m *stubModel) CreateChatCompletion(_ context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case req.ToolChoice != nil:
		m.gradeCalls++
		m.gradeReqs = append(m.gradeReqs, req)
		if m.gradeErr != nil {
			return nil, m.gradeErr
		}
		if m.gradeReply != nil {
			return completion(*m.gradeReply), nil
		}
		score := "yes"
		if len(m.grades) > 0 {
			i := m.gradeCalls - 1
			if i >= len(m.grades) {
				i = len(m.grades) - 1
			}
			score = m.grades[i]
		}
		return completion(llm.ChatMessage{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:       fmt.Sprintf("grade_%d", m.gradeCalls),
				Type:     "function",
				Function: llm.ToolCallFunction{Name: GradeToolName, Arguments: fmt.Sprintf(`{"binaryScore":%q}`, score)},
			}},
		}), nil
	case len(req.Tools) > 0:
		m.agentCalls++
		m.agentReqs = append(m.agentReqs, req)
		if m.agentErr != nil {
			return nil, m.agentErr
		}
		return completion(m.agentReply(m.agentCalls)), nil
	default:
		m.rewriteCalls++
		m.rewriteReqs = append(m.rewriteReqs, req)
		return completion(llm.ChatMessage{Role: "assistant", Content: m.rewrite}), nil
	}
}

func (m *stubModel) CreateChatCompletionStream(ctx context.Context, _ *llm.ChatCompletionRequest, cb llm.StreamCallback) (*llm.Usage, error) {
	m.mu.Lock()
	m.generateCalls++
	tokens, genErr := m.tokens, m.generateErr
	m.mu.Unlock()

	for _, tok := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := cb(&llm.StreamChunk{Choices: []llm.Choice{{Delta: &llm.ChatMessage{Content: tok}}}}); err != nil {
			return nil, err
		}
	}
	return &llm.Usage{}, genErr
}

func answerDirectly(text string) func(int) llm.ChatMessage {
	return func(int) llm.ChatMessage {
		return llm.ChatMessage{Role: "assistant", Content: text}
	}
}

func callTool(name, query string) func(int) llm.ChatMessage {
	return func(call int) llm.ChatMessage {
		return llm.ChatMessage{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:       fmt.Sprintf("call_%d", call),
				Type:     "function",
				Function: llm.ToolCallFunction{Name: name, Arguments: fmt.Sprintf(`{"query":%q}`, query)},
			}},
		}
	}
}

type stubTool struct {
	mu      sync.Mutex
	output  string
	err     error
	queries []string
}

func (t *stubTool) Name() string { return retrieval.SuiDocs.Name }

func (t *stubTool) Tool() llm.Tool {
	return llm.NewFunctionTool(t.Name(), "search", json.RawMessage(`{"type":"object"}`))
}

func (t *stubTool) Invoke(_ context.Context, args json.RawMessage) (string, error) {
	q, err := retrieval.ParseQuery(args)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries = append(t.queries, q)
	return t.output, t.err
}
