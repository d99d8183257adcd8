package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewState_QuestionIsLatestUserMessage(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: "What is Sui?"},
		{Role: RoleAssistant, Content: "A layer 1 blockchain."},
		{Role: RoleUser, Content: "  And Move?  "},
	}
	s := NewState(history)

	assert.Equal(t, "And Move?", s.Question)
	assert.Len(t, s.Messages, 3)

	s.Append(Message{Role: RoleAssistant})
	assert.Len(t, history, 3, "caller history must not be modified")
}

func TestState_LastToolMessage(t *testing.T) {
	s := NewState(nil)
	_, ok := s.Last()
	assert.False(t, ok)
	_, ok = s.LastToolMessage()
	assert.False(t, ok)

	s.Append(
		Message{Role: RoleTool, Content: "first"},
		Message{Role: RoleTool, Content: "second"},
		Message{Role: RoleAssistant, Content: "grading"},
	)
	m, ok := s.LastToolMessage()
	assert.True(t, ok)
	assert.Equal(t, "second", m.Content)
}

func TestToolCallQuery(t *testing.T) {
	assert.Equal(t, "sui", ToolCall{Args: json.RawMessage(`{"query":"sui"}`)}.Query())
	assert.Equal(t, "", ToolCall{Args: json.RawMessage(`nope`)}.Query())
}

func TestMessageIsGrading(t *testing.T) {
	assert.True(t, Message{ToolCalls: []ToolCall{{Name: GradeToolName}}}.IsGrading())
	assert.False(t, Message{ToolCalls: []ToolCall{{Name: "search_sui_documentation"}}}.IsGrading())
	assert.False(t, Message{}.IsGrading())
}

func TestFillIsSinglePass(t *testing.T) {
	out := fill("Q: {question} C: {context}", "what is {context}?", "docs")
	assert.Equal(t, "Q: what is {context}? C: docs", out)
}
