package graph

import (
	"encoding/json"
	"strings"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a directive from the model to invoke a named tool.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Query returns the "query" argument, or "" when absent.
func (tc ToolCall) Query() string {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(tc.Args, &in); err != nil {
		return ""
	}
	return in.Query
}

// Message is one entry of the conversation history.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// HasToolCalls reports whether the message carries tool call directives.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// IsGrading reports whether m is a relevance judgment produced by the grader.
func (m Message) IsGrading() bool {
	return m.HasToolCalls() && m.ToolCalls[0].Name == GradeToolName
}

// State is the conversation carried through one workflow run. Nodes only
// append to Messages.
type State struct {
	Messages []Message
	// Question is the user question the run answers. Grading, rewriting and
	// generation always refer back to it.
	Question string

	loops    int
	sink     Sink
	streamed bool
}

// NewState starts a run from a caller-supplied history. The question is the
// most recent user message.
func NewState(history []Message) *State {
	s := &State{Messages: append([]Message(nil), history...)}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			s.Question = strings.TrimSpace(history[i].Content)
			break
		}
	}
	return s
}

// Append adds messages to the end of the history.
func (s *State) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Last returns the most recent message.
func (s *State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastToolMessage scans backward for the most recent tool message.
func (s *State) LastToolMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleTool {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Loops is the number of rewrite→agent traversals so far.
func (s *State) Loops() int {
	return s.loops
}
