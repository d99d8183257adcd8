package graph

import (
	"errors"
	"fmt"
)

var (
	ErrMissingToolContent = errors.New("no content found in the last message")
	ErrNoToolMessage      = errors.New("no tool message found in the conversation history")
	ErrMissingToolCalls   = errors.New("the most recent message does not contain tool calls")
	ErrMalformedJudgment  = errors.New("relevance judgment did not match the grading schema")
	ErrNoQuestion         = errors.New("no user message found")

	// ErrRecursionLimit is a termination reason, not a failure: the run stops
	// and answers with CouldNotResolveMessage.
	ErrRecursionLimit = errors.New("recursion limit reached")
)

// NodeError records which node failed.
type NodeError struct {
	Node Node
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
