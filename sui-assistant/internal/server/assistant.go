package server

import (
	"context"

	"github.com/vivon-labs/vivon/sui-assistant/internal/graph"
)

// Assistant answers a conversation, streaming to sink when it is non-nil.
type Assistant interface {
	Service() string
	Mode() string
	Answer(ctx context.Context, history []graph.Message, sink graph.Sink) (*graph.Result, error)
}

// WorkflowAssistant runs the retrieval workflow.
type WorkflowAssistant struct {
	service  string
	workflow *graph.Workflow
}

func NewWorkflowAssistant(service string, wf *graph.Workflow) *WorkflowAssistant {
	return &WorkflowAssistant{service: service, workflow: wf}
}

func (a *WorkflowAssistant) Service() string { return a.service }

func (a *WorkflowAssistant) Mode() string { return "production" }

// Answer runs one workflow over a fresh state built from history.
func (a *WorkflowAssistant) Answer(ctx context.Context, history []graph.Message, sink graph.Sink) (*graph.Result, error) {
	return a.workflow.Run(ctx, graph.NewState(history), sink)
}
