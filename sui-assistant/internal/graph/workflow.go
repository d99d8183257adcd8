package graph

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
)

// DefaultRecursionLimit caps rewrite→agent loops.
const DefaultRecursionLimit = 10

// DefaultModel is the chat model used by every node.
const DefaultModel = "gpt-4o-mini"

// Node identifies a workflow step.
type Node int

const (
	NodeAgent Node = iota
	NodeRetrieve
	NodeGrade
	NodeRewrite
	NodeGenerate
	NodeEnd
)

func (n Node) String() string {
	switch n {
	case NodeAgent:
		return "agent"
	case NodeRetrieve:
		return "retrieve"
	case NodeGrade:
		return "grade_documents"
	case NodeRewrite:
		return "rewrite_query"
	case NodeGenerate:
		return "generate_response"
	case NodeEnd:
		return "END"
	default:
		return "unknown"
	}
}

// ChatModel is the LLM the nodes call.
type ChatModel interface {
	CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req *llm.ChatCompletionRequest, callback llm.StreamCallback) (*llm.Usage, error)
}

// Observer is told about every node execution.
type Observer interface {
	ObserveNode(node Node, d time.Duration, err error)
}

// Options configure a workflow.
type Options struct {
	Model          string
	RecursionLimit int
	Debug          bool
	// SkipGrading sends retrieved documents straight to generation.
	SkipGrading bool
}

// Result describes a finished run.
type Result struct {
	Messages   []Message
	Answer     string
	Steps      []Node
	AgentCalls int
	// Streamed is true when the answer reached the sink token by token.
	Streamed bool
	// Reason is ErrRecursionLimit when the run was cut short, nil otherwise.
	Reason error
}

type nodeFunc func(ctx context.Context, s *State) error

type transition func(s *State) (Node, error)

// Workflow is the agent → retrieve → grade → rewrite/generate state machine.
type Workflow struct {
	opts     Options
	model    ChatModel
	tool     Tool
	logger   zerolog.Logger
	observer Observer

	nodes map[Node]nodeFunc
	edges map[Node]transition
}

func NewWorkflow(opts Options, model ChatModel, tool Tool, logger zerolog.Logger) *Workflow {
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	}

	w := &Workflow{
		opts:   opts,
		model:  model,
		tool:   tool,
		logger: logger.With().Str("tool", tool.Name()).Logger(),
	}
	w.nodes = map[Node]nodeFunc{
		NodeAgent:    w.AgentNode,
		NodeRetrieve: w.RetrieverNode,
		NodeGrade:    w.GraderNode,
		NodeRewrite:  w.RewriterNode,
		NodeGenerate: w.AnswerNode,
	}
	w.edges = map[Node]transition{
		NodeAgent:    shouldRetrieve,
		NodeRetrieve: always(NodeGrade),
		NodeGrade:    checkRelevance,
		NodeRewrite:  always(NodeAgent),
		NodeGenerate: always(NodeEnd),
	}
	if opts.SkipGrading {
		w.edges[NodeRetrieve] = always(NodeGenerate)
	}
	return w
}

// WithObserver sets the per-node observer.
func (w *Workflow) WithObserver(o Observer) *Workflow {
	w.observer = o
	return w
}

// Options returns the effective options.
func (w *Workflow) Options() Options {
	return w.opts
}

func always(n Node) transition {
	return func(*State) (Node, error) { return n, nil }
}

// Run drives s from the agent node to END. Answer text goes to sink: streamed
// by the generator, or written once when the run ends without generation.
//
// On failure the apology message is appended to s and the error is returned
// wrapped in a *NodeError; nothing is written to sink. Hitting the recursion
// limit is not a failure.
func (w *Workflow) Run(ctx context.Context, s *State, sink Sink) (*Result, error) {
	if sink == nil {
		sink = discardSink{}
	}
	s.sink = sink
	res := &Result{}
	if s.Question == "" {
		return res, ErrNoQuestion
	}

	node := NodeAgent
	for node != NodeEnd {
		if err := ctx.Err(); err != nil {
			return w.fail(s, res, &NodeError{Node: node, Err: err})
		}

		res.Steps = append(res.Steps, node)
		if node == NodeAgent {
			res.AgentCalls++
		}

		start := time.Now()
		err := w.nodes[node](ctx, s)
		if w.observer != nil {
			w.observer.ObserveNode(node, time.Since(start), err)
		}
		if err != nil {
			return w.fail(s, res, &NodeError{Node: node, Err: err})
		}

		next, err := w.edges[node](s)
		if err != nil {
			return w.fail(s, res, &NodeError{Node: node, Err: err})
		}
		w.logger.Debug().Str("from", node.String()).Str("to", next.String()).Msg("decision")

		if node == NodeRewrite && next == NodeAgent {
			s.loops++
			if s.loops > w.opts.RecursionLimit {
				w.logger.Warn().Int("loops", s.loops-1).Msg("recursion limit reached")
				res.Reason = ErrRecursionLimit
				s.Append(Message{Role: RoleAssistant, Content: CouldNotResolveMessage})
				break
			}
		}
		node = next
	}

	last, _ := s.Last()
	res.Answer = last.Content
	res.Streamed = s.streamed
	if !s.streamed && res.Answer != "" {
		if err := sink.Write(res.Answer); err != nil {
			return w.fail(s, res, &NodeError{Node: NodeEnd, Err: err})
		}
	}
	res.Messages = s.Messages
	return res, nil
}

func (w *Workflow) fail(s *State, res *Result, err *NodeError) (*Result, error) {
	w.logger.Error().Err(err.Err).Str("node", err.Node.String()).Msg("workflow failed")
	s.Append(Message{Role: RoleAssistant, Content: apologyMessage(err.Err)})
	res.Messages = s.Messages
	res.Answer = s.Messages[len(s.Messages)-1].Content
	res.Streamed = s.streamed
	return res, err
}

// IsUpstreamError reports whether err came from the LLM API, and its status.
func IsUpstreamError(err error) (int, bool) {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
