package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const suiDocs = "Sui is a layer 1 blockchain built around objects."

func newTestWorkflow(opts Options, model *stubModel, tool *stubTool) *Workflow {
	return NewWorkflow(opts, model, tool, zerolog.Nop())
}

func userState(q string) *State {
	return NewState([]Message{{Role: RoleUser, Content: q}})
}

func TestRun_DirectAnswerMakesOneCall(t *testing.T) {
	model := &stubModel{agentReply: answerDirectly("Hello! Ask me about Sui.")}
	tool := &stubTool{}
	w := newTestWorkflow(Options{}, model, tool)
	sink := &BufferSink{}

	res, err := w.Run(context.Background(), userState("hi"), sink)
	require.NoError(t, err)

	assert.Equal(t, 1, model.agentCalls)
	assert.Zero(t, model.gradeCalls+model.rewriteCalls+model.generateCalls)
	assert.Empty(t, tool.queries)
	assert.Equal(t, []Node{NodeAgent}, res.Steps)
	assert.Equal(t, "Hello! Ask me about Sui.", res.Answer)
	assert.False(t, res.Streamed)
	assert.Equal(t, "Hello! Ask me about Sui.", sink.String())
	assert.Equal(t, 1, sink.Writes())
	assert.Len(t, res.Messages, 2)
}

func TestRun_RelevantDocsStreamAnswer(t *testing.T) {
	model := &stubModel{
		agentReply: callTool("search_sui_documentation", "sui overview"),
		grades:     []string{"yes"},
		tokens:     []string{"Sui ", "is ", "fast."},
	}
	tool := &stubTool{output: suiDocs}
	w := newTestWorkflow(Options{}, model, tool)
	sink := &BufferSink{}

	res, err := w.Run(context.Background(), userState("What is Sui?"), sink)
	require.NoError(t, err)

	assert.Equal(t, []Node{NodeAgent, NodeRetrieve, NodeGrade, NodeGenerate}, res.Steps)
	assert.Equal(t, 1, model.gradeCalls)
	assert.Zero(t, model.rewriteCalls)
	assert.Equal(t, 1, model.generateCalls)
	assert.Equal(t, []string{"sui overview"}, tool.queries)

	assert.True(t, res.Streamed)
	assert.Equal(t, "Sui is fast.", sink.String())
	assert.Equal(t, 3, sink.Writes())
	assert.Equal(t, "Sui is fast.", res.Answer)

	// user, agent tool call, tool result, grading, answer
	require.Len(t, res.Messages, 5)
	assert.Equal(t, RoleTool, res.Messages[2].Role)
	assert.Equal(t, "call_1", res.Messages[2].ToolCallID)
	assert.Equal(t, suiDocs, res.Messages[2].Content)
	assert.True(t, res.Messages[3].IsGrading())
}

func TestRun_IrrelevantDocsRewriteThenAnswer(t *testing.T) {
	model := &stubModel{
		agentReply: callTool("search_sui_documentation", "objects"),
		grades:     []string{"no", "yes"},
		rewrite:    "Sui object ownership model documentation",
		tokens:     []string{"Objects have owners."},
	}
	w := newTestWorkflow(Options{}, model, &stubTool{output: suiDocs})

	res, err := w.Run(context.Background(), userState("how do objects work"), &BufferSink{})
	require.NoError(t, err)

	assert.Equal(t, []Node{
		NodeAgent, NodeRetrieve, NodeGrade, NodeRewrite,
		NodeAgent, NodeRetrieve, NodeGrade, NodeGenerate,
	}, res.Steps)
	assert.Equal(t, 2, res.AgentCalls)
	assert.Equal(t, 2, model.gradeCalls)
	assert.Equal(t, 1, model.rewriteCalls)

	// the rewrite is a new user turn and grading messages are hidden from the agent
	second := model.agentReqs[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "Sui object ownership model documentation", last.Content)
	for _, m := range second.Messages {
		for _, tc := range m.ToolCalls {
			assert.NotEqual(t, GradeToolName, tc.Function.Name)
		}
	}
	assert.Equal(t, "system", second.Messages[0].Role)
}

func TestRun_FollowUpGradesAgainstLatestQuestion(t *testing.T) {
	model := &stubModel{
		agentReply: callTool("search_sui_documentation", "bounty"),
		grades:     []string{"no", "yes"},
		rewrite:    "create bounty pool",
		tokens:     []string{"Call create_pool."},
	}
	w := newTestWorkflow(Options{}, model, &stubTool{output: suiDocs})
	state := NewState([]Message{
		{Role: RoleUser, Content: "What is Sui?"},
		{Role: RoleAssistant, Content: "A layer 1 blockchain."},
		{Role: RoleUser, Content: "  How do I create a bounty?  "},
	})

	_, err := w.Run(context.Background(), state, &BufferSink{})
	require.NoError(t, err)

	require.Len(t, model.gradeReqs, 2)
	require.Len(t, model.rewriteReqs, 1)
	for _, req := range append(model.gradeReqs, model.rewriteReqs...) {
		prompt := req.Messages[len(req.Messages)-1].Content
		assert.Contains(t, prompt, "How do I create a bounty?")
		assert.NotContains(t, prompt, "What is Sui?")
	}
}

func TestRun_RecursionLimitTerminates(t *testing.T) {
	model := &stubModel{
		agentReply: callTool("search_sui_documentation", "unrelated"),
		grades:     []string{"no"},
		rewrite:    "still unrelated",
	}
	w := newTestWorkflow(Options{RecursionLimit: 3}, model, &stubTool{output: "cooking recipes"})
	sink := &BufferSink{}

	res, err := w.Run(context.Background(), userState("what is the meaning of life"), sink)
	require.NoError(t, err)

	assert.ErrorIs(t, res.Reason, ErrRecursionLimit)
	assert.Equal(t, 4, model.agentCalls)
	assert.LessOrEqual(t, res.AgentCalls, 3+1)
	assert.Equal(t, 4, model.gradeCalls)
	assert.Zero(t, model.generateCalls)
	assert.Equal(t, CouldNotResolveMessage, res.Answer)
	assert.Equal(t, CouldNotResolveMessage, sink.String())
}

func TestRun_DefaultRecursionLimit(t *testing.T) {
	model := &stubModel{
		agentReply: callTool("search_sui_documentation", "unrelated"),
		grades:     []string{"no"},
		rewrite:    "still unrelated",
	}
	w := newTestWorkflow(Options{}, model, &stubTool{output: "cooking recipes"})

	res, err := w.Run(context.Background(), userState("q"), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecursionLimit, w.Options().RecursionLimit)
	assert.Equal(t, DefaultRecursionLimit+1, res.AgentCalls)
	assert.Equal(t, DefaultRecursionLimit+1, model.agentCalls)
}

func TestRun_Deterministic(t *testing.T) {
	run := func() *Result {
		model := &stubModel{
			agentReply: callTool("search_sui_documentation", "move"),
			grades:     []string{"no", "yes"},
			rewrite:    "Move language structs",
			tokens:     []string{"Use ", "structs."},
		}
		w := newTestWorkflow(Options{}, model, &stubTool{output: suiDocs})
		res, err := w.Run(context.Background(), userState("move structs?"), &BufferSink{})
		require.NoError(t, err)
		return res
	}

	a, b := run(), run()
	assert.Equal(t, a.Answer, b.Answer)
	assert.Equal(t, a.Steps, b.Steps)
	assert.Equal(t, a.Messages, b.Messages)
}

func TestRun_SkipGrading(t *testing.T) {
	model := &stubModel{
		agentReply: callTool("search_sui_documentation", "gas"),
		tokens:     []string{"Gas is paid in SUI."},
	}
	w := newTestWorkflow(Options{SkipGrading: true}, model, &stubTool{output: suiDocs})

	res, err := w.Run(context.Background(), userState("gas?"), &BufferSink{})
	require.NoError(t, err)
	assert.Equal(t, []Node{NodeAgent, NodeRetrieve, NodeGenerate}, res.Steps)
	assert.Zero(t, model.gradeCalls)
}

func TestRun_AgentErrorAppendsApology(t *testing.T) {
	upstream := &llm.APIError{StatusCode: 429, Message: "Rate limit exceeded"}
	model := &stubModel{agentErr: upstream}
	w := newTestWorkflow(Options{}, model, &stubTool{})
	sink := &BufferSink{}

	res, err := w.Run(context.Background(), userState("What is Sui?"), sink)
	require.Error(t, err)

	var nodeErr *NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, NodeAgent, nodeErr.Node)
	status, ok := IsUpstreamError(err)
	assert.True(t, ok)
	assert.Equal(t, 429, status)

	assert.Contains(t, res.Answer, "I apologize, but I encountered an error")
	assert.Empty(t, sink.String())
}

func TestRun_EmptyToolContentIsFatal(t *testing.T) {
	model := &stubModel{agentReply: callTool("search_sui_documentation", "q")}
	w := newTestWorkflow(Options{}, model, &stubTool{output: ""})

	_, err := w.Run(context.Background(), userState("q"), nil)
	assert.ErrorIs(t, err, ErrMissingToolContent)
	assert.Zero(t, model.gradeCalls)
}

func TestRun_RetrieverErrorIsFatal(t *testing.T) {
	model := &stubModel{agentReply: callTool("search_sui_documentation", "q")}
	w := newTestWorkflow(Options{}, model, &stubTool{err: errors.New("store unavailable")})

	_, err := w.Run(context.Background(), userState("q"), nil)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, NodeRetrieve, nodeErr.Node)
}

func TestRun_UnknownToolIsReported(t *testing.T) {
	model := &stubModel{
		agentReply: callTool("search_the_web", "sui"),
		grades:     []string{"yes"},
		tokens:     []string{"ok"},
	}
	tool := &stubTool{output: suiDocs}
	w := newTestWorkflow(Options{}, model, tool)

	res, err := w.Run(context.Background(), userState("sui"), nil)
	require.NoError(t, err)
	assert.Empty(t, tool.queries)
	assert.Contains(t, res.Messages[2].Content, "search_the_web is not a valid tool")
}

func TestRun_InvalidToolArgsAreReported(t *testing.T) {
	model := &stubModel{
		agentReply: func(int) llm.ChatMessage {
			return llm.ChatMessage{Role: "assistant", ToolCalls: []llm.ToolCall{{
				ID: "c1", Function: llm.ToolCallFunction{Name: "search_sui_documentation", Arguments: `{"q":1}`},
			}}}
		},
		grades: []string{"yes"},
		tokens: []string{"ok"},
	}
	w := newTestWorkflow(Options{}, model, &stubTool{output: suiDocs})

	res, err := w.Run(context.Background(), userState("sui"), nil)
	require.NoError(t, err)
	assert.Contains(t, res.Messages[2].Content, "Error: invalid retriever tool arguments")
}

func TestRun_MalformedJudgment(t *testing.T) {
	for name, reply := range map[string]llm.ChatMessage{
		"no tool call": {Role: "assistant", Content: "yes"},
		"bad score": {Role: "assistant", ToolCalls: []llm.ToolCall{{
			ID: "g", Function: llm.ToolCallFunction{Name: GradeToolName, Arguments: `{"binaryScore":"maybe"}`},
		}}},
	} {
		t.Run(name, func(t *testing.T) {
			reply := reply
			model := &stubModel{agentReply: callTool("search_sui_documentation", "q"), gradeReply: &reply}
			w := newTestWorkflow(Options{}, model, &stubTool{output: suiDocs})

			_, err := w.Run(context.Background(), userState("q"), nil)
			assert.ErrorIs(t, err, ErrMalformedJudgment)
		})
	}
}

func TestRun_SinkErrorStopsGeneration(t *testing.T) {
	model := &stubModel{
		agentReply: callTool("search_sui_documentation", "q"),
		tokens:     []string{"a", "b", "c"},
	}
	w := newTestWorkflow(Options{}, model, &stubTool{output: suiDocs})

	writes := 0
	sink := SinkFunc(func(string) error {
		writes++
		return errors.New("client disconnected")
	})
	res, err := w.Run(context.Background(), userState("q"), sink)
	require.Error(t, err)
	assert.Equal(t, 1, writes)
	assert.True(t, res.Streamed)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &stubModel{agentReply: answerDirectly("never")}
	w := newTestWorkflow(Options{}, model, &stubTool{})

	_, err := w.Run(ctx, userState("q"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, model.agentCalls)
}

func TestRun_RequiresQuestion(t *testing.T) {
	w := newTestWorkflow(Options{}, &stubModel{}, &stubTool{})
	_, err := w.Run(context.Background(), NewState([]Message{{Role: RoleAssistant, Content: "hi"}}), nil)
	assert.ErrorIs(t, err, ErrNoQuestion)
}

func TestAnswerNode_RequiresToolMessage(t *testing.T) {
	w := newTestWorkflow(Options{}, &stubModel{}, &stubTool{})
	s := userState("q")
	s.sink = discardSink{}

	assert.ErrorIs(t, w.AnswerNode(context.Background(), s), ErrNoToolMessage)
}

func TestCheckRelevance(t *testing.T) {
	s := userState("q")
	_, err := checkRelevance(s)
	assert.ErrorIs(t, err, ErrMissingToolCalls)

	s.Append(Message{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: GradeToolName, Args: []byte(`{"binaryScore":"yes"}`)}}})
	next, err := checkRelevance(s)
	require.NoError(t, err)
	assert.Equal(t, NodeGenerate, next)

	s.Append(Message{Role: RoleAssistant, ToolCalls: []ToolCall{{Name: GradeToolName, Args: []byte(`{"binaryScore":"no"}`)}}})
	next, err = checkRelevance(s)
	require.NoError(t, err)
	assert.Equal(t, NodeRewrite, next)
}

type recordingObserver struct {
	nodes []Node
}

func (o *recordingObserver) ObserveNode(n Node, _ time.Duration, _ error) {
	o.nodes = append(o.nodes, n)
}

func TestRun_Observer(t *testing.T) {
	obs := &recordingObserver{}
	w := newTestWorkflow(Options{}, &stubModel{agentReply: answerDirectly("hi")}, &stubTool{}).WithObserver(obs)

	_, err := w.Run(context.Background(), userState("q"), nil)
	require.NoError(t, err)
	assert.Equal(t, []Node{NodeAgent}, obs.nodes)
}

func TestNodeString(t *testing.T) {
	assert.Equal(t, "grade_documents", NodeGrade.String())
	assert.Equal(t, "END", NodeEnd.String())
	assert.Equal(t, "unknown", Node(42).String())
}
