package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/vivon-labs/vivon/sui-assistant/internal/llm"
)

// GradeToolName is the forced tool the grader answers through.
const GradeToolName = "give_relevance_score"

const gradeSchema = `{
	"type": "object",
	"properties": {
		"binaryScore": {
			"type": "string",
			"enum": ["yes", "no"],
			"description": "Relevance score 'yes' or 'no' for Sui blockchain content"
		}
	},
	"required": ["binaryScore"]
}`

var gradeSchemaLoader = gojsonschema.NewStringLoader(gradeSchema)

var gradeTool = llm.NewFunctionTool(GradeToolName,
	"Give a relevance score to the retrieved Sui blockchain documentation.",
	json.RawMessage(gradeSchema))

// Judgment is the grader's verdict.
type Judgment struct {
	BinaryScore string `json:"binaryScore"`
}

// Relevant reports a "yes" verdict.
func (j Judgment) Relevant() bool {
	return j.BinaryScore == "yes"
}

// GraderNode judges whether the retrieved documents answer the question.
// The verdict is appended as a give_relevance_score tool call.
func (w *Workflow) GraderNode(ctx context.Context, s *State) error {
	w.logger.Debug().Msg("---CHECK RELEVANCE---")

	last, ok := s.Last()
	if !ok || strings.TrimSpace(last.Content) == "" {
		return ErrMissingToolContent
	}

	resp, err := w.model.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: w.opts.Model,
		Messages: []llm.ChatMessage{
			{Role: string(RoleUser), Content: fill(relevanceTemplate, s.Question, last.Content)},
		},
		Temperature: temperature(0),
		Tools:       []llm.Tool{gradeTool},
		ToolChoice:  llm.ForceTool(GradeToolName),
	})
	if err != nil {
		return err
	}
	reply, err := resp.FirstMessage()
	if err != nil {
		return err
	}

	msg := fromLLMMessage(reply)
	if !msg.HasToolCalls() || msg.ToolCalls[0].Name != GradeToolName {
		return fmt.Errorf("%w: model did not call %s", ErrMalformedJudgment, GradeToolName)
	}
	if _, err := parseJudgment(msg.ToolCalls[0].Args); err != nil {
		return err
	}

	s.Append(msg)
	return nil
}

// checkRelevance routes on the grader's verdict.
func checkRelevance(s *State) (Node, error) {
	last, ok := s.Last()
	if !ok || !last.HasToolCalls() {
		return NodeEnd, ErrMissingToolCalls
	}
	j, err := parseJudgment(last.ToolCalls[0].Args)
	if err != nil {
		return NodeEnd, err
	}
	if j.Relevant() {
		return NodeGenerate, nil
	}
	return NodeRewrite, nil
}

func parseJudgment(args json.RawMessage) (Judgment, error) {
	var j Judgment
	if len(args) == 0 {
		return j, fmt.Errorf("%w: empty arguments", ErrMalformedJudgment)
	}
	result, err := gojsonschema.Validate(gradeSchemaLoader, gojsonschema.NewBytesLoader(args))
	if err != nil {
		return j, fmt.Errorf("%w: %v", ErrMalformedJudgment, err)
	}
	if !result.Valid() {
		return j, fmt.Errorf("%w: %s", ErrMalformedJudgment, result.Errors()[0].String())
	}
	if err := json.Unmarshal(args, &j); err != nil {
		return j, fmt.Errorf("%w: %v", ErrMalformedJudgment, err)
	}
	return j, nil
}
