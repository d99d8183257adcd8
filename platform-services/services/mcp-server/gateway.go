package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// MCP Protocol structures
type MCPRequest struct {
	ID     string                 `json:"id"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

type MCPResponse struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *MCPError   `json:"error,omitempty"`
}

type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Upstream service names.
const (
	assistantService = "assistant"
	oracleService    = "oracle-service"
)

// Gateway exposes the assistant and oracle services as MCP tools.
type Gateway struct {
	endpoints map[string]string
	client    *http.Client
}

func NewGateway(assistantURL, oracleURL string) *Gateway {
	return &Gateway{
		endpoints: map[string]string{
			assistantService: strings.TrimSuffix(assistantURL, "/"),
			oracleService:    strings.TrimSuffix(oracleURL, "/"),
		},
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

var questionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"question": stringProp("The question to ask"),
	},
	"required": []string{"question"},
}

func getAvailableTools() []Tool {
	return []Tool{
		{
			Name:        "ask_sui_assistant",
			Description: "Ask the Sui blockchain assistant a question about Sui, Move or VIVON",
			InputSchema: questionSchema,
		},
		{
			Name:        "ask_vivon_assistant",
			Description: "Ask the VIVON platform assistant about bounties, challenges, tokens and NFTs",
			InputSchema: questionSchema,
		},
		{
			Name:        "submit_jailbreak",
			Description: "Submit a jailbreak attempt to the bounty oracle",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"pool_id":              stringProp("Bounty pool object ID"),
					"submission_object_id": stringProp("Submission object ID"),
					"oracle_cap_id":        stringProp("Oracle capability object ID"),
					"submitter":            stringProp("Submitter address"),
					"text":                 stringProp("Submission text"),
					"hash":                 stringProp("SHA-256 hex of the submission text"),
				},
				"required": []string{"pool_id"},
				"anyOf": []interface{}{
					map[string]interface{}{"required": []string{"text"}},
					map[string]interface{}{"required": []string{"hash"}},
				},
			},
		},
		{
			Name:        "list_submissions",
			Description: "List the most recent oracle submissions",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of submissions",
						"minimum":     1,
						"maximum":     500,
					},
				},
			},
		},
	}
}

func findTool(name string) (Tool, bool) {
	for _, t := range getAvailableTools() {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// validateArguments checks arguments against the tool input schema.
func validateArguments(tool Tool, arguments map[string]interface{}) error {
	if arguments == nil {
		arguments = map[string]interface{}{}
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(tool.InputSchema),
		gojsonschema.NewGoLoader(arguments),
	)
	if err != nil {
		return err
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

func (g *Gateway) handleToolCall(ctx context.Context, req MCPRequest) MCPResponse {
	toolName, ok := req.Params["name"].(string)
	if !ok {
		return errorResponse(req.ID, -32602, "Invalid tool name")
	}
	tool, ok := findTool(toolName)
	if !ok {
		return errorResponse(req.ID, -32601, "Tool not found")
	}

	arguments, _ := req.Params["arguments"].(map[string]interface{})
	if err := validateArguments(tool, arguments); err != nil {
		return errorResponse(req.ID, -32602, "Invalid arguments: "+err.Error())
	}

	var resp MCPResponse
	switch toolName {
	case "ask_sui_assistant":
		resp = g.askAssistant(ctx, "sui_assistant", arguments["question"].(string))
	case "ask_vivon_assistant":
		resp = g.askAssistant(ctx, "vivon_assistant", arguments["question"].(string))
	case "submit_jailbreak":
		resp = g.callService(ctx, oracleService, "POST", "/submissions", arguments)
	case "list_submissions":
		path := "/submissions"
		if limit, ok := arguments["limit"].(float64); ok {
			path += "?" + url.Values{"limit": {strconv.Itoa(int(limit))}}.Encode()
		}
		resp = g.callService(ctx, oracleService, "GET", path, nil)
	}
	resp.ID = req.ID
	return resp
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// askAssistant asks a question in JSON mode and returns the final answer.
func (g *Gateway) askAssistant(ctx context.Context, assistant, question string) MCPResponse {
	body := map[string]interface{}{
		"messages":                []chatMessage{{Role: "user", Content: question}},
		"show_intermediate_steps": true,
	}
	resp := g.callService(ctx, assistantService, "POST", "/api/chat/"+assistant, body)
	if resp.Error != nil {
		return resp
	}

	raw, _ := json.Marshal(resp.Result)
	var chat struct {
		Messages []chatMessage `json:"messages"`
		Metadata struct {
			Mode string `json:"mode"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &chat); err != nil || len(chat.Messages) == 0 {
		return MCPResponse{Error: &MCPError{Code: -32007, Message: "Assistant returned no messages"}}
	}
	answer := chat.Messages[len(chat.Messages)-1]
	return MCPResponse{Result: map[string]interface{}{
		"answer": answer.Content,
		"mode":   chat.Metadata.Mode,
	}}
}

func (g *Gateway) callService(ctx context.Context, serviceName, method, path string, body interface{}) MCPResponse {
	baseURL, exists := g.endpoints[serviceName]
	if !exists || baseURL == "" {
		return MCPResponse{
			Error: &MCPError{
				Code:    -32001,
				Message: fmt.Sprintf("Service %s not configured", serviceName),
			},
		}
	}

	// Prepare request body
	var reqBody io.Reader
	if body != nil && (method == "POST" || method == "PATCH") {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return MCPResponse{
				Error: &MCPError{
					Code:    -32002,
					Message: fmt.Sprintf("Failed to marshal request body: %v", err),
				},
			}
		}
		reqBody = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reqBody)
	if err != nil {
		return MCPResponse{
			Error: &MCPError{
				Code:    -32003,
				Message: fmt.Sprintf("Failed to create request: %v", err),
			},
		}
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return MCPResponse{
			Error: &MCPError{
				Code:    -32004,
				Message: fmt.Sprintf("Service request failed: %v", err),
			},
		}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return MCPResponse{
			Error: &MCPError{
				Code:    -32005,
				Message: fmt.Sprintf("Failed to read response: %v", err),
			},
		}
	}

	// Check for HTTP errors
	if resp.StatusCode >= 400 {
		return MCPResponse{
			Error: &MCPError{
				Code:    -32006,
				Message: fmt.Sprintf("Service returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody))),
			},
		}
	}

	var result interface{}
	if len(responseBody) > 0 {
		if err := json.Unmarshal(responseBody, &result); err != nil {
			// If JSON parsing fails, return raw response
			result = map[string]interface{}{
				"raw_response": string(responseBody),
				"content_type": resp.Header.Get("Content-Type"),
			}
		}
	}
	return MCPResponse{Result: result}
}

func errorResponse(id string, code int, message string) MCPResponse {
	return MCPResponse{ID: id, Error: &MCPError{Code: code, Message: message}}
}
