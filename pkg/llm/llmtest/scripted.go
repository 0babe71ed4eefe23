// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"tutorverse-go/pkg/llm"
)

// ErrScriptExhausted is returned once every scripted step has been consumed.
var ErrScriptExhausted = errors.New("llmtest: no scripted response left")

// Step is one scripted reply: either a response or an error.
type Step struct {
	Resp *llm.ChatResponse
	Err  error
}

// Text replies with an assistant message whose content is s.
func Text(s string) Step {
	return Step{Resp: &llm.ChatResponse{Choices: []llm.Choice{{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: s},
		FinishReason: "stop",
	}}}}
}

// ToolCalls replies with an assistant message requesting the given calls.
func ToolCalls(calls ...llm.ToolCall) Step {
	return Step{Resp: &llm.ChatResponse{Choices: []llm.Choice{{
		Message:      llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
		FinishReason: "tool_calls",
	}}}}
}

// Call builds a function tool call.
func Call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: "function", Function: llm.ToolCallFunction{Name: name, Arguments: args}}
}

// Empty replies with no choices at all.
func Empty() Step {
	return Step{Resp: &llm.ChatResponse{}}
}

// Fail replies with err.
func Fail(err error) Step {
	return Step{Err: err}
}

// ScriptedClient returns its steps in order and records every request.
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.ChatRequest
	// Repeat makes the last step repeat forever instead of exhausting.
	Repeat bool
}

func New(steps ...Step) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

func (c *ScriptedClient) CreateChatCompletion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	c.requests = append(c.requests, cp)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	step := c.steps[0]
	if len(c.steps) > 1 || !c.Repeat {
		c.steps = c.steps[1:]
	}
	return step.Resp, step.Err
}

// Calls reports how many requests were made.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Request returns the i-th recorded request.
func (c *ScriptedClient) Request(i int) llm.ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}
