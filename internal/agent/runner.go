// Package agent 实现了意图分类器和三个专家 Agent（数学、物理、通用）。
// 每个 Agent 把一段提示词交给模型，必要时执行模型请求的工具调用，
// 最后把模型输出解析为结构化结果；解析失败时给出固定的兜底回复。
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"tutorverse-go/internal/model"
	"tutorverse-go/internal/tools"
	"tutorverse-go/pkg/llm"
)

// ErrNoStructuredOutput 表示模型没有给出可解析的结构化输出，这不是传输错误。
var ErrNoStructuredOutput = errors.New("model returned no structured output")

// DefaultMaxToolRounds 限制一轮问答中工具调用往返的次数。
const DefaultMaxToolRounds = 5

type runner struct {
	client        llm.Client
	registry      *tools.Registry
	toolNames     []string
	maxToolRounds int
}

type runResult struct {
	Raw       string
	ToolsUsed []string
}

func newRunner(client llm.Client, registry *tools.Registry, maxToolRounds int, toolNames ...string) *runner {
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}
	return &runner{client: client, registry: registry, toolNames: toolNames, maxToolRounds: maxToolRounds}
}

// run 执行一次 "提示词 -> (工具调用)* -> JSON" 的完整流程，并把最终 JSON 解到 out。
// 返回 ErrNoStructuredOutput（可能被包装）表示输出缺失或非法，其他错误都是调用失败。
func (r *runner) run(ctx context.Context, system, query string, history []model.HistoryItem, out interface{}) (runResult, error) {
	var res runResult

	user, err := renderTurn(query, history)
	if err != nil {
		return res, fmt.Errorf("render prompt: %w", err)
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	}
	var defs []llm.Tool
	if r.registry != nil && len(r.toolNames) > 0 {
		defs = r.registry.Definitions(r.toolNames...)
	}

	for round := 0; ; round++ {
		resp, err := r.client.CreateChatCompletion(ctx, &llm.ChatRequest{
			Messages:       messages,
			Tools:          defs,
			ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
		})
		if err != nil {
			return res, err
		}
		msg := resp.FirstMessage()
		if msg == nil {
			return res, fmt.Errorf("%w: empty choices", ErrNoStructuredOutput)
		}

		if len(msg.ToolCalls) == 0 {
			res.Raw = msg.Content
			if err := decodeStructured(msg.Content, out); err != nil {
				return res, err
			}
			return res, nil
		}

		if round >= r.maxToolRounds {
			return res, fmt.Errorf("%w: exceeded %d tool rounds", ErrNoStructuredOutput, r.maxToolRounds)
		}
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})
		for _, call := range msg.ToolCalls {
			res.ToolsUsed = append(res.ToolsUsed, call.Function.Name)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: call.ID,
				Content:    r.execute(ctx, call),
			})
		}
	}
}

// execute 执行一次工具调用。参数非法或工具未知时以 "Error: ..." 的形式回填给模型。
func (r *runner) execute(ctx context.Context, call llm.ToolCall) string {
	if r.registry == nil {
		return toolError(fmt.Errorf("no tools are available"))
	}
	args := strings.TrimSpace(call.Function.Arguments)
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		return toolError(fmt.Errorf("arguments for %s are not valid JSON", call.Function.Name))
	}
	out, err := r.registry.Execute(ctx, call.Function.Name, json.RawMessage(args))
	if err != nil {
		return toolError(err)
	}
	return string(out)
}

func toolError(err error) string {
	b, _ := json.Marshal(map[string]string{"result": "Error: " + err.Error()})
	return string(b)
}

// decodeStructured 宽松地解析模型输出：允许 ``` 代码块包裹，允许 JSON 前后有多余文字。
func decodeStructured(raw string, out interface{}) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" || s == "null" {
		return fmt.Errorf("%w: empty output", ErrNoStructuredOutput)
	}
	err := json.Unmarshal([]byte(s), out)
	if err == nil {
		return nil
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		if json.Unmarshal([]byte(s[start:end+1]), out) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrNoStructuredOutput, err)
}
