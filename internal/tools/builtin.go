package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"tutorverse-go/pkg/llm"
)

var calculatorDef = llm.Tool{
	Type: "function",
	Function: llm.ToolFunction{
		Name: CalculatorName,
		Description: "Evaluates a mathematical expression and returns the result. " +
			"Supports + - * / ** and parentheses. Use standard operators (e.g. '25 * 11').",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"expression": {
					"type": "string",
					"description": "The mathematical expression to evaluate, e.g. '25 * 11' or '15 - (5 + 2 + 3)'."
				}
			},
			"required": ["expression"]
		}`),
	},
}

var constantDef = llm.Tool{
	Type: "function",
	Function: llm.ToolFunction{
		Name: PhysicsConstantName,
		Description: "Looks up the value and unit of a common physical constant, such as " +
			"'speed of light', 'gravitational constant', 'planck constant', 'boltzmann constant' or 'elementary charge'.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"constantName": {
					"type": "string",
					"description": "The name of the physical constant, e.g. 'speed of light'."
				}
			},
			"required": ["constantName"]
		}`),
	},
}

// NewBuiltinRegistry 返回注册了计算器和常数查询的工具表。
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(calculatorDef, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var in CalculatorInput
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid calculator arguments: %w", err)
		}
		return json.Marshal(Calculate(in.Expression))
	})
	r.MustRegister(constantDef, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var in ConstantInput
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid constant lookup arguments: %w", err)
		}
		return json.Marshal(LookupConstant(in.ConstantName))
	})
	return r
}
