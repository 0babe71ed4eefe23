// Package tools 实现了专家 Agent 可调用的工具：计算器和物理常数查询。
// 两个工具都是纯函数，可以被并发调用。
package tools

import (
	"strings"

	"tutorverse-go/pkg/calc"
)

// 工具名称，与模型看到的函数名一致。
const (
	CalculatorName      = "calculator"
	PhysicsConstantName = "physicsConstantsLookup"
)

// ConstantNotFound 是未知常数的取值。
const ConstantNotFound = "Constant not found"

type CalculatorInput struct {
	Expression string `json:"expression"`
}

// CalculatorOutput 的 Result 要么是十进制数字字符串，要么以 "Error:" 开头。
type CalculatorOutput struct {
	Result string `json:"result"`
}

type ConstantInput struct {
	ConstantName string `json:"constantName"`
}

type ConstantOutput struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Calculate 计算表达式，任何失败都以 "Error: ..." 的形式放在结果里返回，从不返回 error。
func Calculate(expression string) CalculatorOutput {
	v, err := calc.Eval(expression)
	if err != nil {
		return CalculatorOutput{Result: "Error: " + err.Error()}
	}
	return CalculatorOutput{Result: calc.Format(v)}
}

var constants = map[string]ConstantOutput{
	"speed of light":         {Name: "Speed of Light (c)", Value: "299792458", Unit: "m/s"},
	"gravitational constant": {Name: "Gravitational Constant (G)", Value: "6.6743e-11", Unit: "N(m/kg)^2"},
	"planck constant":        {Name: "Planck Constant (h)", Value: "6.62607015e-34", Unit: "J·s"},
	"boltzmann constant":     {Name: "Boltzmann Constant (k)", Value: "1.380649e-23", Unit: "J/K"},
	"elementary charge":      {Name: "Elementary Charge (e)", Value: "1.602176634e-19", Unit: "C"},
}

// LookupConstant 按名称（忽略大小写和多余空白）查询物理常数。
func LookupConstant(name string) ConstantOutput {
	key := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	if c, ok := constants[key]; ok {
		return c
	}
	return ConstantOutput{Name: name, Value: ConstantNotFound}
}
