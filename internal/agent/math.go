package agent

import (
	"context"
	"errors"
	"strings"

	"tutorverse-go/internal/model"
	"tutorverse-go/internal/tools"
	"tutorverse-go/pkg/llm"
	"tutorverse-go/pkg/log"
)

// MathFallbackAnswer 是模型没有给出可用答案时的固定回复。
const MathFallbackAnswer = "I'm sorry, I wasn't able to generate a response for your math question. " +
	"This might be due to the complexity or phrasing of the question, or an internal issue. " +
	"Please try rephrasing or asking a different question."

// MathAgent 回答数学问题，可以调用计算器。
type MathAgent struct {
	runner *runner
}

func NewMathAgent(client llm.Client, registry *tools.Registry, maxToolRounds int) *MathAgent {
	return &MathAgent{runner: newRunner(client, registry, maxToolRounds, tools.CalculatorName)}
}

func (a *MathAgent) Generate(ctx context.Context, question string, history []model.HistoryItem) (model.MathResult, error) {
	var out model.MathResult
	res, err := a.runner.run(ctx, mathPrompt, question, history, &out)
	if err != nil && !errors.Is(err, ErrNoStructuredOutput) {
		return model.MathResult{}, err
	}
	if err == nil && strings.TrimSpace(out.Answer) != "" {
		out.ToolsUsed = res.ToolsUsed
		return out, nil
	}

	log.Errorw("数学 Agent 没有返回有效输出",
		"question", question,
		"history", history,
		"raw_output", res.Raw,
		"error", err,
	)
	return model.MathResult{Answer: MathFallbackAnswer, Fallback: true, ToolsUsed: res.ToolsUsed}, nil
}
