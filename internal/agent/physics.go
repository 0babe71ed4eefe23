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

const (
	// PhysicsHiccupExplanation 用于模型返回了空的或非法的输出。
	PhysicsHiccupExplanation = "I'm sorry, I encountered a hiccup trying to explain that. " +
		"Could you try rephrasing or asking a different physics question?"
	// PhysicsStumpedExplanation 用于调用本身失败。
	PhysicsStumpedExplanation = "I'm truly stumped on that one! There was an unexpected issue processing your physics question. " +
		"Please try a different question."
)

// PhysicsAgent 讲解物理概念，可以查询物理常数。它自己处理所有失败，从不返回 error。
type PhysicsAgent struct {
	runner *runner
}

func NewPhysicsAgent(client llm.Client, registry *tools.Registry, maxToolRounds int) *PhysicsAgent {
	return &PhysicsAgent{runner: newRunner(client, registry, maxToolRounds, tools.PhysicsConstantName)}
}

func (a *PhysicsAgent) Generate(ctx context.Context, question string, history []model.HistoryItem) model.PhysicsResult {
	var out model.PhysicsResult
	res, err := a.runner.run(ctx, physicsPrompt, question, history, &out)

	switch {
	case err == nil && strings.TrimSpace(out.Explanation) != "":
		out.ToolsUsed = res.ToolsUsed
		return out
	case err == nil || errors.Is(err, ErrNoStructuredOutput):
		log.Errorw("物理 Agent 没有返回有效输出",
			"question", question,
			"history", history,
			"raw_output", res.Raw,
			"error", err,
		)
		return model.PhysicsResult{Explanation: PhysicsHiccupExplanation, Fallback: true, ToolsUsed: res.ToolsUsed}
	default:
		log.Errorw("物理 Agent 调用失败",
			"question", question,
			"history", history,
			"error", err,
		)
		return model.PhysicsResult{Explanation: PhysicsStumpedExplanation, Fallback: true, ToolsUsed: res.ToolsUsed}
	}
}
