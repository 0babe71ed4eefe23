package agent

import (
	"context"
	"errors"
	"strings"

	"tutorverse-go/internal/model"
	"tutorverse-go/pkg/llm"
	"tutorverse-go/pkg/log"
)

const GeneralFallbackResponse = "I'm not quite sure how to answer that. Perhaps you could try asking a specific Math or Physics question?"

// GeneralAgent 处理数学和物理以外的问题：简短回答或礼貌拒绝，不使用工具。
type GeneralAgent struct {
	runner *runner
}

func NewGeneralAgent(client llm.Client) *GeneralAgent {
	return &GeneralAgent{runner: newRunner(client, nil, 0)}
}

func (a *GeneralAgent) Generate(ctx context.Context, query string, history []model.HistoryItem) (model.GeneralResult, error) {
	var out model.GeneralResult
	res, err := a.runner.run(ctx, generalPrompt, query, history, &out)
	if err != nil && !errors.Is(err, ErrNoStructuredOutput) {
		return model.GeneralResult{}, err
	}
	if err == nil && strings.TrimSpace(out.Response) != "" {
		return out, nil
	}

	log.Warnw("通用 Agent 没有返回有效输出",
		"query", query,
		"history", history,
		"raw_output", res.Raw,
		"error", err,
	)
	return model.GeneralResult{Response: GeneralFallbackResponse, Fallback: true}, nil
}
