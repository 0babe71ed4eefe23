package agent

import (
	"context"
	"errors"

	"tutorverse-go/internal/model"
	"tutorverse-go/pkg/llm"
	"tutorverse-go/pkg/log"
)

// Classifier 判断一个问题属于 math、physics 还是 other。
type Classifier struct {
	runner *runner
}

func NewClassifier(client llm.Client) *Classifier {
	return &Classifier{runner: newRunner(client, nil, 0)}
}

// Classify 返回的 intent 永远不为空：模型输出缺失或标签非法时兜底为 other。
// 只有调用本身失败时才返回 error。
func (c *Classifier) Classify(ctx context.Context, query string, history []model.HistoryItem) (model.IntentResult, error) {
	var out struct {
		Intent string `json:"intent"`
	}
	res, err := c.runner.run(ctx, classifierPrompt, query, history, &out)
	if err != nil && !errors.Is(err, ErrNoStructuredOutput) {
		return model.IntentResult{}, err
	}
	if err == nil {
		if intent, ok := model.ParseIntent(out.Intent); ok {
			return model.IntentResult{Intent: intent}, nil
		}
	}

	log.Errorw("意图分类失败，回退为 other",
		"query", query,
		"history", history,
		"raw_output", res.Raw,
		"error", err,
	)
	return model.IntentResult{Intent: model.IntentOther, Fallback: true}, nil
}
