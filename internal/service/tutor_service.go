// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tutorverse-go/internal/config"
	"tutorverse-go/internal/model"
	"tutorverse-go/pkg/log"
	"tutorverse-go/pkg/tasks"
)

// 对外展示的固定文案。
const (
	EmptyQueryText   = "Please enter a question."
	ProcessErrorText = "Sorry, I encountered an error trying to process your request. Please try again.\nDetails: "
	ReminderText     = "I specialize in Math and Physics! Try asking me a question like 'What is Newton's second law?' or 'Solve 2x + 5 = 11'."
)

// QueryTooLongText 返回超长问题的提示。
func QueryTooLongText(max int) string {
	return fmt.Sprintf("Your question is too long. Please keep it under %d characters.", max)
}

// IntentClassifier 判断问题的类别。只有调用失败时返回 error。
type IntentClassifier interface {
	Classify(ctx context.Context, query string, history []model.HistoryItem) (model.IntentResult, error)
}

type MathAgent interface {
	Generate(ctx context.Context, question string, history []model.HistoryItem) (model.MathResult, error)
}

// PhysicsAgent 自己处理所有失败，因此没有 error 返回值。
type PhysicsAgent interface {
	Generate(ctx context.Context, question string, history []model.HistoryItem) model.PhysicsResult
}

type GeneralAgent interface {
	Generate(ctx context.Context, query string, history []model.HistoryItem) (model.GeneralResult, error)
}

// TurnRecorder 接收每一轮问答的记录，可以是 Kafka 生产者，也可以直接落库。
type TurnRecorder interface {
	RecordTurn(ctx context.Context, task tasks.TurnRecordTask) error
}

// TutorService 定义了一轮问答的编排：校验、分类、分发、包装。
type TutorService interface {
	// ProcessQuery 永远返回一个 ProcessedResponse，所有失败都以 intent=error 表示。
	ProcessQuery(ctx context.Context, query string, history []model.HistoryItem) model.ProcessedResponse
}

type tutorService struct {
	classifier IntentClassifier
	math       MathAgent
	physics    PhysicsAgent
	general    GeneralAgent
	recorder   TurnRecorder
	cfg        config.TutorConfig
}

// NewTutorService 创建一个新的 TutorService 实例。recorder 可以为 nil。
func NewTutorService(
	classifier IntentClassifier,
	math MathAgent,
	physics PhysicsAgent,
	general GeneralAgent,
	recorder TurnRecorder,
	cfg config.TutorConfig,
) TutorService {
	return &tutorService{
		classifier: classifier,
		math:       math,
		physics:    physics,
		general:    general,
		recorder:   recorder,
		cfg:        cfg,
	}
}

type sessionIDKey struct{}

// WithSessionID 把会话 ID 放进 context，用于问答记录。
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

func sessionIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

func (s *tutorService) ProcessQuery(ctx context.Context, query string, history []model.HistoryItem) model.ProcessedResponse {
	// 1. 校验输入，不合法时不调用任何后端
	q := strings.TrimSpace(query)
	if q == "" {
		return model.ProcessedResponse{Intent: model.IntentError, Text: EmptyQueryText}
	}
	if s.cfg.MaxQueryLength > 0 && utf8.RuneCountInString(q) > s.cfg.MaxQueryLength {
		return model.ProcessedResponse{Intent: model.IntentError, Text: QueryTooLongText(s.cfg.MaxQueryLength)}
	}

	history = s.limitHistory(history)
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}

	start := time.Now()
	task := tasks.NewTurnRecordTask(sessionIDFrom(ctx), q, start)

	// 2-4. 分类、分发、包装
	resp, err := s.route(ctx, q, history, &task)
	if err != nil {
		log.Errorw("处理问题失败",
			"query", q,
			"history", history,
			"error", err,
		)
		resp = model.ProcessedResponse{Intent: model.IntentError, Text: ProcessErrorText + err.Error()}
		task.ErrorMessage = err.Error()
	}

	task.Intent = string(resp.Intent)
	task.LatencyMs = time.Since(start).Milliseconds()
	s.record(ctx, task)

	log.Infow("问答完成",
		"session_id", task.SessionID,
		"intent", resp.Intent,
		"latency_ms", task.LatencyMs,
		"tools", task.ToolsUsed,
	)
	return resp
}

// route 是单一的故障边界：分类器和专家 Agent 的错误以及 panic 都在这里转为 error。
func (s *tutorService) route(ctx context.Context, q string, history []model.HistoryItem, task *tasks.TurnRecordTask) (resp model.ProcessedResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	classified, err := s.classifier.Classify(ctx, q, history)
	if err != nil {
		return resp, err
	}
	task.ClassifierFallback = classified.Fallback

	switch classified.Intent {
	case model.IntentMath:
		res, err := s.math.Generate(ctx, q, history)
		if err != nil {
			return resp, err
		}
		task.AgentFallback, task.ToolsUsed = res.Fallback, res.ToolsUsed
		return model.ProcessedResponse{Intent: model.IntentMath, Text: res.Answer}, nil

	case model.IntentPhysics:
		res := s.physics.Generate(ctx, q, history)
		task.AgentFallback, task.ToolsUsed = res.Fallback, res.ToolsUsed
		return model.ProcessedResponse{Intent: model.IntentPhysics, Text: res.Explanation}, nil

	default:
		res, err := s.general.Generate(ctx, q, history)
		if err != nil {
			return resp, err
		}
		task.AgentFallback = res.Fallback
		return model.ProcessedResponse{Intent: model.IntentOther, Text: res.Response + "\n\n" + ReminderText}, nil
	}
}

// limitHistory 丢掉角色非法或内容为空的条目，再只保留最近的 HistoryLimit 条。
func (s *tutorService) limitHistory(history []model.HistoryItem) []model.HistoryItem {
	kept := make([]model.HistoryItem, 0, len(history))
	for _, h := range history {
		if (h.Role != model.RoleUser && h.Role != model.RoleAssistant) || strings.TrimSpace(h.Content) == "" {
			continue
		}
		kept = append(kept, h)
	}
	if s.cfg.HistoryLimit > 0 && len(kept) > s.cfg.HistoryLimit {
		return kept[len(kept)-s.cfg.HistoryLimit:]
	}
	return kept
}

// record 异步提交问答记录，失败只记录日志，不影响本轮回复。
func (s *tutorService) record(ctx context.Context, task tasks.TurnRecordTask) {
	if s.recorder == nil {
		return
	}
	go func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.recorder.RecordTurn(rctx, task); err != nil {
			log.Warnw("记录问答失败", "event_id", task.EventID, "error", err)
		}
	}()
}
