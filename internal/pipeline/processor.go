// Package pipeline 定义了问答记录的落库流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"tutorverse-go/internal/model"
	"tutorverse-go/internal/repository"
	"tutorverse-go/pkg/log"
	"tutorverse-go/pkg/tasks"
)

// 超长的问题在流水表里截断保存。
const maxStoredQueryRunes = 2000

var ErrInvalidTask = errors.New("invalid turn record task")

// Processor 把 TurnRecordTask 写入 tutor_turns 表。
// Kafka 消费者调用 Process；未启用 Kafka 时，它也直接作为 TurnRecorder 使用。
type Processor struct {
	turnRepo repository.TurnRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(turnRepo repository.TurnRepository) *Processor {
	return &Processor{turnRepo: turnRepo}
}

// Process 是问答记录处理的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.TurnRecordTask) error {
	log.Infof("[Processor] 开始处理问答记录, EventID: %s, Intent: %s", task.EventID, task.Intent)

	// 1. 校验任务
	if task.EventID == "" || task.Intent == "" {
		log.Warnf("[Processor] 问答记录缺少必要字段, EventID: %q, Intent: %q", task.EventID, task.Intent)
		return ErrInvalidTask
	}

	// 2. 转换为数据库模型
	record := toRecord(task)

	// 3. 写入数据库
	if err := p.turnRepo.Create(ctx, record); err != nil {
		log.Errorf("[Processor] 保存问答记录失败, EventID: %s, Error: %v", task.EventID, err)
		return fmt.Errorf("保存问答记录失败: %w", err)
	}

	log.Infof("[Processor] 问答记录保存成功, EventID: %s, LatencyMs: %d", task.EventID, task.LatencyMs)
	return nil
}

// RecordTurn 满足 service.TurnRecorder 接口。
func (p *Processor) RecordTurn(ctx context.Context, task tasks.TurnRecordTask) error {
	return p.Process(ctx, task)
}

func toRecord(task tasks.TurnRecordTask) *model.TurnRecord {
	query := task.Query
	if utf8.RuneCountInString(query) > maxStoredQueryRunes {
		query = string([]rune(query)[:maxStoredQueryRunes]) + "…"
	}
	record := &model.TurnRecord{
		EventID:            task.EventID,
		SessionID:          task.SessionID,
		Query:              query,
		Intent:             task.Intent,
		ClassifierFallback: task.ClassifierFallback,
		AgentFallback:      task.AgentFallback,
		ToolsUsed:          task.ToolsCSV(),
		LatencyMs:          task.LatencyMs,
		ErrorMessage:       task.ErrorMessage,
	}
	if !task.OccurredAt.IsZero() {
		record.CreatedAt = task.OccurredAt
	}
	return record
}
