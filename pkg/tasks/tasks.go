// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TurnRecordTask 描述一轮已经完成的问答，由消费者写入 tutor_turns 表。
type TurnRecordTask struct {
	EventID            string    `json:"event_id"`
	SessionID          string    `json:"session_id,omitempty"`
	Query              string    `json:"query"`
	Intent             string    `json:"intent"`
	ClassifierFallback bool      `json:"classifier_fallback"`
	AgentFallback      bool      `json:"agent_fallback"`
	ToolsUsed          []string  `json:"tools_used,omitempty"`
	LatencyMs          int64     `json:"latency_ms"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// NewTurnRecordTask 生成带有唯一 EventID 的任务，EventID 用于消费端幂等。
func NewTurnRecordTask(sessionID, query string, now time.Time) TurnRecordTask {
	return TurnRecordTask{
		EventID:    uuid.NewString(),
		SessionID:  sessionID,
		Query:      query,
		OccurredAt: now,
	}
}

// ToolsCSV 以逗号拼接工具名，便于落库。
func (t TurnRecordTask) ToolsCSV() string {
	return strings.Join(t.ToolsUsed, ",")
}
