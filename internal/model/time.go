package model

import (
	"fmt"
	"time"
)

// LocalTime 以 "YYYY-MM-DD HH:MM:SS" 格式输出时间，用于管理类接口的展示。
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte(`""`), nil
	}
	return []byte(fmt.Sprintf("%q", time.Time(t).Format(timeFormat))), nil
}

// TurnView 是 TurnRecord 对外展示的形式。
type TurnView struct {
	ID                 uint      `json:"id"`
	SessionID          string    `json:"sessionId"`
	Query              string    `json:"query"`
	Intent             string    `json:"intent"`
	AgentName          string    `json:"agentName"`
	ClassifierFallback bool      `json:"classifierFallback"`
	AgentFallback      bool      `json:"agentFallback"`
	ToolsUsed          []string  `json:"toolsUsed"`
	LatencyMs          int64     `json:"latencyMs"`
	ErrorMessage       string    `json:"errorMessage,omitempty"`
	CreatedAt          LocalTime `json:"createdAt"`
}

// NewTurnView 把数据库记录转换为展示结构。
func NewTurnView(r TurnRecord) TurnView {
	return TurnView{
		ID:                 r.ID,
		SessionID:          r.SessionID,
		Query:              r.Query,
		Intent:             r.Intent,
		AgentName:          AgentName(Intent(r.Intent)),
		ClassifierFallback: r.ClassifierFallback,
		AgentFallback:      r.AgentFallback,
		ToolsUsed:          r.Tools(),
		LatencyMs:          r.LatencyMs,
		ErrorMessage:       r.ErrorMessage,
		CreatedAt:          LocalTime(r.CreatedAt),
	}
}
