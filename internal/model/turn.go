package model

import (
	"strings"
	"time"
)

// TurnRecord 定义了 tutor_turns 表的 ORM 模型，每一轮问答一条记录。
type TurnRecord struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID            string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"eventId"`
	SessionID          string    `gorm:"type:varchar(64);index" json:"sessionId"`
	Query              string    `gorm:"type:text;not null" json:"query"`
	Intent             string    `gorm:"type:varchar(16);index;not null" json:"intent"`
	ClassifierFallback bool      `gorm:"not null;default:false" json:"classifierFallback"`
	AgentFallback      bool      `gorm:"not null;default:false" json:"agentFallback"`
	ToolsUsed          string    `gorm:"type:varchar(255)" json:"toolsUsed"` // 逗号分隔
	LatencyMs          int64     `gorm:"not null" json:"latencyMs"`
	ErrorMessage       string    `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (TurnRecord) TableName() string {
	return "tutor_turns"
}

// Tools 把 ToolsUsed 拆回切片。
func (r TurnRecord) Tools() []string {
	if r.ToolsUsed == "" {
		return nil
	}
	return strings.Split(r.ToolsUsed, ",")
}

// IntentCount 是按 intent 聚合的计数。
type IntentCount struct {
	Intent string `json:"intent"`
	Count  int64  `json:"count"`
}
