// Package model 包含了应用的数据模型定义。
package model

import "strings"

// Role 是消息的发送方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Intent 标记一条助手消息由哪条处理路径产生。
type Intent string

const (
	IntentMath     Intent = "math"
	IntentPhysics  Intent = "physics"
	IntentOther    Intent = "other"
	IntentError    Intent = "error"
	IntentGreeting Intent = "greeting"
)

// ParseIntent 解析分类器给出的标签，只接受 math / physics / other。
func ParseIntent(s string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentMath:
		return IntentMath, true
	case IntentPhysics:
		return IntentPhysics, true
	case IntentOther:
		return IntentOther, true
	}
	return "", false
}

// AgentName 返回前端展示用的助手名称。
func AgentName(intent Intent) string {
	switch intent {
	case IntentMath:
		return "Math Whiz"
	case IntentPhysics:
		return "Physics Pro"
	case IntentError:
		return "Oops!"
	default:
		return "TutorVerse"
	}
}
