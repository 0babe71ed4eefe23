package model

// HistoryItem 是传给分类器和专家 Agent 的一条历史消息，按时间顺序排列，不包含当前问题。
// binding 标签只在 QueryRequest 里经 dive 校验；TutorService 也会丢掉角色非法或内容为空的条目。
type HistoryItem struct {
	Role    Role   `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// IntentResult 是分类器的结果，Intent 永远不为空。
type IntentResult struct {
	Intent Intent `json:"intent"`
	// Fallback 表示模型没有给出合法标签，结果是兜底的 other。
	Fallback bool `json:"-"`
}

type MathResult struct {
	Answer    string   `json:"answer"`
	Fallback  bool     `json:"-"`
	ToolsUsed []string `json:"-"`
}

type PhysicsResult struct {
	Explanation string   `json:"explanation"`
	Fallback    bool     `json:"-"`
	ToolsUsed   []string `json:"-"`
}

type GeneralResult struct {
	Response string `json:"response"`
	Fallback bool   `json:"-"`
}

// ProcessedResponse 是一轮问答对外的唯一结果。
type ProcessedResponse struct {
	Intent Intent `json:"intent"`
	Text   string `json:"text"`
}
