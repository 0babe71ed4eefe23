package model

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReplyPending        = errors.New("a reply is already pending for this conversation")
	ErrPlaceholderNotFound = errors.New("pending placeholder not found")
)

// Message 是会话记录中的一条消息。IsLoading 的消息是等待回复的占位符，
// 同一时间最多只有一条，回复到达时按 ID 原地替换。
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Intent    Intent    `json:"intent,omitempty"`
	IsLoading bool      `json:"isLoading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript 是一个会话的完整消息记录，存放在 Redis 中。
type Transcript struct {
	SessionID  string    `json:"sessionId"`
	// Generation 在每次新建或重置会话时重新生成，用来识别被重置前的旧副本。
	Generation string    `json:"generation,omitempty"`
	Messages   []Message `json:"messages"`
	NextSeq    int64     `json:"nextSeq"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewTranscript 创建一个以问候语开头的新会话。
func NewTranscript(sessionID, greeting string, now time.Time) *Transcript {
	t := &Transcript{SessionID: sessionID, Generation: uuid.NewString(), UpdatedAt: now}
	t.Messages = append(t.Messages, Message{
		ID:        t.nextID(),
		Role:      RoleAssistant,
		Content:   greeting,
		Intent:    IntentGreeting,
		Timestamp: now,
	})
	return t
}

func (t *Transcript) nextID() string {
	t.NextSeq++
	return strconv.FormatInt(t.NextSeq, 10)
}

// Pending 返回当前的占位消息，没有则返回 nil。
func (t *Transcript) Pending() *Message {
	for i := range t.Messages {
		if t.Messages[i].IsLoading {
			return &t.Messages[i]
		}
	}
	return nil
}

// History 返回可以作为上下文的消息：排除占位符和空内容。
func (t *Transcript) History() []HistoryItem {
	items := make([]HistoryItem, 0, len(t.Messages))
	for _, m := range t.Messages {
		if m.IsLoading || m.Content == "" {
			continue
		}
		items = append(items, HistoryItem{Role: m.Role, Content: m.Content})
	}
	return items
}

// BeginTurn 在追加用户消息之前截取历史，然后追加用户消息和占位符。
// 返回的历史只包含之前的消息，当前问题单独传递。
func (t *Transcript) BeginTurn(query string, now time.Time) ([]HistoryItem, Message, error) {
	if t.Pending() != nil {
		return nil, Message{}, ErrReplyPending
	}
	history := t.History()

	t.Messages = append(t.Messages, Message{
		ID:        t.nextID(),
		Role:      RoleUser,
		Content:   query,
		Timestamp: now,
	})
	placeholder := Message{
		ID:        t.nextID(),
		Role:      RoleAssistant,
		IsLoading: true,
		Timestamp: now,
	}
	t.Messages = append(t.Messages, placeholder)
	t.UpdatedAt = now
	return history, placeholder, nil
}

// ResolveTurn 用回复原地替换占位符，不会追加新消息。
func (t *Transcript) ResolveTurn(placeholderID string, resp ProcessedResponse, now time.Time) (Message, error) {
	for i := range t.Messages {
		m := &t.Messages[i]
		if m.ID != placeholderID || !m.IsLoading {
			continue
		}
		m.Content = resp.Text
		m.Intent = resp.Intent
		m.IsLoading = false
		m.Timestamp = now
		t.UpdatedAt = now
		return *m, nil
	}
	return Message{}, ErrPlaceholderNotFound
}

// Trim 只保留最近的 max 条消息，但不会丢弃正在等待的占位符及其对应的提问。
func (t *Transcript) Trim(max int) {
	if max <= 0 || len(t.Messages) <= max {
		return
	}
	cut := len(t.Messages) - max
	for i := range t.Messages {
		if !t.Messages[i].IsLoading {
			continue
		}
		keepFrom := i
		if i > 0 && t.Messages[i-1].Role == RoleUser {
			keepFrom = i - 1
		}
		if keepFrom < cut {
			cut = keepFrom
		}
		break
	}
	t.Messages = append([]Message(nil), t.Messages[cut:]...)
}
