package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"tutorverse-go/internal/model"
	"tutorverse-go/internal/service"
	"tutorverse-go/pkg/log"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 跨域由 CORS 中间件负责
		},
	}
)

// ChatHandler 负责处理 WebSocket 聊天连接，一个连接对应一个会话。
type ChatHandler struct {
	conversations service.ConversationService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(conversations service.ConversationService) *ChatHandler {
	return &ChatHandler{conversations: conversations}
}

// chatFrame 是服务端推送给前端的消息。
type chatFrame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Messages  []model.Message `json:"messages,omitempty"`
	Message   *model.Message  `json:"message,omitempty"`
	AgentName string          `json:"agentName,omitempty"`
	Error     string          `json:"error,omitempty"`
	Status    string          `json:"status,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Date      string          `json:"date,omitempty"`
}

// clientFrame 是前端发来的消息；纯文本消息直接作为问题。
type clientFrame struct {
	Query string `json:"query"`
}

// Handle 处理一个传入的 WebSocket 连接。
func (h *ChatHandler) Handle(c *gin.Context) {
	sessionID := c.Param("sessionId")
	ctx := c.Request.Context()

	transcript, err := h.conversations.GetOrStart(ctx, sessionID)
	if err != nil {
		log.Errorf("加载会话失败: session=%s, err=%v", sessionID, err)
		fail(c, http.StatusInternalServerError, "无法加载会话")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，会话: %s", sessionID)
	_ = writeFrame(conn, chatFrame{Type: "transcript", SessionID: sessionID, Messages: transcript.Messages})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		query := parseQuery(raw)
		reply, err := h.conversations.Submit(ctx, sessionID, query, func(placeholder model.Message) {
			_ = writeFrame(conn, chatFrame{Type: "pending", SessionID: sessionID, Message: &placeholder})
		})
		if err != nil {
			if !errors.Is(err, service.ErrEmptyQuery) && !errors.Is(err, service.ErrTurnInFlight) {
				log.Errorf("处理会话消息失败: session=%s, err=%v", sessionID, err)
			}
			_, message := submitError(err)
			_ = writeFrame(conn, chatFrame{Type: "error", SessionID: sessionID, Error: message})
		} else {
			_ = writeFrame(conn, chatFrame{
				Type:      "reply",
				SessionID: sessionID,
				Message:   &reply,
				AgentName: model.AgentName(reply.Intent),
			})
		}

		// 无论成功与否都发送 completion 通知
		now := time.Now()
		if err := writeFrame(conn, chatFrame{Type: "completion", Status: "finished", Timestamp: now.UnixMilli(), Date: now.Format("2006-01-02T15:04:05")}); err != nil {
			log.Warnf("写入 WebSocket 消息失败: %v", err)
			break
		}
	}
}

func parseQuery(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, "{") {
		var f clientFrame
		if err := json.Unmarshal([]byte(text), &f); err == nil {
			return f.Query
		}
	}
	return text
}

func writeFrame(conn *websocket.Conn, f chatFrame) error {
	if f.Timestamp == 0 {
		f.Timestamp = time.Now().UnixMilli()
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
