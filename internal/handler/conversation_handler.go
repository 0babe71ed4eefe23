package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tutorverse-go/internal/model"
	"tutorverse-go/internal/service"
	"tutorverse-go/pkg/log"
)

// ConversationHandler 处理与服务端会话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// SubmitRequest 是向会话提问的请求体。
type SubmitRequest struct {
	Query string `json:"query"`
}

// ReplyResponse 是一轮问答完成后返回给前端的消息。
type ReplyResponse struct {
	SessionID string        `json:"sessionId"`
	Message   model.Message `json:"message"`
	AgentName string        `json:"agentName"`
}

// Create 新建一个以问候语开头的会话。
func (h *ConversationHandler) Create(c *gin.Context) {
	t, err := h.service.Start(c.Request.Context())
	if err != nil {
		log.Errorf("Create conversation failed: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}
	success(c, t)
}

// Get 返回会话记录，不存在时以该 ID 新建。
func (h *ConversationHandler) Get(c *gin.Context) {
	t, err := h.service.GetOrStart(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		log.Errorf("Get conversation failed: session=%s, err=%v", c.Param("sessionId"), err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve conversation")
		return
	}
	success(c, t)
}

// Submit 向会话提交一个问题并同步返回回复。
func (h *ConversationHandler) Submit(c *gin.Context) {
	sessionID := c.Param("sessionId")
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}

	reply, err := h.service.Submit(c.Request.Context(), sessionID, req.Query, nil)
	if err != nil {
		status, message := submitError(err)
		if status == http.StatusInternalServerError {
			log.Errorf("Submit failed: session=%s, err=%v", sessionID, err)
		}
		fail(c, status, message)
		return
	}
	success(c, ReplyResponse{SessionID: sessionID, Message: reply, AgentName: model.AgentName(reply.Intent)})
}

// Reset 清空会话，只保留问候语。问答进行中时返回 409。
func (h *ConversationHandler) Reset(c *gin.Context) {
	t, err := h.service.Reset(c.Request.Context(), c.Param("sessionId"))
	if errors.Is(err, service.ErrTurnInFlight) {
		fail(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Errorf("Reset conversation failed: session=%s, err=%v", c.Param("sessionId"), err)
		fail(c, http.StatusInternalServerError, "Failed to reset conversation")
		return
	}
	success(c, t)
}

func submitError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrTurnInFlight):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, service.ClientErrorText
	}
}
