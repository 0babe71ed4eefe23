package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tutorverse-go/internal/model"
	"tutorverse-go/internal/service"
	"tutorverse-go/pkg/log"
)

// TutorHandler 暴露无状态的单轮问答接口，历史由调用方提供。
type TutorHandler struct {
	tutor service.TutorService
}

// NewTutorHandler 创建一个新的 TutorHandler。
func NewTutorHandler(tutor service.TutorService) *TutorHandler {
	return &TutorHandler{tutor: tutor}
}

// QueryRequest 定义了问答接口的请求体。空问题由 TutorService 统一处理。
type QueryRequest struct {
	Query   string              `json:"query"`
	History []model.HistoryItem `json:"history" binding:"omitempty,dive"`
}

// QueryResponse 在 ProcessedResponse 之外附带处理该问题的 Agent 名称。
type QueryResponse struct {
	model.ProcessedResponse
	AgentName string `json:"agentName"`
}

// Query 处理 POST /api/v1/tutor/query。
func (h *TutorHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Query: Invalid request payload, error: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求负载：history 中的 role 只能是 user 或 assistant")
		return
	}

	resp := h.tutor.ProcessQuery(c.Request.Context(), req.Query, req.History)
	success(c, QueryResponse{ProcessedResponse: resp, AgentName: model.AgentName(resp.Intent)})
}
