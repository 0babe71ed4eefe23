package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tutorverse-go/internal/model"
	"tutorverse-go/internal/repository"
	"tutorverse-go/pkg/log"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// TurnHandler 查询 MySQL 中的问答流水。
type TurnHandler struct {
	repo repository.TurnRepository
}

// NewTurnHandler 创建一个新的 TurnHandler。
func NewTurnHandler(repo repository.TurnRepository) *TurnHandler {
	return &TurnHandler{repo: repo}
}

// Recent 返回最近的问答记录，limit 默认 20，最大 100。
func (h *TurnHandler) Recent(c *gin.Context) {
	limit := defaultRecentLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			fail(c, http.StatusBadRequest, "limit 必须是正整数")
			return
		}
		limit = n
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	records, err := h.repo.FindRecent(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("查询问答记录失败: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve turns")
		return
	}
	views := make([]model.TurnView, 0, len(records))
	for _, r := range records {
		views = append(views, model.NewTurnView(r))
	}
	success(c, views)
}

// Stats 返回按 intent 聚合的问答数量。
func (h *TurnHandler) Stats(c *gin.Context) {
	counts, err := h.repo.CountByIntent(c.Request.Context())
	if err != nil {
		log.Errorf("统计问答记录失败: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve stats")
		return
	}
	var total int64
	for _, ic := range counts {
		total += ic.Count
	}
	if counts == nil {
		counts = []model.IntentCount{}
	}
	success(c, gin.H{"total": total, "byIntent": counts})
}
