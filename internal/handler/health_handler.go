package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger 检查一个依赖是否可用。
type Pinger func(ctx context.Context) error

// HealthHandler 返回服务与依赖的存活状态。
type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler 创建一个新的 HealthHandler。
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health 处理 GET /healthz，任一依赖失败时返回 503。
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[name] = err.Error()
			continue
		}
		deps[name] = "ok"
	}

	message := "ok"
	if status != http.StatusOK {
		message = "degraded"
	}
	c.JSON(status, gin.H{"code": status, "message": message, "data": deps})
}
