package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS 按白名单回写跨域响应头，"*" 表示允许任意来源。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed, explicit := false, false
		for _, o := range allowedOrigins {
			if o == "*" {
				allowed = true
			} else if o == origin {
				allowed, explicit = true, true
			}
		}

		if allowed && origin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
			// 通配匹配不带凭证
			if explicit {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
