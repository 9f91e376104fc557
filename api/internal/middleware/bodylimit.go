package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit обрезает тело запроса; чтение сверх n вернёт ошибку в биндинге JSON.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
