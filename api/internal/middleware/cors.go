package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS открыт для всех: клиент - мобильное приложение и веб без cookies.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "X-Requested-With", "X-Request-Timeout"},
		ExposeHeaders:   []string{"X-Cache"},
		MaxAge:          12 * time.Hour,
	})
}
