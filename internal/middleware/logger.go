package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// RequestID injects an X-Request-ID header into the request and response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger logs each HTTP request with method, path, status, and latency.
// Session routes include the session id from the path.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		requestID, _ := c.Get(requestIDKey)
		if id := c.Param("id"); id != "" {
			log.Printf("[%s] %s %s %d %s session=%s",
				requestID, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), latency, id)
			return
		}
		log.Printf("[%s] %s %s %d %s",
			requestID, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), latency)
	}
}

// Recovery recovers from panics and returns a 500 error in the API envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID, _ := c.Get(requestIDKey)
		log.Printf("[%s] panic recovered: %v", requestID, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   gin.H{"code": "INTERNAL_ERROR", "message": "an internal error occurred"},
		})
	})
}
