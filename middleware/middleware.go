package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	C "github.com/HarryGifford/entra-object-sync/config"
)

const HEADER_REQUEST_ID = "X-Request-Id"

// SetRequestID tags every request with an id and echoes it on the
// response, so log lines of one request can be correlated.
func SetRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get(HEADER_REQUEST_ID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(HEADER_REQUEST_ID, requestID)

		c.Next()
	}
}

// Logger logs one structured line per request after completion.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		requestID, _ := c.Get("request_id")
		log.WithFields(log.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("Request completed.")
	}
}

// SetAuthByToken authorizes requests by the static service token on the
// 'Authorization' header.
func SetAuthByToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := C.GetConfig().Secrets.APIToken
		if expected == "" {
			// No token configured, routes stay open. Development only.
			if !C.IsDevelopment() {
				log.Error("Service token is not configured.")
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					gin.H{"error": "Service misconfigured"})
				return
			}
			c.Next()
			return
		}

		token := strings.TrimSpace(c.Request.Header.Get("Authorization"))
		token = strings.TrimPrefix(token, "Bearer ")
		if token != expected {
			log.WithField("path", c.Request.URL.Path).Error("Request failed with auth failure.")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Next()
	}
}

// CustomCorsMiddleware for customised cors configuration based on conditions.
func CustomCors() gin.HandlerFunc {
	return func(c *gin.Context) {
		corsConfig := cors.DefaultConfig()

		if C.IsDevelopment() {
			corsConfig.AllowOrigins = []string{"http://localhost:8080", "http://localhost:3000"}
			corsConfig.AddAllowHeaders("Authorization")
		}

		cors.New(corsConfig)(c)
		c.Next()
	}
}
