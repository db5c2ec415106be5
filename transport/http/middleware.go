package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/apiclient/service"
	"github.com/rs/zerolog"
)

const (
	subjectKey      = "subject"
	requestIDHeader = "X-Request-ID"
)

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			abortDetail(c, http.StatusUnauthorized, msgNotAuthorized, codeNotAuthorized)
			return
		}

		session, err := authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			abortDetail(c, http.StatusUnauthorized, msgTokenNotValid, codeTokenNotValid)
			return
		}

		c.Set(subjectKey, session.Subject)
		c.Next()
	}
}

// RequestLogger logs one line per request, keyed by the client's request id
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("request_id", c.GetHeader(requestIDHeader)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
