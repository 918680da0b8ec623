package middleware

import (
	"net/http"
	"strings"
	"time"

	"mobile-money-gateway/internal/core/ports"
	"mobile-money-gateway/pkg/apperror"
	"mobile-money-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID = "X-Request-ID"

	// Context keys
	CtxAccountID = "account_id"
	CtxTokenID   = "token_id"
	CtxScope     = "scope"
)

// RequestID tags every request with a correlation id, reusing a well-formed
// client-supplied X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(response.CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// SessionAuth validates the bearer token and checks that its session has not
// been revoked. Store errors reject the request.
func SessionAuth(tokenSvc ports.TokenService, sessions ports.SessionStore, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		claims, err := tokenSvc.Validate(tokenStr)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		live, err := sessions.Exists(c.Request.Context(), claims.AccountID, claims.TokenID)
		if err != nil {
			log.Error().Err(err).Str("account_id", claims.AccountID.String()).Msg("session lookup failed")
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if !live {
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}

		c.Set(CtxAccountID, claims.AccountID)
		c.Set(CtxTokenID, claims.TokenID)
		c.Set(CtxScope, claims.Scope)
		c.Next()
	}
}

// RequireScope rejects tokens issued for a different scope.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxScope) != scope {
			response.Error(c, apperror.ErrCapabilityRequired())
			c.Abort()
			return
		}
		c.Next()
	}
}

// AccountID returns the authenticated account. The second value is false on
// routes without SessionAuth.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(CtxAccountID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if id, ok := AccountID(c); ok {
			event = event.Str("account_id", id.String())
		}
		if len(c.Errors) > 0 && status >= http.StatusInternalServerError {
			event = event.Str("error", c.Errors.String())
		}
		event.
			Str("request_id", c.GetString(response.CtxRequestID)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.InternalError(nil))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// MaxBodySize rejects bodies declared larger than maxBytes and caps the
// reader for the rest.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.ErrPayloadTooLarge())
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
