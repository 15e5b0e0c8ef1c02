package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"

	"smarthub/internal/cache"
	"smarthub/internal/logger"
	"smarthub/internal/models"
	"smarthub/internal/repository"

	"github.com/gin-gonic/gin"
)

// Keys under which the authenticated identity is stored in the gin context.
const (
	UserIDKey  = "user_id"
	IsStaffKey = "is_staff"
)

const requestIDHeader = "X-Request-ID"

// AuthCache remembers users that recently passed Basic auth.
type AuthCache interface {
	GetUserByAuth(ctx context.Context, email, passwordHash string) (cache.CachedUser, error)
	SetUserByAuth(ctx context.Context, email, passwordHash string, u cache.CachedUser) error
}

// CORS handles preflight requests and sets permissive CORS headers
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// RequestID propagates X-Request-ID or generates one, and stores it in the
// request context for logger.WithContext.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = logger.NewRequestID()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Timeout bounds the request context. Handlers still write their own
// response; storage and notifier calls observe the deadline.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Logger logs requests that completed with an error status
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		if c.Writer.Status() < 400 {
			return
		}

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			logFields = append(logFields, "error", c.Errors.String())
		}
		logger.WithContext(c.Request.Context()).Error("Request completed with error", logFields...)
	}
}

// Recovery logs panics and answers 500
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.WithContext(c.Request.Context()).Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		}
	})
}

// BasicAuth authenticates the user by email and password, checking the
// Valkey cache first and the users table second. authCache may be nil.
// Staff identities are never cached: check-in rights end the moment the
// account is deactivated.
func BasicAuth(users repository.UserRepository, authCache AuthCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="Restricted"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
			return
		}

		ctx := c.Request.Context()
		passwordHash := HashPassword(password)

		if authCache != nil {
			if cached, err := authCache.GetUserByAuth(ctx, username, passwordHash); err == nil && !cached.IsStaff {
				setIdentity(c, cached.UserID, cached.IsStaff)
				c.Next()
				return
			}
		}

		user, err := users.GetByEmail(ctx, username)
		if err != nil || user == nil || !user.IsActive || user.PasswordHash == "" || user.PasswordHash != passwordHash {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid credentials"})
			return
		}

		if authCache != nil && !user.IsStaff {
			cached := cache.CachedUser{UserID: user.UserID, IsStaff: user.IsStaff}
			if err := authCache.SetUserByAuth(ctx, username, passwordHash, cached); err != nil {
				logger.WithContext(ctx).Warn("Failed to cache auth lookup", "error", err)
			}
		}

		setIdentity(c, user.UserID, user.IsStaff)
		c.Next()
	}
}

// RequireStaff rejects users without the staff flag. It must run after BasicAuth.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool(IsStaffKey) {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{Error: "Staff access required"})
			return
		}
		c.Next()
	}
}

// HashPassword returns the hex SHA-256 digest stored in users.password_hash.
func HashPassword(password string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(password)))
}

func setIdentity(c *gin.Context, userID int64, isStaff bool) {
	c.Set(UserIDKey, userID)
	c.Set(IsStaffKey, isStaff)
	c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), userID))
}
