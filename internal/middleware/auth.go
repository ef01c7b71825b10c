package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"log/slog"
	"seoAuditGO/internal/config"
)

// AdminAuth guards settings mutation behind a static admin key
type AdminAuth struct {
	adminKey string
	logger   *slog.Logger
}

// NewAdminAuth creates the admin auth middleware. An empty key disables
// the check, which is only sensible for local development.
func NewAdminAuth(cfg *config.AuthConfig, logger *slog.Logger) *AdminAuth {
	if cfg.AdminKey == "" {
		logger.Warn("ADMIN_API_KEY not set; settings endpoints are unprotected")
	}
	return &AdminAuth{adminKey: cfg.AdminKey, logger: logger}
}

// RequireAdmin rejects requests lacking the admin key
func (a *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.adminKey == "" {
			c.Next()
			return
		}

		key := extractKey(c.Request)
		if subtle.ConstantTimeCompare([]byte(key), []byte(a.adminKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status_code": http.StatusUnauthorized,
				"message":     "Unauthorized",
				"error":       "Invalid or missing admin key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractKey reads the admin key from the Authorization bearer token or
// the X-Admin-Key header
func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return r.Header.Get("X-Admin-Key")
}
