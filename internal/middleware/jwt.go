package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/manav-trails/backend/internal/auth"
	"github.com/manav-trails/backend/pkg/response"
)

const (
	// ContextUserRole holds the role claim of the admin token.
	ContextUserRole = "user_role"
	// ContextUserEmail holds the back-office account that signed in.
	ContextUserEmail = "user_email"
)

// JWT guards the /admin routes. It accepts only "Authorization: Bearer <token>"
// carrying a token issued by POST /auth/login, and exposes its email and role
// to the handlers behind it. Webhook routes never pass through here.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Unauthorized(c, "admin token required")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(strings.TrimSpace(token))
		if err != nil {
			response.Unauthorized(c, "invalid or expired admin token")
			c.Abort()
			return
		}
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
