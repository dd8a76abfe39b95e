package middleware

import (
	"errors"
	"strings"

	"paygate_backend/internal/auth"
	"paygate_backend/internal/logger"
	"paygate_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	ctxKeySubject = "subject"
	ctxKeyRole    = "role"
)

// AdminAuthMiddleware requires a valid admin bearer token.
func AdminAuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		claims, err := tokens.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Rejected admin token", "reason", err.Error(), "expired", errors.Is(err, auth.ErrExpiredToken))
			apperrors.HandleError(c, apperrors.ErrInvalidToken)
			return
		}
		if claims.Role != auth.RoleAdmin {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Admin role required"))
			return
		}

		c.Set(ctxKeySubject, claims.Subject)
		c.Set(ctxKeyRole, claims.Role)
		c.Next()
	}
}

// GetSubject returns the authenticated admin's name, if any.
func GetSubject(c *gin.Context) string {
	return c.GetString(ctxKeySubject)
}
