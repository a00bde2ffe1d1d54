package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// contextKey namespaces values this package stores on a request context.
type contextKey string

const (
	userIDKey    = contextKey("userID")
	loggerCtxKey = contextKey("logger")
)

// WithUserID returns a copy of ctx carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromCtx returns the user ID stored by AuthMiddleware, if any.
func UserIDFromCtx(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// GetUserIDFromContext retrieves the authenticated user ID for the current request.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	if c.Request == nil {
		return "", false
	}
	return UserIDFromCtx(c.Request.Context())
}
