package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"instituto/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// ContextTokenKey stores the raw bearer token so logout can revoke it.
	ContextTokenKey = "token"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, claims, ok := bearerClaims(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// AuthOptional resolves the caller's identity when a valid token is present
// and otherwise lets the request through anonymously. The article detail
// endpoint uses it: anyone may view, only authenticated callers may comment.
func AuthOptional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token, claims, ok := bearerClaims(ctx); ok {
			ctx.Set(ContextUserIDKey, claims.UserID)
			ctx.Set(ContextUsernameKey, claims.Username)
			ctx.Set(ContextTokenKey, token)
		}
		ctx.Next()
	}
}

func bearerClaims(ctx *gin.Context) (string, *utils.Claims, bool) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return "", nil, false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", nil, false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" || utils.IsTokenBlacklisted(token) {
		return "", nil, false
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		return "", nil, false
	}
	return token, claims, true
}
