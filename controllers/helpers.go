package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"instituto/middleware"
	"instituto/models"
)

// currentUserID reads the authenticated user's ID from the request context.
func currentUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// currentUser resolves the authenticated caller's full record. The record is
// needed wherever authorization depends on staff/superuser flags.
func currentUser(ctx *gin.Context, db *gorm.DB) (*models.User, bool) {
	id, ok := currentUserID(ctx)
	if !ok {
		return nil, false
	}
	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func parsePage(raw string) int {
	page := 1
	if p, err := strconv.Atoi(raw); err == nil && p > 0 {
		page = p
	}
	return page
}

func parseBoolField(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "on", "si":
		return true
	}
	return false
}
