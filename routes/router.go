package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"instituto/config"
	"instituto/controllers"
	"instituto/middleware"
	"instituto/utils"
)

// SetupRouter wires middleware and routes onto a Gin engine.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()

	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	if accessLogger, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel,
		cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
		router.Use(utils.Ginzap(accessLogger, time.RFC3339, true))
		router.Use(utils.RecoveryWithZap(accessLogger, true))
	} else {
		utils.Sugar.Warnf("Access log unavailable, falling back to default recovery: %v", err)
		router.Use(gin.Recovery())
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.Static("/media", cfg.MediaDir)

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	blogController := controllers.NewBlogController(db)
	accountController := controllers.NewAccountController(db)

	router.GET("/", blogController.Landing)

	blog := router.Group("/blog")
	{
		blog.GET("", blogController.List)
		blog.GET("/crear", middleware.AuthRequired(), blogController.NewForm)
		blog.POST("/crear", middleware.AuthRequired(), blogController.Create)
		blog.GET("/:id", blogController.Detail)
		blog.POST("/:id", middleware.AuthOptional(), blogController.Comment)
		blog.GET("/:id/editar", middleware.AuthRequired(), blogController.EditForm)
		blog.POST("/:id/editar", middleware.AuthRequired(), blogController.Update)
		blog.GET("/:id/eliminar", middleware.AuthRequired(), blogController.DeleteConfirm)
		blog.POST("/:id/eliminar", middleware.AuthRequired(), blogController.Delete)
	}

	usuarios := router.Group("/usuarios")
	usuarios.Use(middleware.RateLimitMiddleware())
	{
		usuarios.POST("/registro", accountController.Register)
		usuarios.POST("/login", accountController.Login)
		usuarios.POST("/logout", middleware.AuthRequired(), accountController.Logout)
		usuarios.GET("/perfil", middleware.AuthRequired(), accountController.Profile)
		usuarios.POST("/perfil", middleware.AuthRequired(), accountController.UpdateProfile)
	}

	router.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return router
}
