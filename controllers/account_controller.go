package controllers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"instituto/config"
	"instituto/middleware"
	"instituto/models"
	"instituto/utils"
)

// AccountController handles registration, sessions and the profile page.
type AccountController struct {
	db       *gorm.DB
	mediaDir string
	tokenTTL time.Duration
}

func NewAccountController(db *gorm.DB) *AccountController {
	cfg := config.Get()
	return &AccountController{
		db:       db,
		mediaDir: cfg.MediaDir,
		tokenTTL: time.Duration(cfg.TokenTTLHours) * time.Hour,
	}
}

// Register handles POST /usuarios/registro. A valid submission creates the
// account and signs the caller in immediately; the issued token is the
// session. Nothing is persisted until every field and the avatar pass
// validation.
func (a *AccountController) Register(ctx *gin.Context) {
	username := strings.TrimSpace(ctx.PostForm("username"))
	email := strings.TrimSpace(strings.ToLower(ctx.PostForm("email")))
	password := ctx.PostForm("password")
	confirm := ctx.PostForm("confirm")
	phone := strings.TrimSpace(ctx.PostForm("telefono"))

	if username == "" {
		utils.Error(ctx, http.StatusBadRequest, 40030, "el nombre de usuario no puede estar vacío")
		return
	}
	if email == "" || !strings.Contains(email, "@") {
		utils.Error(ctx, http.StatusBadRequest, 40031, "el email no es válido")
		return
	}
	if len(password) < 6 {
		utils.Error(ctx, http.StatusBadRequest, 40032, "la contraseña debe tener al menos 6 caracteres")
		return
	}
	if password != confirm {
		utils.Error(ctx, http.StatusBadRequest, 40033, "las contraseñas no coinciden")
		return
	}

	var avatar *multipart.FileHeader
	if fh, err := ctx.FormFile("avatar"); err == nil {
		if verr := utils.ValidateImage(fh); verr != nil {
			utils.Error(ctx, http.StatusBadRequest, 40034, verr.Error())
			return
		}
		avatar = fh
	}

	var count int64
	if err := a.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		utils.Sugar.Errorf("Failed to check username availability: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create user")
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40035, "el nombre de usuario ya existe")
		return
	}
	if err := a.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		utils.Sugar.Errorf("Failed to check email availability: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create user")
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40036, "el email ya está registrado")
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		utils.Sugar.Errorf("Failed to hash password: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create user")
		return
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Phone:        phone,
	}
	if avatar != nil {
		path, err := utils.SaveImage(avatar, a.mediaDir, "avatars")
		if err != nil {
			utils.Sugar.Errorf("Failed to store avatar: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to store avatar")
			return
		}
		user.AvatarPath = path
	}

	if err := a.db.Create(&user).Error; err != nil {
		utils.RemoveImage(user.AvatarPath, a.mediaDir)
		utils.Sugar.Errorf("Failed to create user: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, a.tokenTTL)
	if err != nil {
		utils.Sugar.Errorf("Failed to issue token for user %d: %v", user.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to issue token")
		return
	}

	utils.Sugar.Infof("User %s registered (id=%d)", user.Username, user.ID)
	utils.SuccessMessage(ctx, fmt.Sprintf("Bienvenido %s, tu cuenta fue creada correctamente", user.Username), gin.H{
		"token": token,
		"user":  publicUser(user),
	})
}

// Login handles POST /usuarios/login. The same message covers unknown
// usernames and wrong passwords.
func (a *AccountController) Login(ctx *gin.Context) {
	var req struct {
		Username string `form:"username" json:"username" binding:"required"`
		Password string `form:"password" json:"password" binding:"required"`
	}
	if err := ctx.ShouldBind(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40037, "usuario y contraseña son obligatorios")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "usuario o contraseña incorrectos")
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "usuario o contraseña incorrectos")
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Username, a.tokenTTL)
	if err != nil {
		utils.Sugar.Errorf("Failed to issue token for user %d: %v", user.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to issue token")
		return
	}

	utils.Sugar.Infof("User %s logged in", user.Username)
	utils.SuccessMessage(ctx, fmt.Sprintf("Bienvenido %s", user.Username), gin.H{
		"token": token,
		"user":  publicUser(user),
	})
}

// Logout handles POST /usuarios/logout. The bearer token is blacklisted
// until its natural expiry so it cannot be replayed.
func (a *AccountController) Logout(ctx *gin.Context) {
	raw, _ := ctx.Get(middleware.ContextTokenKey)
	token, _ := raw.(string)
	if token == "" {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}

	expiresAt := time.Now().Add(a.tokenTTL)
	if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)

	utils.SuccessMessage(ctx, "Has cerrado sesión correctamente", nil)
}

// Profile handles GET /usuarios/perfil. There is no id in the route; the
// profile shown is always the caller's own.
func (a *AccountController) Profile(ctx *gin.Context) {
	user, ok := currentUser(ctx, a.db)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}
	utils.Success(ctx, gin.H{"user": publicUser(*user)})
}

// UpdateProfile handles POST /usuarios/perfil. Only submitted fields change;
// the username and the password are not editable here.
func (a *AccountController) UpdateProfile(ctx *gin.Context) {
	user, ok := currentUser(ctx, a.db)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}

	if raw, submitted := ctx.GetPostForm("email"); submitted {
		email := strings.TrimSpace(strings.ToLower(raw))
		if email == "" || !strings.Contains(email, "@") {
			utils.Error(ctx, http.StatusBadRequest, 40031, "el email no es válido")
			return
		}
		if email != user.Email {
			var count int64
			if err := a.db.Model(&models.User{}).
				Where("email = ? AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
				utils.Sugar.Errorf("Failed to check email availability: %v", err)
				utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to update profile")
				return
			}
			if count > 0 {
				utils.Error(ctx, http.StatusBadRequest, 40036, "el email ya está registrado")
				return
			}
			user.Email = email
		}
	}

	if raw, submitted := ctx.GetPostForm("telefono"); submitted {
		user.Phone = strings.TrimSpace(raw)
	}

	oldAvatar := ""
	if fh, err := ctx.FormFile("avatar"); err == nil {
		if verr := utils.ValidateImage(fh); verr != nil {
			utils.Error(ctx, http.StatusBadRequest, 40034, verr.Error())
			return
		}
		path, serr := utils.SaveImage(fh, a.mediaDir, "avatars")
		if serr != nil {
			utils.Sugar.Errorf("Failed to store avatar: %v", serr)
			utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to store avatar")
			return
		}
		oldAvatar = user.AvatarPath
		user.AvatarPath = path
	}

	if err := a.db.Save(user).Error; err != nil {
		utils.Sugar.Errorf("Failed to update user %d: %v", user.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to update profile")
		return
	}
	if oldAvatar != "" {
		utils.RemoveImage(oldAvatar, a.mediaDir)
	}

	utils.SuccessMessage(ctx, "Perfil actualizado correctamente", gin.H{"user": publicUser(*user)})
}

// publicUser strips credentials from the serialized user.
func publicUser(u models.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"telefono":     u.Phone,
		"avatar":       u.AvatarPath,
		"is_staff":     u.Staff,
		"is_superuser": u.Superuser,
		"created_at":   u.CreatedAt,
	}
}
