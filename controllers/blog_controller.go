package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"instituto/config"
	"instituto/models"
	"instituto/utils"
)

const (
	listCachePrefix  = "cache:articulos:list:"
	categoryCacheKey = "cache:categorias"
	listCacheTTL     = 10 * time.Minute
)

// ordenar_por values accepted on the article listing. Anything else falls
// back to insertion order.
var sortOrders = map[string]string{
	"asc":        "visits ASC",
	"desc":       "visits DESC",
	"fecha_asc":  "published_at ASC",
	"fecha_desc": "published_at DESC",
}

// BlogController serves the article listing, the detail page with its
// comments, article creation and edition, and the landing aggregate.
type BlogController struct {
	db       *gorm.DB
	mediaDir string
	pageSize int
}

func NewBlogController(db *gorm.DB) *BlogController {
	cfg := config.Get()
	return &BlogController{
		db:       db,
		mediaDir: cfg.MediaDir,
		pageSize: cfg.PageSize,
	}
}

// List handles GET /blog. Supports filtering by categoria, sorting by
// ordenar_por and fixed-size pagination via page.
func (b *BlogController) List(ctx *gin.Context) {
	categoria := strings.TrimSpace(ctx.Query("categoria"))
	ordenar := strings.TrimSpace(ctx.Query("ordenar_por"))
	page := parsePage(ctx.Query("page"))

	cacheKey := fmt.Sprintf("%scat=%s:ord=%s:page=%d", listCachePrefix, categoria, ordenar, page)
	if cached, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}

	query := b.db.Model(&models.Article{})
	if categoria != "" {
		query = query.Where("category_id = ?", categoria)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Sugar.Errorf("Failed to count articles: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to fetch articles")
		return
	}

	if order, ok := sortOrders[ordenar]; ok {
		query = query.Order(order)
	}

	var articles []models.Article
	if err := query.Preload("Category").Preload("Author").Preload("Images").
		Offset((page - 1) * b.pageSize).Limit(b.pageSize).
		Find(&articles).Error; err != nil {
		utils.Sugar.Errorf("Failed to fetch articles: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to fetch articles")
		return
	}

	categories, err := b.loadCategories()
	if err != nil {
		utils.Sugar.Errorf("Failed to fetch categories: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to fetch categories")
		return
	}

	totalPages := int((total + int64(b.pageSize) - 1) / int64(b.pageSize))
	payload := gin.H{
		"articulos":  articles,
		"categorias": categories,
		"pagination": gin.H{
			"page":        page,
			"page_size":   b.pageSize,
			"total":       total,
			"total_pages": totalPages,
		},
	}

	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, listCacheTTL)
	utils.Success(ctx, payload)
}

// loadCategories returns every category, caching the full set. The catalog
// changes rarely so a flat TTL is enough.
func (b *BlogController) loadCategories() ([]models.Category, error) {
	if raw, ok := utils.CacheGetBytes(categoryCacheKey); ok {
		var cached []models.Category
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
	}

	var categories []models.Category
	if err := b.db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	utils.CacheSetJSON(categoryCacheKey, categories, time.Hour)
	return categories, nil
}

// articleID parses the :id path parameter. A non-numeric id gets the same
// not-found answer as a missing article; passing the raw string to the store
// would let MySQL coerce "12abc" into 12.
func articleID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40410, "artículo no encontrado")
		return 0, false
	}
	return uint(id), true
}

// Detail handles GET /blog/:id. Every render counts as a visit, repeats
// included, so the counter is bumped with a single atomic UPDATE before the
// article is read back.
func (b *BlogController) Detail(ctx *gin.Context) {
	id, ok := articleID(ctx)
	if !ok {
		return
	}

	result := b.db.Model(&models.Article{}).Where("id = ?", id).
		UpdateColumn("visits", gorm.Expr("visits + ?", 1))
	if result.Error != nil {
		utils.Sugar.Errorf("Failed to record visit for article %d: %v", id, result.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to fetch article")
		return
	}
	if result.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40410, "artículo no encontrado")
		return
	}

	b.renderDetail(ctx, id)
}

// Comment handles POST /blog/:id. Authenticated callers with a non-empty
// body get their comment stored; anonymous or empty submissions are ignored
// without an error. Either way the refreshed detail is returned, and the
// render counts as a visit.
func (b *BlogController) Comment(ctx *gin.Context) {
	id, ok := articleID(ctx)
	if !ok {
		return
	}

	var req struct {
		Content string `form:"contenido" json:"contenido"`
	}
	_ = ctx.ShouldBind(&req)
	content := strings.TrimSpace(utils.Sanitize(req.Content))

	result := b.db.Model(&models.Article{}).Where("id = ?", id).
		UpdateColumn("visits", gorm.Expr("visits + ?", 1))
	if result.Error != nil {
		utils.Sugar.Errorf("Failed to record visit for article %d: %v", id, result.Error)
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to fetch article")
		return
	}
	if result.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40410, "artículo no encontrado")
		return
	}

	if userID, authed := currentUserID(ctx); authed && content != "" {
		comment := models.Comment{
			ArticleID: id,
			AuthorID:  userID,
			Content:   content,
		}
		if err := b.db.Create(&comment).Error; err != nil {
			utils.Sugar.Errorf("Failed to create comment on article %d: %v", id, err)
			utils.Error(ctx, http.StatusInternalServerError, 50013, "failed to create comment")
			return
		}
	}

	b.renderDetail(ctx, id)
}

func (b *BlogController) renderDetail(ctx *gin.Context, id uint) {
	var article models.Article
	if err := b.db.Preload("Category").Preload("Author").Preload("Images").
		First(&article, id).Error; err != nil {
		utils.Sugar.Errorf("Failed to fetch article %d: %v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to fetch article")
		return
	}

	var comments []models.Comment
	if err := b.db.Preload("Author").Where("article_id = ?", article.ID).
		Order("created_at ASC").Find(&comments).Error; err != nil {
		utils.Sugar.Errorf("Failed to fetch comments for article %d: %v", id, err)
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to fetch article")
		return
	}

	utils.Success(ctx, gin.H{
		"articulo":    article,
		"comentarios": comments,
	})
}

// NewForm handles GET /blog/crear, returning the category catalog the
// creation form needs.
func (b *BlogController) NewForm(ctx *gin.Context) {
	categories, err := b.loadCategories()
	if err != nil {
		utils.Sugar.Errorf("Failed to fetch categories: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to fetch categories")
		return
	}
	utils.Success(ctx, gin.H{"categorias": categories})
}

// Create handles POST /blog/crear. The whole submission, attachments
// included, is validated before anything touches the database so a rejected
// request leaves no partial article behind.
func (b *BlogController) Create(ctx *gin.Context) {
	user, ok := currentUser(ctx, b.db)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return
	}

	input, files, ok := b.articleForm(ctx)
	if !ok {
		return
	}

	article := models.Article{
		Title:      input.Title,
		Content:    input.Content,
		AuthorID:   user.ID,
		CategoryID: input.CategoryID,
		Featured:   input.Featured,
	}
	if err := b.db.Create(&article).Error; err != nil {
		utils.Sugar.Errorf("Failed to create article: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50014, "failed to create article")
		return
	}

	if !b.attachImages(ctx, &article, files) {
		return
	}

	utils.InvalidateByPrefix(listCachePrefix)
	utils.Sugar.Infof("User %d created article %d", user.ID, article.ID)
	utils.SuccessMessage(ctx, "Artículo creado correctamente", gin.H{"articulo": article})
}

// EditForm handles GET /blog/:id/editar.
func (b *BlogController) EditForm(ctx *gin.Context) {
	article, ok := b.authorizedArticle(ctx)
	if !ok {
		return
	}

	categories, err := b.loadCategories()
	if err != nil {
		utils.Sugar.Errorf("Failed to fetch categories: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to fetch categories")
		return
	}

	utils.Success(ctx, gin.H{
		"articulo":   article,
		"categorias": categories,
	})
}

// Update handles POST /blog/:id/editar. Only scalar fields are rewritten so
// the visit counter and publication date survive the edit. Uploaded images
// are appended to the existing ones.
func (b *BlogController) Update(ctx *gin.Context) {
	article, ok := b.authorizedArticle(ctx)
	if !ok {
		return
	}

	input, files, ok := b.articleForm(ctx)
	if !ok {
		return
	}

	updates := map[string]interface{}{
		"title":       input.Title,
		"content":     input.Content,
		"category_id": input.CategoryID,
		"featured":    input.Featured,
	}
	if err := b.db.Model(article).Updates(updates).Error; err != nil {
		utils.Sugar.Errorf("Failed to update article %d: %v", article.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50015, "failed to update article")
		return
	}

	if !b.attachImages(ctx, article, files) {
		return
	}

	var updated models.Article
	if err := b.db.Preload("Category").Preload("Author").Preload("Images").
		First(&updated, article.ID).Error; err != nil {
		utils.Sugar.Errorf("Failed to reload article %d: %v", article.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to fetch article")
		return
	}

	utils.InvalidateByPrefix(listCachePrefix)
	utils.SuccessMessage(ctx, "Artículo actualizado correctamente", gin.H{"articulo": updated})
}

// DeleteConfirm handles GET /blog/:id/eliminar, returning the article the
// confirmation dialog is about.
func (b *BlogController) DeleteConfirm(ctx *gin.Context) {
	article, ok := b.authorizedArticle(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"articulo": article})
}

// Delete handles POST /blog/:id/eliminar. Comments and image rows go in the
// same transaction as the article; the files on disk are removed afterwards,
// best effort.
func (b *BlogController) Delete(ctx *gin.Context) {
	article, ok := b.authorizedArticle(ctx)
	if !ok {
		return
	}

	var images []models.ArticleImage
	if err := b.db.Where("article_id = ?", article.ID).Find(&images).Error; err != nil {
		utils.Sugar.Errorf("Failed to fetch images for article %d: %v", article.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to delete article")
		return
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", article.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("article_id = ?", article.ID).Delete(&models.ArticleImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Article{}, article.ID).Error
	})
	if err != nil {
		utils.Sugar.Errorf("Failed to delete article %d: %v", article.ID, err)
		utils.Error(ctx, http.StatusInternalServerError, 50016, "failed to delete article")
		return
	}

	for _, img := range images {
		utils.RemoveImage(img.Path, b.mediaDir)
	}

	utils.InvalidateByPrefix(listCachePrefix)
	utils.Sugar.Infof("Article %d deleted", article.ID)
	utils.SuccessMessage(ctx, "Artículo eliminado correctamente", nil)
}

// Landing handles GET /. The headline number is the site-wide visit total;
// the remaining counts feed the landing page widgets. Always computed live.
func (b *BlogController) Landing(ctx *gin.Context) {
	var totalVisits int64
	if err := b.db.Model(&models.Article{}).
		Select("COALESCE(SUM(visits), 0)").Scan(&totalVisits).Error; err != nil {
		utils.Sugar.Errorf("Failed to sum visits: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50017, "failed to fetch stats")
		return
	}

	var articleCount, commentCount, userCount int64
	if err := b.db.Model(&models.Article{}).Count(&articleCount).Error; err != nil {
		utils.Sugar.Errorf("Failed to count articles: %v", err)
		articleCount = 0
	}
	if err := b.db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		utils.Sugar.Errorf("Failed to count comments: %v", err)
		commentCount = 0
	}
	if err := b.db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		utils.Sugar.Errorf("Failed to count users: %v", err)
		userCount = 0
	}

	utils.Success(ctx, gin.H{
		"total_visitas": totalVisits,
		"articulos":     articleCount,
		"comentarios":   commentCount,
		"usuarios":      userCount,
	})
}

type articleInput struct {
	Title      string
	Content    string
	CategoryID *uint
	Featured   bool
}

// articleForm validates the whole multipart submission, attachments
// included, before the caller persists anything. On failure the response is
// already written.
func (b *BlogController) articleForm(ctx *gin.Context) (articleInput, []*multipart.FileHeader, bool) {
	var input articleInput

	input.Title = strings.TrimSpace(utils.Sanitize(ctx.PostForm("titulo")))
	if input.Title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40020, "el título no puede estar vacío")
		return input, nil, false
	}

	input.Content = utils.Sanitize(ctx.PostForm("contenido"))
	if strings.TrimSpace(input.Content) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "el contenido no puede estar vacío")
		return input, nil, false
	}

	if raw := strings.TrimSpace(ctx.PostForm("categoria")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40022, "categoría inválida")
			return input, nil, false
		}
		var category models.Category
		if err := b.db.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.Error(ctx, http.StatusBadRequest, 40022, "categoría inválida")
			} else {
				utils.Sugar.Errorf("Failed to fetch category %d: %v", id, err)
				utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to fetch categories")
			}
			return input, nil, false
		}
		input.CategoryID = &category.ID
	}

	input.Featured = parseBoolField(ctx.PostForm("destacado"))

	var files []*multipart.FileHeader
	if form, err := ctx.MultipartForm(); err == nil && form != nil {
		files = form.File["imagenes"]
	}
	for _, fh := range files {
		if err := utils.ValidateImage(fh); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40023, err.Error())
			return input, nil, false
		}
	}

	return input, files, true
}

// attachImages stores already-validated uploads and links them to the
// article. On failure the response is written and false returned.
func (b *BlogController) attachImages(ctx *gin.Context, article *models.Article, files []*multipart.FileHeader) bool {
	for _, fh := range files {
		path, err := utils.SaveImage(fh, b.mediaDir, "imagenes")
		if err != nil {
			utils.Sugar.Errorf("Failed to store image for article %d: %v", article.ID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50018, "failed to store image")
			return false
		}
		image := models.ArticleImage{ArticleID: article.ID, Path: path}
		if err := b.db.Create(&image).Error; err != nil {
			utils.RemoveImage(path, b.mediaDir)
			utils.Sugar.Errorf("Failed to link image for article %d: %v", article.ID, err)
			utils.Error(ctx, http.StatusInternalServerError, 50018, "failed to store image")
			return false
		}
		article.Images = append(article.Images, image)
	}
	return true
}

// authorizedArticle loads the target article and checks the caller may
// modify it. Lookup failures come first so probing an id that does not
// exist yields 404, not 403.
func (b *BlogController) authorizedArticle(ctx *gin.Context) (*models.Article, bool) {
	id, ok := articleID(ctx)
	if !ok {
		return nil, false
	}

	var article models.Article
	if err := b.db.First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40410, "artículo no encontrado")
		} else {
			utils.Sugar.Errorf("Failed to fetch article %d: %v", id, err)
			utils.Error(ctx, http.StatusInternalServerError, 50012, "failed to fetch article")
		}
		return nil, false
	}

	user, ok := currentUser(ctx, b.db)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "authentication required")
		return nil, false
	}
	if !article.CanModify(user) {
		utils.Error(ctx, http.StatusForbidden, 40310, "no tienes permiso para modificar este artículo")
		return nil, false
	}

	return &article, true
}
