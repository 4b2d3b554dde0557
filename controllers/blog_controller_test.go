package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"instituto/models"
)

func TestListPagination(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "paginador")

	for i := 0; i < 6; i++ {
		createTestArticle(t, db, author.ID, func(a *models.Article) {
			a.Title = fmt.Sprintf("Artículo %d", i)
		})
	}

	rec := doRequest(router, http.MethodGet, "/blog", "", nil, "")
	requireStatus(t, rec, http.StatusOK)
	resp := decodeResponse(t, rec)

	articles := resp.Data["articulos"].([]interface{})
	assert.Len(t, articles, 4)

	pagination := resp.Data["pagination"].(map[string]interface{})
	assert.EqualValues(t, 1, pagination["page"])
	assert.EqualValues(t, 4, pagination["page_size"])
	assert.EqualValues(t, 6, pagination["total"])
	assert.EqualValues(t, 2, pagination["total_pages"])

	rec = doRequest(router, http.MethodGet, "/blog?page=2", "", nil, "")
	requireStatus(t, rec, http.StatusOK)
	resp = decodeResponse(t, rec)
	assert.Len(t, resp.Data["articulos"].([]interface{}), 2)
}

func TestListFilterByCategory(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "filtrador")

	ciencia := models.Category{Name: "Ciencia"}
	deportes := models.Category{Name: "Deportes"}
	require.NoError(t, db.Create(&ciencia).Error)
	require.NoError(t, db.Create(&deportes).Error)

	createTestArticle(t, db, author.ID, func(a *models.Article) {
		a.Title = "Feria de ciencia"
		a.CategoryID = &ciencia.ID
	})
	createTestArticle(t, db, author.ID, func(a *models.Article) {
		a.Title = "Torneo de fútbol"
		a.CategoryID = &deportes.ID
	})
	createTestArticle(t, db, author.ID, func(a *models.Article) {
		a.Title = "Sin categoría"
	})

	rec := doRequest(router, http.MethodGet, fmt.Sprintf("/blog?categoria=%d", ciencia.ID), "", nil, "")
	requireStatus(t, rec, http.StatusOK)
	resp := decodeResponse(t, rec)

	articles := resp.Data["articulos"].([]interface{})
	require.Len(t, articles, 1)
	assert.Equal(t, "Feria de ciencia", articles[0].(map[string]interface{})["titulo"])

	// The category catalog is always included for the filter UI.
	assert.Len(t, resp.Data["categorias"].([]interface{}), 2)

	// Omitting the filter returns everything.
	rec = doRequest(router, http.MethodGet, "/blog", "", nil, "")
	resp = decodeResponse(t, rec)
	assert.Len(t, resp.Data["articulos"].([]interface{}), 3)
}

func TestListSortByVisits(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "ordenador")

	for _, visits := range []uint{5, 1, 3} {
		v := visits
		createTestArticle(t, db, author.ID, func(a *models.Article) {
			a.Title = fmt.Sprintf("Visitas %d", v)
			a.Visits = v
		})
	}

	rec := doRequest(router, http.MethodGet, "/blog?ordenar_por=desc", "", nil, "")
	requireStatus(t, rec, http.StatusOK)
	resp := decodeResponse(t, rec)

	articles := resp.Data["articulos"].([]interface{})
	require.Len(t, articles, 3)
	var got []float64
	for _, raw := range articles {
		got = append(got, raw.(map[string]interface{})["visitas"].(float64))
	}
	assert.Equal(t, []float64{5, 3, 1}, got)

	rec = doRequest(router, http.MethodGet, "/blog?ordenar_por=asc", "", nil, "")
	resp = decodeResponse(t, rec)
	articles = resp.Data["articulos"].([]interface{})
	assert.Equal(t, float64(1), articles[0].(map[string]interface{})["visitas"])
}

func TestListSortByDate(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "cronista")

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"Primero", "Segundo", "Tercero"} {
		when := base.AddDate(0, 0, i)
		createTestArticle(t, db, author.ID, func(a *models.Article) {
			a.Title = title
			a.PublishedAt = when
		})
	}

	rec := doRequest(router, http.MethodGet, "/blog?ordenar_por=fecha_desc", "", nil, "")
	requireStatus(t, rec, http.StatusOK)
	resp := decodeResponse(t, rec)
	articles := resp.Data["articulos"].([]interface{})
	require.Len(t, articles, 3)
	assert.Equal(t, "Tercero", articles[0].(map[string]interface{})["titulo"])

	rec = doRequest(router, http.MethodGet, "/blog?ordenar_por=fecha_asc", "", nil, "")
	resp = decodeResponse(t, rec)
	articles = resp.Data["articulos"].([]interface{})
	assert.Equal(t, "Primero", articles[0].(map[string]interface{})["titulo"])
}

func TestDetailCountsEveryVisit(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "visitado")
	article := createTestArticle(t, db, author.ID)

	target := fmt.Sprintf("/blog/%d", article.ID)
	for want := 1; want <= 3; want++ {
		rec := doRequest(router, http.MethodGet, target, "", nil, "")
		requireStatus(t, rec, http.StatusOK)
		resp := decodeResponse(t, rec)
		detail := resp.Data["articulo"].(map[string]interface{})
		assert.Equal(t, float64(want), detail["visitas"])
	}

	var stored models.Article
	require.NoError(t, db.First(&stored, article.ID).Error)
	assert.EqualValues(t, 3, stored.Visits)
}

func TestDetailNotFound(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	rec := doRequest(router, http.MethodGet, "/blog/9999", "", nil, "")
	requireStatus(t, rec, http.StatusNotFound)
}

func TestMalformedArticleIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "numerico")
	article := createTestArticle(t, db, author.ID)
	token := tokenFor(t, author)

	// "1abc" must behave like a missing article on every route, never be
	// coerced into article 1.
	rec := doRequest(router, http.MethodGet, "/blog/1abc", "", nil, "")
	requireStatus(t, rec, http.StatusNotFound)

	rec = doForm(router, http.MethodPost, "/blog/1abc", token, map[string]string{"contenido": "hola"})
	requireStatus(t, rec, http.StatusNotFound)

	body, contentType := multipartBody(t, map[string]string{
		"titulo":    "Nada",
		"contenido": "Nada.",
	})
	rec = doRequest(router, http.MethodPost, "/blog/1abc/editar", token, body, contentType)
	requireStatus(t, rec, http.StatusNotFound)

	rec = doRequest(router, http.MethodPost, "/blog/1abc/eliminar", token, nil, "")
	requireStatus(t, rec, http.StatusNotFound)

	// No orphan comment row and no stray visit landed on the real article.
	var comments int64
	db.Model(&models.Comment{}).Count(&comments)
	assert.EqualValues(t, 0, comments)

	var stored models.Article
	require.NoError(t, db.First(&stored, article.ID).Error)
	assert.EqualValues(t, 0, stored.Visits)
	assert.Equal(t, article.Title, stored.Title)
}

func TestCommentRequiresAuthAndContent(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "comentado")
	reader := createTestUser(t, db, "lector")
	article := createTestArticle(t, db, author.ID)
	target := fmt.Sprintf("/blog/%d", article.ID)

	// Anonymous submission is ignored, not rejected.
	rec := doForm(router, http.MethodPost, target, "", map[string]string{"contenido": "hola"})
	requireStatus(t, rec, http.StatusOK)

	// So is an authenticated but empty one.
	token := tokenFor(t, reader)
	rec = doForm(router, http.MethodPost, target, token, map[string]string{"contenido": "   "})
	requireStatus(t, rec, http.StatusOK)

	var count int64
	db.Model(&models.Comment{}).Count(&count)
	assert.EqualValues(t, 0, count)

	// A real comment lands and shows up in the refreshed detail.
	rec = doForm(router, http.MethodPost, target, token, map[string]string{"contenido": "Muy buen artículo"})
	requireStatus(t, rec, http.StatusOK)
	resp := decodeResponse(t, rec)
	comments := resp.Data["comentarios"].([]interface{})
	require.Len(t, comments, 1)
	assert.Equal(t, "Muy buen artículo", comments[0].(map[string]interface{})["contenido"])

	var stored models.Comment
	require.NoError(t, db.First(&stored).Error)
	assert.Equal(t, reader.ID, stored.AuthorID)
}

func TestCreateRequiresAuth(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	body, contentType := multipartBody(t, map[string]string{
		"titulo":    "Anónimo",
		"contenido": "No debería pasar",
	})
	rec := doRequest(router, http.MethodPost, "/blog/crear", "", body, contentType)
	requireStatus(t, rec, http.StatusUnauthorized)

	var count int64
	db.Model(&models.Article{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestCreateArticleWithImages(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "redactor")
	token := tokenFor(t, author)

	category := models.Category{Name: "Noticias"}
	require.NoError(t, db.Create(&category).Error)

	body, contentType := multipartBody(t, map[string]string{
		"titulo":    "Semana cultural",
		"contenido": "Programa completo de actividades.",
		"categoria": fmt.Sprintf("%d", category.ID),
		"destacado": "true",
	},
		formFile{"imagenes", "cartel.png", "image/png", bytes.Repeat([]byte{0x89}, 1024)},
		formFile{"imagenes", "foto.jpg", "image/jpeg", bytes.Repeat([]byte{0xff}, 2048)},
	)
	rec := doRequest(router, http.MethodPost, "/blog/crear", token, body, contentType)
	requireStatus(t, rec, http.StatusOK)

	var article models.Article
	require.NoError(t, db.Preload("Images").First(&article).Error)
	assert.Equal(t, "Semana cultural", article.Title)
	assert.Equal(t, author.ID, article.AuthorID)
	require.NotNil(t, article.CategoryID)
	assert.Equal(t, category.ID, *article.CategoryID)
	assert.True(t, article.Featured)
	assert.False(t, article.PublishedAt.IsZero())
	assert.Len(t, article.Images, 2)
}

func TestCreateRejectsInvalidUploads(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "estricto")
	token := tokenFor(t, author)

	fields := map[string]string{
		"titulo":    "Adjuntos inválidos",
		"contenido": "No debería persistir nada.",
	}

	cases := []struct {
		name string
		file formFile
	}{
		{"disallowed type", formFile{"imagenes", "notas.txt", "text/plain", []byte("hola")}},
		{"oversized image", formFile{"imagenes", "enorme.png", "image/png", bytes.Repeat([]byte{0x00}, 6<<20)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, fields,
				formFile{"imagenes", "valida.png", "image/png", []byte("png")},
				tc.file,
			)
			rec := doRequest(router, http.MethodPost, "/blog/crear", token, body, contentType)
			requireStatus(t, rec, http.StatusBadRequest)

			// A rejected submission leaves no partial article behind.
			var articles, images int64
			db.Model(&models.Article{}).Count(&articles)
			db.Model(&models.ArticleImage{}).Count(&images)
			assert.EqualValues(t, 0, articles)
			assert.EqualValues(t, 0, images)
		})
	}
}

func TestUpdateRejectsInvalidUploads(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "cauteloso")
	token := tokenFor(t, author)
	article := createTestArticle(t, db, author.ID)
	target := fmt.Sprintf("/blog/%d/editar", article.ID)

	fields := map[string]string{
		"titulo":    "No debe aplicarse",
		"contenido": "Tampoco esto.",
	}

	cases := []struct {
		name string
		file formFile
	}{
		{"disallowed type", formFile{"imagenes", "notas.txt", "text/plain", []byte("hola")}},
		{"oversized image", formFile{"imagenes", "enorme.png", "image/png", bytes.Repeat([]byte{0x00}, 6<<20)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, fields, tc.file)
			rec := doRequest(router, http.MethodPost, target, token, body, contentType)
			requireStatus(t, rec, http.StatusBadRequest)

			// The rejection must leave both the fields and the image set alone.
			var images int64
			db.Model(&models.ArticleImage{}).Count(&images)
			assert.EqualValues(t, 0, images)

			var stored models.Article
			require.NoError(t, db.First(&stored, article.ID).Error)
			assert.Equal(t, article.Title, stored.Title)
		})
	}
}

func TestCreateAcceptsImageAtLimit(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "limite")
	token := tokenFor(t, author)

	body, contentType := multipartBody(t, map[string]string{
		"titulo":    "Imagen al límite",
		"contenido": "Cabe justo.",
	}, formFile{"imagenes", "grande.png", "image/png", bytes.Repeat([]byte{0x00}, 5<<20)})
	rec := doRequest(router, http.MethodPost, "/blog/crear", token, body, contentType)
	requireStatus(t, rec, http.StatusOK)

	var images int64
	db.Model(&models.ArticleImage{}).Count(&images)
	assert.EqualValues(t, 1, images)
}

func TestCreateValidatesFields(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "incompleto")
	token := tokenFor(t, author)

	cases := []struct {
		name   string
		fields map[string]string
	}{
		{"empty title", map[string]string{"titulo": "  ", "contenido": "algo"}},
		{"empty content", map[string]string{"titulo": "Título", "contenido": ""}},
		{"unknown category", map[string]string{"titulo": "Título", "contenido": "algo", "categoria": "42"}},
		{"malformed category", map[string]string{"titulo": "Título", "contenido": "algo", "categoria": "abc"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.fields)
			rec := doRequest(router, http.MethodPost, "/blog/crear", token, body, contentType)
			requireStatus(t, rec, http.StatusBadRequest)
		})
	}

	var count int64
	db.Model(&models.Article{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestUpdateAuthorization(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "autor")
	stranger := createTestUser(t, db, "intruso")
	staff := createTestUser(t, db, "moderador", func(u *models.User) { u.Staff = true })
	article := createTestArticle(t, db, author.ID)
	target := fmt.Sprintf("/blog/%d/editar", article.ID)

	fields := map[string]string{
		"titulo":    "Título corregido",
		"contenido": "Contenido corregido.",
	}

	// An unrelated user may not touch it.
	body, contentType := multipartBody(t, fields)
	rec := doRequest(router, http.MethodPost, target, tokenFor(t, stranger), body, contentType)
	requireStatus(t, rec, http.StatusForbidden)

	var unchanged models.Article
	require.NoError(t, db.First(&unchanged, article.ID).Error)
	assert.Equal(t, article.Title, unchanged.Title)

	// Staff may, without being the author.
	body, contentType = multipartBody(t, fields)
	rec = doRequest(router, http.MethodPost, target, tokenFor(t, staff), body, contentType)
	requireStatus(t, rec, http.StatusOK)

	var updated models.Article
	require.NoError(t, db.First(&updated, article.ID).Error)
	assert.Equal(t, "Título corregido", updated.Title)
}

func TestUpdatePreservesVisitsAndAppendsImages(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "editor")
	token := tokenFor(t, author)
	article := createTestArticle(t, db, author.ID, func(a *models.Article) {
		a.Visits = 7
	})
	require.NoError(t, db.Create(&models.ArticleImage{
		ArticleID: article.ID,
		Path:      "/media/imagenes/previa.png",
	}).Error)

	body, contentType := multipartBody(t, map[string]string{
		"titulo":    "Editado",
		"contenido": "Con imagen nueva.",
	}, formFile{"imagenes", "nueva.png", "image/png", []byte("png")})
	rec := doRequest(router, http.MethodPost, fmt.Sprintf("/blog/%d/editar", article.ID), token, body, contentType)
	requireStatus(t, rec, http.StatusOK)

	var updated models.Article
	require.NoError(t, db.Preload("Images").First(&updated, article.ID).Error)
	assert.Equal(t, "Editado", updated.Title)
	assert.EqualValues(t, 7, updated.Visits, "editing must not reset the visit counter")
	assert.Len(t, updated.Images, 2, "new uploads append, they do not replace")
}

func TestDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "borrador")
	commenter := createTestUser(t, db, "opinador")
	token := tokenFor(t, author)
	article := createTestArticle(t, db, author.ID)

	require.NoError(t, db.Create(&models.ArticleImage{
		ArticleID: article.ID,
		Path:      "/media/imagenes/borrar.png",
	}).Error)
	require.NoError(t, db.Create(&models.Comment{
		ArticleID: article.ID,
		AuthorID:  commenter.ID,
		Content:   "Se va con el artículo",
	}).Error)

	rec := doRequest(router, http.MethodPost, fmt.Sprintf("/blog/%d/eliminar", article.ID), token, nil, "")
	requireStatus(t, rec, http.StatusOK)

	var articles, images, comments int64
	db.Model(&models.Article{}).Count(&articles)
	db.Model(&models.ArticleImage{}).Count(&images)
	db.Model(&models.Comment{}).Count(&comments)
	assert.EqualValues(t, 0, articles)
	assert.EqualValues(t, 0, images)
	assert.EqualValues(t, 0, comments)
}

func TestDeleteForbiddenForStranger(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)
	author := createTestUser(t, db, "dueno")
	stranger := createTestUser(t, db, "ajeno")
	article := createTestArticle(t, db, author.ID)

	rec := doRequest(router, http.MethodPost,
		fmt.Sprintf("/blog/%d/eliminar", article.ID), tokenFor(t, stranger), nil, "")
	requireStatus(t, rec, http.StatusForbidden)

	var count int64
	db.Model(&models.Article{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestLandingAggregatesVisits(t *testing.T) {
	db := setupTestDB(t)
	router := newTestRouter(db)

	// Empty site reports zero, not null.
	rec := doRequest(router, http.MethodGet, "/", "", nil, "")
	requireStatus(t, rec, http.StatusOK)
	resp := decodeResponse(t, rec)
	assert.Equal(t, float64(0), resp.Data["total_visitas"])

	author := createTestUser(t, db, "agregado")
	createTestArticle(t, db, author.ID, func(a *models.Article) { a.Visits = 2 })
	createTestArticle(t, db, author.ID, func(a *models.Article) { a.Visits = 3 })

	rec = doRequest(router, http.MethodGet, "/", "", nil, "")
	resp = decodeResponse(t, rec)
	assert.Equal(t, float64(5), resp.Data["total_visitas"])
	assert.Equal(t, float64(2), resp.Data["articulos"])
	assert.Equal(t, float64(1), resp.Data["usuarios"])
}
