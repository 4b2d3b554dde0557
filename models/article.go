package models

import (
	"time"

	"gorm.io/gorm"
)

// Article is a blog post. The author is required and owns the article's
// images and comments; the category is optional and nulled when deleted.
type Article struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:200;not null" json:"titulo"`
	Content     string         `gorm:"type:text;not null" json:"contenido"`
	AuthorID    uint           `gorm:"index;not null" json:"autor_id"`
	CategoryID  *uint          `gorm:"index" json:"categoria_id"`
	PublishedAt time.Time      `json:"fecha_publicacion"`
	Featured    bool           `gorm:"default:false" json:"destacado"`
	Visits      uint           `gorm:"default:0" json:"visitas"`
	Author      User           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"autor"`
	Category    *Category      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"categoria"`
	Images      []ArticleImage `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"imagenes"`
	Comments    []Comment      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// BeforeCreate stamps the publication time once, at creation. It is never
// rewritten by later saves.
func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.PublishedAt.IsZero() {
		a.PublishedAt = time.Now()
	}
	return nil
}

// CanModify reports whether the caller may edit or delete this article:
// the author, staff, or a superuser.
func (a *Article) CanModify(u *User) bool {
	if u == nil {
		return false
	}
	return u.ID == a.AuthorID || u.Staff || u.Superuser
}
