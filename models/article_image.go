package models

import "time"

// ArticleImage is one uploaded image attached to an article. Path is the
// public URL under /media/imagenes/. Rows are removed with their article.
type ArticleImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"index;not null" json:"articulo_id"`
	Path      string    `gorm:"size:512;not null" json:"imagen"`
	CreatedAt time.Time `json:"created_at"`
}
