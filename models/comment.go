package models

import "time"

// Comment is a reply attached to an article, authored by a user.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"index;not null" json:"articulo_id"`
	AuthorID  uint      `gorm:"index;not null" json:"autor_id"`
	Content   string    `gorm:"type:text;not null" json:"contenido"`
	CreatedAt time.Time `json:"created_at"`
	Author    User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"autor"`
}
