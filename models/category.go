package models

// Category is a named grouping for articles. Name must not be empty.
type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;not null" json:"nombre"`
	Description string `gorm:"type:text" json:"descripcion"`
}
