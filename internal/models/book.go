package models

import "time"

// Book represents a title held by the library.
type Book struct {
	ID        uint      `json:"id_livro" gorm:"primaryKey"`
	Title     string    `json:"titulo" gorm:"not null;index" validate:"required"`
	Author    string    `json:"autor" gorm:"not null;index" validate:"required"`
	ISBN      string    `json:"ISBN" gorm:"type:varchar(13);not null;index" validate:"required,max=13"`
	Synopsis  string    `json:"resumo" validate:"required"`
	Available bool      `json:"status" gorm:"not null"` // availability flag, true on creation
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
