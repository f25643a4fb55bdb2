package models

import "time"

type Repository struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	URL         string    `gorm:"not null" json:"url"`
	Branch      string    `json:"branch"`
	Description string    `json:"description"`
	SetupScript string    `json:"setupScript"`
	IsValid     bool      `json:"isValid"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
