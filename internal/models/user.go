package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name     string `json:"name"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	Username string `gorm:"uniqueIndex" json:"username"`

	Password string `json:"-"`
}
