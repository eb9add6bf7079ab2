package models

import (
	"time"

	"gorm.io/gorm"
)

// ShortUrl is the owner-managed short link. short_code is NOT backed by a
// unique index: soft-deleted rows keep their code so the 1-year reuse
// cooldown can be checked in the create path.
type ShortUrl struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID      string     `gorm:"index;not null" json:"userId"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	OriginalURL string     `gorm:"size:2048;not null" json:"originalUrl"`
	ShortCode   string     `gorm:"size:32;index;not null" json:"shortCode"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	MaxVisits   *int       `json:"maxVisits"`
	VisitCount  int        `gorm:"default:0" json:"visitCount"`
	Active      bool       `gorm:"default:true" json:"active"`
}

// ShortUrlVisit is one recorded click. Rows are append-only; nothing ever
// updates them, so there are no update timestamps.
type ShortUrlVisit struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ShortUrlID uint      `gorm:"index;not null" json:"shortUrlId"`
	ShortUrl   *ShortUrl `gorm:"foreignKey:ShortUrlID;constraint:OnDelete:CASCADE" json:"-"`
	IPAddress  string    `gorm:"size:45" json:"ipAddress"` // fits IPv6
	Country    *string   `gorm:"size:2" json:"country"`    // ISO 3166-1 alpha-2
	UserAgent  *string   `gorm:"size:512" json:"userAgent"`
	Referer    *string   `gorm:"size:512" json:"referer"`
	VisitedAt  time.Time `gorm:"index" json:"visitedAt"`
}
