package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/CodeFormerCodeFormer/shorty/internal/database"
	"github.com/CodeFormerCodeFormer/shorty/internal/models"
)

// VisitMeta is the request context captured for one click.
type VisitMeta struct {
	IPAddress string
	Country   *string
	UserAgent *string
	Referer   *string
}

// RecordVisit increments the link's visit counter and appends the visit row
// in a single transaction. Either both happen or neither does; a failure
// here must fail the whole redirect so no click goes uncounted.
func RecordVisit(shortURL *models.ShortUrl, meta VisitMeta) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.ShortUrl{}).
			Where("id = ?", shortURL.ID).
			UpdateColumn("visit_count", gorm.Expr("visit_count + ?", 1)).Error; err != nil {
			return err
		}

		visit := models.ShortUrlVisit{
			ShortUrlID: shortURL.ID,
			IPAddress:  meta.IPAddress,
			Country:    meta.Country,
			UserAgent:  meta.UserAgent,
			Referer:    meta.Referer,
			VisitedAt:  time.Now(),
		}
		return tx.Create(&visit).Error
	})
}

// DailyClicks is one point of the 7-day chart.
type DailyClicks struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// ClicksByDay builds the daily click series for the last `days` calendar
// days including today, zero-filling days without visits.
func ClicksByDay(shortURLID uint, days int) ([]DailyClicks, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -(days - 1))

	var visits []models.ShortUrlVisit
	if err := database.DB.
		Where("short_url_id = ? AND visited_at >= ?", shortURLID, start).
		Find(&visits).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, v := range visits {
		counts[v.VisitedAt.Format("2006-01-02")]++
	}

	chart := make([]DailyClicks, 0, days)
	for d := 0; d < days; d++ {
		key := start.AddDate(0, 0, d).Format("2006-01-02")
		chart = append(chart, DailyClicks{Date: key, Count: counts[key]})
	}
	return chart, nil
}

// CountryClicks groups a link's visits by country, skipping visits where
// the geo lookup came up empty.
func CountryClicks(shortURLID uint) (map[string]int, error) {
	var visits []models.ShortUrlVisit
	if err := database.DB.
		Where("short_url_id = ? AND country IS NOT NULL", shortURLID).
		Find(&visits).Error; err != nil {
		return nil, err
	}

	byCountry := make(map[string]int)
	for _, v := range visits {
		if v.Country != nil {
			byCountry[*v.Country]++
		}
	}
	return byCountry, nil
}
