package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/CodeFormerCodeFormer/shorty/internal/database"
	"github.com/CodeFormerCodeFormer/shorty/internal/models"
	"github.com/CodeFormerCodeFormer/shorty/internal/services"
	apperrors "github.com/CodeFormerCodeFormer/shorty/pkg/errors"
	"github.com/CodeFormerCodeFormer/shorty/pkg/logger"
	"github.com/CodeFormerCodeFormer/shorty/pkg/utils"
)

const (
	maxOriginalURLLen = 2048
	maxTitleLen       = 255
	randomCodeLen     = 8

	// A deleted code stays reserved this long before it can be claimed again
	codeReuseCooldown = 365 * 24 * time.Hour
)

// Sort columns the list endpoint accepts; anything else falls back to id
var allowedSorts = map[string]bool{
	"id":           true,
	"title":        true,
	"original_url": true,
	"short_code":   true,
	"expires_at":   true,
	"visit_count":  true,
	"max_visits":   true,
}

// ListShortUrls handles GET /api/short-urls
func ListShortUrls(c *gin.Context) {
	userID := c.GetString("userId")

	query := database.DB.Model(&models.ShortUrl{}).Where("user_id = ?", userID)

	search := c.Query("search")
	if search != "" {
		// LOWER on both sides keeps the match case-insensitive on Postgres
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(original_url) LIKE ? OR LOWER(short_code) LIKE ? OR LOWER(title) LIKE ?",
			like, like, like,
		)
	}

	sort := c.DefaultQuery("sort", "id")
	direction := c.DefaultQuery("direction", "asc")
	if !allowedSorts[sort] {
		sort = "id"
	}
	if direction != "asc" && direction != "desc" {
		direction = "asc"
	}

	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if err != nil || perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch short URLs"})
		return
	}

	var shortUrls []models.ShortUrl
	if err := query.
		Order(sort + " " + direction).
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&shortUrls).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch short URLs"})
		return
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      shortUrls,
		"total":     total,
		"page":      page,
		"per_page":  perPage,
		"last_page": lastPage,
		"search":    search,
		"sort":      sort,
		"direction": direction,
	})
}

type CreateShortUrlInput struct {
	OriginalURL string `json:"original_url"`
	Title       string `json:"title"`
	ShortCode   string `json:"short_code"`
	ExpiresAt   string `json:"expires_at"`
	MaxVisits   *int   `json:"max_visits"`
}

// CreateShortUrl handles POST /api/short-urls
func CreateShortUrl(c *gin.Context) {
	userID := c.GetString("userId")

	var input CreateShortUrlInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	verr := apperrors.NewValidationError()

	// Length limits count characters, not bytes, so multibyte titles are
	// not penalized
	if input.OriginalURL == "" {
		verr.Add("original_url", "The original URL is required.")
	} else if utf8.RuneCountInString(input.OriginalURL) > maxOriginalURLLen {
		verr.Add("original_url", "The original URL may not be longer than 2048 characters.")
	} else if u, err := url.ParseRequestURI(input.OriginalURL); err != nil || u.Scheme == "" || u.Host == "" {
		verr.Add("original_url", "The original URL must be a valid URL.")
	}

	if input.Title == "" {
		verr.Add("title", "The title is required.")
	} else if utf8.RuneCountInString(input.Title) > maxTitleLen {
		verr.Add("title", "The title may not be longer than 255 characters.")
	}

	if input.ShortCode != "" {
		if !utils.ValidateShortCode(input.ShortCode) {
			verr.Add("short_code", "The short code must be 3-32 characters: letters, numbers and dashes only.")
		} else if msg, err := checkShortCodeReuse(input.ShortCode); err != nil {
			logger.Error().Err(err).Str("short_code", input.ShortCode).Msg("Failed to check short code availability")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate short code"})
			return
		} else if msg != "" {
			verr.Add("short_code", msg)
		}
	}

	var expiresAt *time.Time
	if input.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, input.ExpiresAt)
		if err != nil {
			// Accept a bare date too, matching what the date picker sends
			t, err = time.Parse("2006-01-02", input.ExpiresAt)
		}
		if err != nil {
			verr.Add("expires_at", "The expiration date is not a valid date.")
		} else {
			expiresAt = &t
		}
	}

	if input.MaxVisits != nil && *input.MaxVisits < 1 {
		verr.Add("max_visits", "The visit limit must be at least 1.")
	}

	if verr.HasErrors() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Validation failed",
			"errors": verr.Fields,
		})
		return
	}

	shortCode := input.ShortCode
	if shortCode == "" {
		generated, err := generateUnusedCode()
		if err != nil || generated == "" {
			logger.Error().Err(err).Str("user_id", userID).Msg("Failed to generate a short code")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate a short code"})
			return
		}
		shortCode = generated
	}

	shortUrl := models.ShortUrl{
		UserID:      userID,
		Title:       input.Title,
		OriginalURL: input.OriginalURL,
		ShortCode:   shortCode,
		ExpiresAt:   expiresAt,
		MaxVisits:   input.MaxVisits,
		Active:      true,
	}

	if err := database.DB.Create(&shortUrl).Error; err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create short URL")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create short URL"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": shortUrl})
}

// checkShortCodeReuse enforces uniqueness among live rows plus the 1-year
// cooldown on soft-deleted ones. Returns a user-facing message ("" when the
// code is free), or an error when the database could not be consulted. Only
// ErrRecordNotFound means free: a failing lookup must not hand out a code
// that might already be taken.
func checkShortCodeReuse(code string) (string, error) {
	var live models.ShortUrl
	err := database.DB.Where("short_code = ?", code).First(&live).Error
	if err == nil {
		return "This short code has already been used and cannot be reused.", nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var deleted models.ShortUrl
	err = database.DB.Unscoped().
		Where("short_code = ? AND deleted_at IS NOT NULL", code).
		Order("deleted_at DESC").
		First(&deleted).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if time.Since(deleted.DeletedAt.Time) < codeReuseCooldown {
		return "This short code was deleted less than 1 year ago and cannot be reused yet.", nil
	}
	return "", nil
}

// generateUnusedCode draws random codes until one clears the reuse rule.
// Collisions are vanishingly rare at 8 chars; the retry cap guards the
// pathological case.
func generateUnusedCode() (string, error) {
	for i := 0; i < 5; i++ {
		code := utils.GenerateShortCode(randomCodeLen)
		msg, err := checkShortCodeReuse(code)
		if err != nil {
			return "", err
		}
		if msg == "" {
			return code, nil
		}
	}
	return "", nil
}

// GetShortUrl handles GET /api/short-urls/:id. Returns the row, the full
// visit history newest first, and the 7-day click chart.
func GetShortUrl(c *gin.Context) {
	shortUrl, ok := findOwnedShortUrl(c)
	if !ok {
		return
	}

	var visits []models.ShortUrlVisit
	if err := database.DB.
		Where("short_url_id = ?", shortUrl.ID).
		Order("visited_at DESC").
		Find(&visits).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch visits"})
		return
	}

	chart, err := services.ClicksByDay(shortUrl.ID, 7)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build chart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shortUrl": shortUrl,
		"visits":   visits,
		"chart":    chart,
	})
}

// GetCountryClicks handles GET /api/short-urls/:id/country-clicks
func GetCountryClicks(c *gin.Context) {
	shortUrl, ok := findOwnedShortUrl(c)
	if !ok {
		return
	}

	cacheKey := "country_clicks:" + strconv.FormatUint(uint64(shortUrl.ID), 10)

	var cached map[string]int
	if err := database.CacheGet(cacheKey, &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	byCountry, err := services.CountryClicks(shortUrl.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch country clicks"})
		return
	}

	go database.CacheSet(cacheKey, byCountry, 30*time.Second)

	c.JSON(http.StatusOK, byCountry)
}

// DeleteShortUrl handles DELETE /api/short-urls/:id (soft delete; visits
// are kept for audit)
func DeleteShortUrl(c *gin.Context) {
	shortUrl, ok := findOwnedShortUrl(c)
	if !ok {
		return
	}

	if err := database.DB.Delete(&shortUrl).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete short URL"})
		return
	}

	go database.CacheDelete("country_clicks:" + strconv.FormatUint(uint64(shortUrl.ID), 10))

	c.Status(http.StatusNoContent)
}

// ToggleShortUrlActive handles PATCH /api/short-urls/:id/toggle-active
func ToggleShortUrlActive(c *gin.Context) {
	shortUrl, ok := findOwnedShortUrl(c)
	if !ok {
		return
	}

	if err := database.DB.Model(&shortUrl).
		Update("active", !shortUrl.Active).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update short URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": shortUrl})
}

// findOwnedShortUrl resolves :id scoped to the caller. Missing and
// not-owned rows answer the same 404 so ownership never leaks.
func findOwnedShortUrl(c *gin.Context) (models.ShortUrl, bool) {
	userID := c.GetString("userId")

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
		return models.ShortUrl{}, false
	}

	var shortUrl models.ShortUrl
	if err := database.DB.
		Where("user_id = ?", userID).
		First(&shortUrl, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Short URL not found"})
		return models.ShortUrl{}, false
	}
	return shortUrl, true
}
