package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/CodeFormerCodeFormer/shorty/internal/database"
	"github.com/CodeFormerCodeFormer/shorty/internal/models"
	"github.com/CodeFormerCodeFormer/shorty/internal/services"
)

func newAuthedContext(t *testing.T, userID string, method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	c.Request, _ = http.NewRequest(method, path, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("userId", userID)
	return c, w
}

func TestCreateShortUrl_Valid(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("creator")

	c, w := newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com",
		"title":        "Example",
		"short_code":   "my-code",
	})

	CreateShortUrl(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.ShortUrl
	err := database.DB.Where("short_code = ?", "my-code").First(&created).Error
	assert.NoError(t, err)
	assert.Equal(t, user.ID, created.UserID)
	assert.True(t, created.Active)
	assert.Equal(t, 0, created.VisitCount)
}

func TestCreateShortUrl_FieldValidation(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("validator")

	badVisits := 0
	c, w := newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "not a url",
		"title":        "",
		"short_code":   "x", // too short
		"expires_at":   "never",
		"max_visits":   badVisits,
	})

	CreateShortUrl(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response struct {
		Errors map[string]string `json:"errors"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Contains(t, response.Errors, "original_url")
	assert.Contains(t, response.Errors, "title")
	assert.Contains(t, response.Errors, "short_code")
	assert.Contains(t, response.Errors, "expires_at")
	assert.Contains(t, response.Errors, "max_visits")

	// Nothing was created
	var count int64
	database.DB.Model(&models.ShortUrl{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreateShortUrl_MultibyteTitleWithinLimit(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("multibyte")

	// 100 characters but 300 bytes: the limit counts characters
	title := strings.Repeat("日", 100)
	c, w := newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com/jp",
		"title":        title,
		"short_code":   "nihongo",
	})

	CreateShortUrl(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.ShortUrl
	err := database.DB.Where("short_code = ?", "nihongo").First(&created).Error
	assert.NoError(t, err)
	assert.Equal(t, title, created.Title)

	// 256 characters is still over the limit, multibyte or not
	c, w = newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com/jp2",
		"title":        strings.Repeat("日", 256),
	})
	CreateShortUrl(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateShortUrl_ReuseCheckDBErrorIs500(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("outage")

	// With the table gone, the availability check cannot answer; creation
	// must fail rather than assume the code is free
	database.DB.Migrator().DropTable(&models.ShortUrl{})

	c, w := newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com",
		"title":        "Outage",
		"short_code":   "outage",
	})

	CreateShortUrl(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateShortUrl_GeneratesCodeWhenOmitted(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("nocodes")

	c, w := newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com/auto",
		"title":        "Auto code",
	})

	CreateShortUrl(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.ShortUrl
	database.DB.Where("original_url = ?", "https://example.com/auto").First(&created)
	assert.Len(t, created.ShortCode, 8)
}

func TestCreateShortUrl_ReuseCooldown(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("reuser")

	// 1. Take the code
	c, w := newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com/a",
		"title":        "First",
		"short_code":   "abc",
	})
	CreateShortUrl(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	// 2. Same code again fails while the first row is live
	c, w = newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com/b",
		"title":        "Second",
		"short_code":   "abc",
	})
	CreateShortUrl(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 3. Soft-delete the first; still blocked inside the cooldown window
	var first models.ShortUrl
	database.DB.Where("short_code = ?", "abc").First(&first)
	database.DB.Delete(&first)

	c, w = newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com/b",
		"title":        "Second",
		"short_code":   "abc",
	})
	CreateShortUrl(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 4. Backdate the deletion beyond a year: the code frees up
	overAYearAgo := time.Now().Add(-366 * 24 * time.Hour)
	database.DB.Unscoped().Model(&models.ShortUrl{}).
		Where("id = ?", first.ID).
		Update("deleted_at", overAYearAgo)

	c, w = newAuthedContext(t, user.ID, "POST", "/api/short-urls", gin.H{
		"original_url": "https://example.com/b",
		"title":        "Second",
		"short_code":   "abc",
	})
	CreateShortUrl(c)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestListShortUrls_SearchAndSort(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("lister")
	other := createTestUser("other")

	database.DB.Create(&models.ShortUrl{UserID: user.ID, Title: "Test page", OriginalURL: "https://example.com/1", ShortCode: "aaa", Active: true, VisitCount: 5})
	database.DB.Create(&models.ShortUrl{UserID: user.ID, Title: "Another", OriginalURL: "https://test.example.com/2", ShortCode: "bbb", Active: true, VisitCount: 9})
	database.DB.Create(&models.ShortUrl{UserID: user.ID, Title: "Unrelated", OriginalURL: "https://example.com/3", ShortCode: "ccc", Active: true, VisitCount: 1})
	database.DB.Create(&models.ShortUrl{UserID: other.ID, Title: "Test foreign", OriginalURL: "https://example.com/4", ShortCode: "ddd", Active: true})

	c, w := newAuthedContext(t, user.ID, "GET", "/api/short-urls?search=test&per_page=10&sort=visit_count&direction=desc", nil)

	ListShortUrls(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data    []models.ShortUrl `json:"data"`
		Total   int64             `json:"total"`
		Search  string            `json:"search"`
		PerPage int               `json:"per_page"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)

	// Only the caller's rows matching "test", highest visit count first
	assert.Equal(t, int64(2), response.Total)
	if assert.Len(t, response.Data, 2) {
		assert.Equal(t, "bbb", response.Data[0].ShortCode)
		assert.Equal(t, "aaa", response.Data[1].ShortCode)
	}

	// Filters echo back so the SPA can repopulate its controls
	assert.Equal(t, "test", response.Search)
	assert.Equal(t, 10, response.PerPage)
}

func TestListShortUrls_UnknownSortFallsBack(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("sorter")

	database.DB.Create(&models.ShortUrl{UserID: user.ID, Title: "B", OriginalURL: "https://example.com/b", ShortCode: "bbb", Active: true})
	database.DB.Create(&models.ShortUrl{UserID: user.ID, Title: "A", OriginalURL: "https://example.com/a", ShortCode: "aaa", Active: true})

	c, w := newAuthedContext(t, user.ID, "GET", "/api/short-urls?sort=password&direction=sideways", nil)

	ListShortUrls(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data      []models.ShortUrl `json:"data"`
		Sort      string            `json:"sort"`
		Direction string            `json:"direction"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)

	assert.Equal(t, "id", response.Sort)
	assert.Equal(t, "asc", response.Direction)
	if assert.Len(t, response.Data, 2) {
		assert.Equal(t, "bbb", response.Data[0].ShortCode) // created first, lower id
	}
}

func TestGetShortUrl_ChartZeroFills(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("charter")

	link := models.ShortUrl{UserID: user.ID, Title: "Charted", OriginalURL: "https://example.com", ShortCode: "chart", Active: true}
	database.DB.Create(&link)

	// Three clicks, all three days ago
	threeDaysAgo := time.Now().AddDate(0, 0, -3)
	for i := 0; i < 3; i++ {
		database.DB.Create(&models.ShortUrlVisit{ShortUrlID: link.ID, IPAddress: "203.0.113.1", VisitedAt: threeDaysAgo})
	}

	c, w := newAuthedContext(t, user.ID, "GET", "/api/short-urls/"+strconv.Itoa(int(link.ID)), nil)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(link.ID))}}

	GetShortUrl(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Chart  []services.DailyClicks `json:"chart"`
		Visits []models.ShortUrlVisit `json:"visits"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)

	assert.Len(t, response.Chart, 7)
	assert.Len(t, response.Visits, 3)

	nonZero := 0
	for _, day := range response.Chart {
		if day.Count > 0 {
			nonZero++
			assert.Equal(t, 3, day.Count)
			assert.Equal(t, threeDaysAgo.Format("2006-01-02"), day.Date)
		}
	}
	assert.Equal(t, 1, nonZero)
}

func TestGetShortUrl_OwnershipHidesRows(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	owner := createTestUser("owner")
	intruder := createTestUser("intruder")

	link := models.ShortUrl{UserID: owner.ID, Title: "Mine", OriginalURL: "https://example.com", ShortCode: "mine", Active: true}
	database.DB.Create(&link)

	c, w := newAuthedContext(t, intruder.ID, "GET", "/api/short-urls/1", nil)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(link.ID))}}

	GetShortUrl(c)

	// Same 404 as a missing row: ownership must not leak
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCountryClicks_ExcludesUnknown(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("geographer")

	link := models.ShortUrl{UserID: user.ID, Title: "Geo", OriginalURL: "https://example.com", ShortCode: "geo", Active: true}
	database.DB.Create(&link)

	br := "BR"
	us := "US"
	database.DB.Create(&models.ShortUrlVisit{ShortUrlID: link.ID, IPAddress: "203.0.113.1", Country: &br, VisitedAt: time.Now()})
	database.DB.Create(&models.ShortUrlVisit{ShortUrlID: link.ID, IPAddress: "203.0.113.2", Country: &br, VisitedAt: time.Now()})
	database.DB.Create(&models.ShortUrlVisit{ShortUrlID: link.ID, IPAddress: "203.0.113.3", Country: &us, VisitedAt: time.Now()})
	database.DB.Create(&models.ShortUrlVisit{ShortUrlID: link.ID, IPAddress: "203.0.113.4", VisitedAt: time.Now()}) // unknown

	c, w := newAuthedContext(t, user.ID, "GET", "/api/short-urls/1/country-clicks", nil)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(link.ID))}}

	GetCountryClicks(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var byCountry map[string]int
	json.Unmarshal(w.Body.Bytes(), &byCountry)

	assert.Equal(t, map[string]int{"BR": 2, "US": 1}, byCountry)
}

func TestDeleteShortUrl_SoftDeletesAndKeepsVisits(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("deleter")

	link := models.ShortUrl{UserID: user.ID, Title: "Doomed", OriginalURL: "https://example.com", ShortCode: "doomed", Active: true}
	database.DB.Create(&link)
	database.DB.Create(&models.ShortUrlVisit{ShortUrlID: link.ID, IPAddress: "203.0.113.1", VisitedAt: time.Now()})

	c, w := newAuthedContext(t, user.ID, "DELETE", "/api/short-urls/1", nil)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(link.ID))}}

	DeleteShortUrl(c)
	// Status-only responses aren't flushed to the recorder by CreateTestContext
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)

	// Gone from default queries, still present unscoped
	var found models.ShortUrl
	err := database.DB.Where("id = ?", link.ID).First(&found).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	err = database.DB.Unscoped().Where("id = ?", link.ID).First(&found).Error
	assert.NoError(t, err)
	assert.True(t, found.DeletedAt.Valid)

	// Visit history kept for audit
	var visitCount int64
	database.DB.Model(&models.ShortUrlVisit{}).Where("short_url_id = ?", link.ID).Count(&visitCount)
	assert.Equal(t, int64(1), visitCount)
}

func TestToggleActive_TwiceRestoresState(t *testing.T) {
	SetupTestDB()
	gin.SetMode(gin.TestMode)
	user := createTestUser("toggler")

	link := models.ShortUrl{UserID: user.ID, Title: "Switch", OriginalURL: "https://example.com", ShortCode: "switch", Active: true}
	database.DB.Create(&link)

	for i := 0; i < 2; i++ {
		c, w := newAuthedContext(t, user.ID, "PATCH", "/api/short-urls/1/toggle-active", nil)
		c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(link.ID))}}
		ToggleShortUrlActive(c)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	var final models.ShortUrl
	database.DB.First(&final, link.ID)
	assert.True(t, final.Active)
}
