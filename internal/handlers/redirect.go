package handlers

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeFormerCodeFormer/shorty/internal/config"
	"github.com/CodeFormerCodeFormer/shorty/internal/database"
	"github.com/CodeFormerCodeFormer/shorty/internal/models"
	"github.com/CodeFormerCodeFormer/shorty/internal/services"
	apperrors "github.com/CodeFormerCodeFormer/shorty/pkg/errors"
	"github.com/CodeFormerCodeFormer/shorty/pkg/logger"
)

func respondError(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.Code, gin.H{"error": err.Message})
}

// UA fragments that identify crawlers and link-unfurlers. These get the
// preview page with Open Graph tags instead of a redirect.
var botUASubstrings = []string{
	"bot", "crawl", "slack", "whatsapp", "discord", "twitter",
	"facebook", "telegram", "skype", "preview", "meta", "spider",
}

func isBotUserAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, s := range botUASubstrings {
		if strings.Contains(ua, s) {
			return true
		}
	}
	return false
}

var previewTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <meta property="og:title" content="{{.Title}}" />
    <meta property="og:url" content="{{.OriginalURL}}" />
    <meta property="og:type" content="website" />
    <meta property="og:description" content="URL shortener" />
    <meta property="og:image" content="{{.BaseURL}}/logo.svg" />
    <meta name="twitter:card" content="summary_large_image" />
    <meta name="twitter:title" content="{{.Title}}" />
    <meta name="twitter:description" content="URL shortener" />
    <meta name="twitter:image" content="{{.BaseURL}}/logo.svg" />
</head>
<body>
    <h1>{{.Title}}</h1>
    <p>Redirecting to <a href="{{.OriginalURL}}">{{.OriginalURL}}</a>...</p>
</body>
</html>
`))

type previewData struct {
	Title       string
	OriginalURL string
	BaseURL     string
}

// Redirect handles GET /j/:code. It resolves the code, runs the
// eligibility guards, records the visit inside a transaction, and then
// either serves the bot preview page or issues a 302 to the target.
func Redirect(c *gin.Context) {
	code := c.Param("code")

	var shortUrl models.ShortUrl
	if err := database.DB.Where("short_code = ?", code).First(&shortUrl).Error; err != nil {
		respondError(c, apperrors.NotFound("Short URL not found"))
		return
	}

	// Eligibility guards, first failure wins
	if !shortUrl.Active {
		respondError(c, apperrors.Gone("This link is inactive."))
		return
	}
	if shortUrl.MaxVisits != nil && shortUrl.VisitCount >= *shortUrl.MaxVisits {
		respondError(c, apperrors.Gone("Visit limit reached."))
		return
	}
	if shortUrl.ExpiresAt != nil && time.Now().After(*shortUrl.ExpiresAt) {
		respondError(c, apperrors.Gone("This link has expired."))
		return
	}

	meta := services.VisitMeta{
		IPAddress: c.ClientIP(),
		Country:   services.ResolveCountry(c.ClientIP()),
		UserAgent: optionalHeader(c.Request.UserAgent()),
		Referer:   optionalHeader(c.GetHeader("Referer")),
	}

	// Recording and counting are one transaction; a failure here fails the
	// whole request rather than serving an uncounted redirect
	if err := services.RecordVisit(&shortUrl, meta); err != nil {
		logger.Error().Err(err).Str("short_code", code).Msg("Failed to record visit")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	// Bots get the preview page so unfurlers can render a card without
	// chasing the target URL. They were already counted above.
	if isBotUserAgent(c.Request.UserAgent()) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := previewTemplate.Execute(c.Writer, previewData{
			Title:       shortUrl.Title,
			OriginalURL: shortUrl.OriginalURL,
			BaseURL:     baseURL(),
		}); err != nil {
			logger.Error().Err(err).Msg("Failed to render preview page")
		}
		return
	}

	c.Redirect(http.StatusFound, shortUrl.OriginalURL)
}

func optionalHeader(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func baseURL() string {
	if config.AppConfig != nil {
		return config.AppConfig.BaseURL
	}
	return ""
}
