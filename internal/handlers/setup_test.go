package handlers

import (
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/CodeFormerCodeFormer/shorty/internal/config"
	"github.com/CodeFormerCodeFormer/shorty/internal/database"
	"github.com/CodeFormerCodeFormer/shorty/internal/models"
	"github.com/CodeFormerCodeFormer/shorty/pkg/logger"
)

// SetupTestDB initializes a clean in-memory SQLite DB for testing
func SetupTestDB() {
	logger.Init("test")

	config.AppConfig = &config.Config{
		JWTSecret: "test_secret_key_12345",
		BaseURL:   "http://localhost:8080",
		GeoAPIURL: "http://127.0.0.1:1", // unreachable: geo resolves to unknown
	}

	db, _ := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	db.Migrator().DropTable(
		&models.ShortUrlVisit{},
		&models.ShortUrl{},
		&models.User{},
	)
	db.AutoMigrate(
		&models.User{},
		&models.ShortUrl{},
		&models.ShortUrlVisit{},
	)
	database.DB = db
}

func createTestUser(username string) models.User {
	user := models.User{
		ID:       uuid.New().String(),
		Name:     "Test " + username,
		Username: username,
		Email:    username + "@example.com",
		Password: "irrelevant",
	}
	database.DB.Create(&user)
	return user
}
