package main

import (
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/CodeFormerCodeFormer/shorty/internal/config"
	"github.com/CodeFormerCodeFormer/shorty/internal/database"
	"github.com/CodeFormerCodeFormer/shorty/internal/models"
)

func main() {
	config.LoadConfig()
	database.Connect()

	log.Println("🔄 Running migrations (just in case)...")
	database.DB.AutoMigrate(
		&models.User{},
		&models.ShortUrl{},
		&models.ShortUrlVisit{},
	)

	log.Println("🗑️  Clearing short URL tables (EXCEPT users)...")
	if err := database.DB.Exec("TRUNCATE TABLE short_urls, short_url_visits RESTART IDENTITY CASCADE").Error; err != nil {
		log.Fatalf("❌ Failed to truncate: %v", err)
	}

	log.Println("👤 Fetching demo user...")
	var user models.User
	if err := database.DB.First(&user).Error; err != nil {
		log.Println("⚠️ No users found. Creating a demo user...")
		hash, _ := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.DefaultCost)
		user = models.User{
			ID:       uuid.New().String(),
			Name:     "Demo User",
			Username: "demo",
			Email:    "demo@shorty.local",
			Password: string(hash),
		}
		database.DB.Create(&user)
	}
	log.Printf("👉 Using owner: %s (%s)", user.Username, user.ID)

	seedShortUrls(user)

	log.Println("✅ Seeding complete")
}

func seedShortUrls(user models.User) {
	expires := time.Now().AddDate(0, 1, 0)
	maxVisits := 100

	links := []models.ShortUrl{
		{UserID: user.ID, Title: "Go homepage", OriginalURL: "https://go.dev", ShortCode: "golang", Active: true},
		{UserID: user.ID, Title: "Gin docs", OriginalURL: "https://gin-gonic.com/docs/", ShortCode: "gin-docs", Active: true, ExpiresAt: &expires},
		{UserID: user.ID, Title: "Launch promo", OriginalURL: "https://example.com/promo", ShortCode: "promo24", Active: true, MaxVisits: &maxVisits},
		{UserID: user.ID, Title: "Old campaign", OriginalURL: "https://example.com/old", ShortCode: "old-camp", Active: false},
	}

	countries := []string{"BR", "US", "DE", "IN", "PT"}
	agents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15",
		"Slackbot-LinkExpanding 1.0 (+https://api.slack.com/robots)",
	}

	for i := range links {
		if err := database.DB.Create(&links[i]).Error; err != nil {
			log.Printf("❌ Failed to seed %s: %v", links[i].ShortCode, err)
			continue
		}

		// Spread a handful of visits over the past week so the 7-day
		// chart and country heatmap have something to show
		visits := rand.Intn(20) + 5
		for v := 0; v < visits; v++ {
			country := countries[rand.Intn(len(countries))]
			agent := agents[rand.Intn(len(agents))]
			visitedAt := time.Now().Add(-time.Duration(rand.Intn(7*24)) * time.Hour)

			database.DB.Create(&models.ShortUrlVisit{
				ShortUrlID: links[i].ID,
				IPAddress:  "203.0.113.1",
				Country:    &country,
				UserAgent:  &agent,
				VisitedAt:  visitedAt,
			})
		}
		database.DB.Model(&links[i]).UpdateColumn("visit_count", visits)

		log.Printf("🔗 Seeded /j/%s with %d visits", links[i].ShortCode, visits)
	}
}
