package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// Origin of the admin SPA (CORS) and public base of short links
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	BaseURL     string `mapstructure:"BASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Geolocation lookup endpoint; overridable so tests can point at a stub
	GeoAPIURL string `mapstructure:"GEO_API_URL"`
}

var AppConfig *Config

func LoadConfig() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("GEO_API_URL", "https://ipapi.co")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
}
