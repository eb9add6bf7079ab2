package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/CodeFormerCodeFormer/shorty/internal/database"
	"github.com/CodeFormerCodeFormer/shorty/internal/models"
	"github.com/CodeFormerCodeFormer/shorty/pkg/logger"
	"github.com/CodeFormerCodeFormer/shorty/pkg/utils"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)

func validatePasswordStrength(password string) error {
	var (
		hasMinLen = false
		hasUpper  = false
		hasLower  = false
		hasNumber = false
	)
	if len(password) >= 8 {
		hasMinLen = true
	}
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}
	if !hasMinLen || !hasUpper || !hasLower || !hasNumber {
		return fmt.Errorf("password must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, and one number")
	}
	return nil
}

type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username" binding:"required"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validatePasswordStrength(input.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !usernameRe.MatchString(input.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be 3-30 characters and contain only letters, numbers, underscores, or hyphens"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		ID:       utils.GenerateID(),
		Name:     input.Name,
		Email:    input.Email,
		Username: input.Username,
		Password: string(hashedPassword),
	}

	if result := database.DB.Create(&user); result.Error != nil {
		// Differentiate between email and username conflict
		var existingUser models.User
		if err := database.DB.Where("email = ?", input.Email).First(&existingUser).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists. Please sign in instead."})
			return
		}
		if err := database.DB.Where("username = ?", input.Username).First(&existingUser).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "This username is already taken. Please choose another one."})
			return
		}

		logger.Warn().Err(result.Error).Str("email", input.Email).Msg("Registration failed: unique violation")
		c.JSON(http.StatusConflict, gin.H{"error": "User with this email or username already exists"})
		return
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	logger.Info().Str("user_id", user.ID).Msg("User registered successfully")

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"user":  user,
	})
}

func Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := utils.GenerateToken(user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

func Logout(c *gin.Context) {
	// Get claims from context (set by AuthMiddleware)
	claimsInterface, exists := c.Get("claims")
	if !exists {
		// Fallback: try to extract from the header if the middleware didn't set it
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusOK, gin.H{"message": "Already logged out"})
			return
		}
		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"message": "Already logged out"})
			return
		}
		claimsInterface = claims
	}

	claims, ok := claimsInterface.(*utils.Claims)
	if !ok || claims == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Already logged out"})
		return
	}

	jti := claims.GetJTI()
	if jti == "" {
		c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
		return
	}

	// Blacklist the token for its remaining lifetime
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
		return
	}

	if err := database.BlacklistToken(jti, ttl); err != nil {
		// Log but still respond success (fail gracefully)
		logger.Error().Err(err).Str("jti", jti).Msg("Failed to blacklist token")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

// GetMe returns the authenticated user's profile
func GetMe(c *gin.Context) {
	userID := c.GetString("userId")

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
