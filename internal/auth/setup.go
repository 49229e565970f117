package auth

import (
	"log"
	"os"

	"github.com/EmotionLens/EL-Backend/internal/db"
)

// Tokens is the process-wide token manager, configured by Init.
var Tokens *TokenManager

func Init() {
	if err := db.EnsureSchema(db.DB, "app_auth"); err != nil {
		log.Fatal("Failed to ensure schema app_auth: ", err)
	}

	if err := db.DB.AutoMigrate(&User{}); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}

	tokens, err := NewTokenManager(os.Getenv("JWT_SECRET"), TokenTTL)
	if err != nil {
		log.Fatal("Failed to configure token manager: ", err)
	}
	Tokens = tokens
}
