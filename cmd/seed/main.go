package main

import (
	"log"

	"github.com/EmotionLens/EL-Backend/internal/auth"
	"github.com/EmotionLens/EL-Backend/internal/db"
	"github.com/EmotionLens/EL-Backend/internal/emotion"
	"github.com/EmotionLens/EL-Backend/internal/seeds"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env.local")
	db.Connect()

	auth.Init()
	emotion.Init()

	if err := seeds.SeedAll(); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
