package emotion

import (
	"log"

	"github.com/EmotionLens/EL-Backend/internal/db"
)

func Init() {
	if err := checkMetadata(); err != nil {
		log.Fatal("Emotion metadata is incomplete: ", err)
	}

	if err := db.EnsureSchema(db.DB, "emotion"); err != nil {
		log.Fatal("Failed to ensure schema emotion: ", err)
	}

	// Image before Emotion so the set-null FK has its target table.
	if err := db.DB.AutoMigrate(&Session{}, &Image{}, &Emotion{}, &EmotionSummary{}); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}
}
