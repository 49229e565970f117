package seeds

import (
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/EmotionLens/EL-Backend/internal/auth"
	"github.com/EmotionLens/EL-Backend/internal/db"
	"github.com/EmotionLens/EL-Backend/internal/emotion"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

//go:embed demo.yaml
var demoYAML []byte

type seedObservation struct {
	Emotion    string  `yaml:"emotion"`
	Confidence float64 `yaml:"confidence"`
	Count      int     `yaml:"count"`
}

type seedFile struct {
	User struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		FullName string `yaml:"full_name"`
	} `yaml:"user"`
	Session struct {
		Name         string            `yaml:"name"`
		DeviceInfo   string            `yaml:"device_info"`
		Location     string            `yaml:"location"`
		Observations []seedObservation `yaml:"observations"`
	} `yaml:"session"`
}

func SeedAll() error {
	return SeedDemo()
}

// SeedDemo creates the demo account plus one closed session with a realistic
// observation spread, as declared in demo.yaml. Idempotent: if the demo user
// already exists, nothing is written.
func SeedDemo() error {
	var data seedFile
	if err := yaml.Unmarshal(demoYAML, &data); err != nil {
		return fmt.Errorf("parse demo.yaml: %w", err)
	}

	var existing auth.User
	if err := db.DB.First(&existing, "email = ?", data.User.Email).Error; err == nil {
		log.Printf("Demo user %s already present, skipping seed", data.User.Email)
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(data.User.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	user := auth.User{
		UserID:         uuid.NewString(),
		Username:       data.User.Username,
		Email:          data.User.Email,
		HashedPassword: string(hashed),
		FullName:       data.User.FullName,
		Active:         true,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}

	session := emotion.Session{
		ID:         uuid.NewString(),
		UserID:     &user.UserID,
		Name:       data.Session.Name,
		StartTime:  time.Now().UTC().Add(-5 * time.Minute),
		DeviceInfo: data.Session.DeviceInfo,
		Location:   data.Session.Location,
	}
	if err := db.DB.Create(&session).Error; err != nil {
		return fmt.Errorf("create demo session: %w", err)
	}

	for _, seed := range data.Session.Observations {
		for i := 0; i < seed.Count; i++ {
			_, err := emotion.RecordObservation(emotion.Emotion{
				SessionID:   session.ID,
				EmotionType: emotion.EmotionType(seed.Emotion),
				Confidence:  seed.Confidence,
			})
			if err != nil {
				return fmt.Errorf("record demo observation: %w", err)
			}
		}
	}

	if _, err := emotion.CloseSession(session.ID, time.Now().UTC(), nil, nil); err != nil {
		return fmt.Errorf("close demo session: %w", err)
	}

	log.Printf("Seeded demo user %s with session %s", user.Username, session.ID)
	return nil
}
