package emotion_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/EmotionLens/EL-Backend/internal/auth"
	"github.com/EmotionLens/EL-Backend/internal/db"
	"github.com/EmotionLens/EL-Backend/internal/emotion"
	"github.com/EmotionLens/EL-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// dbAvailable tracks whether the database connection was established.
var dbAvailable bool

// testServer serves the production router layout: /auth and /emotion mounted
// on one chi router, the same way main.go wires it.
var testServer *httptest.Server

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		os.Exit(m.Run())
	}

	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", strings.Repeat("t", 32))
	}
	os.Setenv("LOGIN_RATE_BURST", "1000")

	db.Connect()
	dbAvailable = true

	auth.Init()
	emotion.Init()

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Mount("/auth", auth.SetupRoutes())
	r.Mount("/emotion", emotion.SetupRoutes())

	testServer = httptest.NewServer(r)
	defer testServer.Close()

	os.Exit(m.Run())
}

func requireDB(t *testing.T) {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
}

// createAnonSession inserts an anonymous session directly and registers a
// cleanup that removes it together with its observations and summaries.
func createAnonSession(t *testing.T, name string) emotion.Session {
	t.Helper()
	requireDB(t)

	session := emotion.Session{
		ID:        uuid.NewString(),
		Name:      name,
		StartTime: time.Now().UTC().Add(-time.Minute),
	}
	if err := db.DB.Create(&session).Error; err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}

	t.Cleanup(func() {
		db.DB.Where("session_id = ?", session.ID).Delete(&emotion.Emotion{})
		db.DB.Where("session_id = ?", session.ID).Delete(&emotion.EmotionSummary{})
		db.DB.Where("id = ?", session.ID).Delete(&emotion.Session{})
	})

	return session
}

// sessionState reads back the stored counter and the sum of summary counts,
// the two sides of the aggregator's core invariant.
func sessionState(t *testing.T, sessionID string) (totalDetections, summarySum int) {
	t.Helper()

	var session emotion.Session
	if err := db.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}

	var summaries []emotion.EmotionSummary
	if err := db.DB.Where("session_id = ?", sessionID).Find(&summaries).Error; err != nil {
		t.Fatalf("failed to load summaries: %v", err)
	}
	for _, s := range summaries {
		summarySum += s.Count
	}
	return session.TotalDetections, summarySum
}

// registerTestUser creates a user over HTTP and returns the auth response.
func registerTestUser(t *testing.T) auth.AuthResponse {
	t.Helper()
	requireDB(t)

	suffix := uuid.New().String()[:8]
	payload, _ := json.Marshal(map[string]string{
		"username": "emouser_" + suffix,
		"email":    fmt.Sprintf("emouser_%s@example.com", suffix),
		"password": "TestPass123",
	})
	resp, err := http.Post(testServer.URL+"/auth/register", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST /auth/register: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d %s", resp.StatusCode, body)
	}

	var result auth.AuthResponse
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("invalid register response JSON: %s", body)
	}

	t.Cleanup(func() {
		var sessions []emotion.Session
		db.DB.Where("user_id = ?", result.User.UserID).Find(&sessions)
		for _, s := range sessions {
			db.DB.Where("session_id = ?", s.ID).Delete(&emotion.Emotion{})
			db.DB.Where("session_id = ?", s.ID).Delete(&emotion.EmotionSummary{})
			db.DB.Where("session_id = ?", s.ID).Delete(&emotion.Image{})
		}
		db.DB.Where("user_id = ?", result.User.UserID).Delete(&emotion.Image{})
		db.DB.Where("user_id = ?", result.User.UserID).Delete(&emotion.Session{})
		db.DB.Where("user_id = ?", result.User.UserID).Delete(&auth.User{})
	})

	return result
}

// doJSON performs an authenticated JSON request against the test server.
func doJSON(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, testServer.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func decodeJSON[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("invalid JSON: %s", body)
	}
	return v
}
