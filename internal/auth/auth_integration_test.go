package auth_test

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

	"github.com/EmotionLens/EL-Backend/internal/auth"
	"github.com/EmotionLens/EL-Backend/internal/db"
	"github.com/EmotionLens/EL-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// dbAvailable tracks whether the database connection was established.
var dbAvailable bool

// testServer is the shared httptest server for all integration tests.
var testServer *httptest.Server

func TestMain(m *testing.M) {
	// Load .env.local relative to the repo root (two directories up from internal/auth/).
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// No database available — skip all integration tests gracefully.
		os.Exit(m.Run())
	}

	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", strings.Repeat("t", 32))
	}
	// Many credential requests come from 127.0.0.1 in one run; don't trip the limiter.
	os.Setenv("LOGIN_RATE_BURST", "1000")

	db.Connect()
	dbAvailable = true

	// Set up auth tables and the token manager (idempotent).
	auth.Init()

	// Mount auth routes on a chi router, matching production setup in main.go.
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Mount("/auth", auth.SetupRoutes())

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

// registerUser posts a unique registration and returns the decoded response.
// A cleanup hook removes the user row afterwards.
func registerUser(t *testing.T) (auth.AuthResponse, string) {
	t.Helper()
	requireDB(t)

	suffix := uuid.New().String()[:8]
	password := "TestPass123"
	payload := map[string]string{
		"username":  "testuser_" + suffix,
		"email":     fmt.Sprintf("testuser_%s@example.com", suffix),
		"password":  password,
		"full_name": "Test User",
	}

	resp := postJSON(t, "/auth/register", payload)
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register failed: %d %s", resp.StatusCode, body)
	}

	var result auth.AuthResponse
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("invalid register response JSON: %s", body)
	}

	t.Cleanup(func() {
		db.DB.Where("user_id = ?", result.User.UserID).Delete(&auth.User{})
	})

	return result, password
}

func postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

// getWithToken performs a GET with a bearer token.
func getWithToken(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, testServer.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// readBody reads and returns the response body as a string, draining and closing it.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

// TestRegisterIssuesToken verifies that POST /auth/register returns 201 with a
// user record and a bearer token that immediately works against /auth/me.
func TestRegisterIssuesToken(t *testing.T) {
	result, _ := registerUser(t)

	if result.Token == "" {
		t.Fatal("expected a token in the register response")
	}
	if result.User.UserID == "" {
		t.Fatal("expected a user_id in the register response")
	}

	meResp := getWithToken(t, "/auth/me", result.Token)
	meBody := readBody(t, meResp)
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /auth/me, got %d; body: %s", meResp.StatusCode, meBody)
	}
	if !strings.Contains(meBody, result.User.Username) {
		t.Errorf("expected /auth/me body to contain username %q, got: %s", result.User.Username, meBody)
	}
}

// TestLoginReturnsFreshToken verifies that POST /auth/login with valid
// credentials returns 200 and a token usable against /auth/me.
func TestLoginReturnsFreshToken(t *testing.T) {
	result, password := registerUser(t)

	resp := postJSON(t, "/auth/login", map[string]string{
		"email":    result.User.Email,
		"password": password,
	})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", resp.StatusCode, body)
	}

	var login auth.AuthResponse
	if err := json.Unmarshal([]byte(body), &login); err != nil {
		t.Fatalf("invalid login response JSON: %s", body)
	}
	if login.Token == "" {
		t.Fatal("expected a token in the login response")
	}
	if login.User.LastLoginAt == nil {
		t.Error("expected last_login_at to be set after login")
	}

	meResp := getWithToken(t, "/auth/me", login.Token)
	readBody(t, meResp)
	if meResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /auth/me with login token, got %d", meResp.StatusCode)
	}
}

// TestRegisterDuplicateEmailConflict verifies that registering an email that
// already exists returns 409, and that a duplicate username does too.
func TestRegisterDuplicateEmailConflict(t *testing.T) {
	result, _ := registerUser(t)

	// Same email, different username.
	resp := postJSON(t, "/auth/register", map[string]string{
		"username": "other_" + uuid.New().String()[:8],
		"email":    result.User.Email,
		"password": "TestPass123",
	})
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d; body: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "Email already registered") {
		t.Errorf("expected duplicate-email message, got: %q", body)
	}

	// Same username, different email.
	resp = postJSON(t, "/auth/register", map[string]string{
		"username": result.User.Username,
		"email":    fmt.Sprintf("other_%s@example.com", uuid.New().String()[:8]),
		"password": "TestPass123",
	})
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d; body: %s", resp.StatusCode, body)
	}
	if !strings.Contains(body, "Username already taken") {
		t.Errorf("expected duplicate-username message, got: %q", body)
	}
}

// TestLoginFailuresAreIndistinguishable verifies that a wrong password and an
// unknown email both return 401 with byte-identical bodies, so responses can't
// be used to enumerate registered users.
func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	result, _ := registerUser(t)

	wrongPass := postJSON(t, "/auth/login", map[string]string{
		"email":    result.User.Email,
		"password": "definitely-wrong",
	})
	wrongPassBody := readBody(t, wrongPass)

	unknownEmail := postJSON(t, "/auth/login", map[string]string{
		"email":    fmt.Sprintf("nobody_%s@example.com", uuid.New().String()[:8]),
		"password": "definitely-wrong",
	})
	unknownEmailBody := readBody(t, unknownEmail)

	if wrongPass.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", wrongPass.StatusCode)
	}
	if unknownEmail.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", unknownEmail.StatusCode)
	}
	if wrongPassBody != unknownEmailBody {
		t.Errorf("expected identical bodies, got %q vs %q", wrongPassBody, unknownEmailBody)
	}
}

// TestRegisterValidation verifies the shape constraints on registration input.
func TestRegisterValidation(t *testing.T) {
	requireDB(t)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"short username", map[string]string{"username": "ab", "email": "ok@example.com", "password": "TestPass123"}},
		{"bad email", map[string]string{"username": "validname", "email": "not-an-email", "password": "TestPass123"}},
		{"short password", map[string]string{"username": "validname", "email": "ok@example.com", "password": "short"}},
	}

	for _, tc := range cases {
		resp := postJSON(t, "/auth/register", tc.payload)
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d; body: %s", tc.name, resp.StatusCode, body)
		}
	}
}

// TestDeactivateStopsToken verifies that a deactivated account's still-unexpired
// token no longer authenticates.
func TestDeactivateStopsToken(t *testing.T) {
	result, _ := registerUser(t)

	req, err := http.NewRequest(http.MethodPost, testServer.URL+"/auth/deactivate", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+result.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /auth/deactivate: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from deactivate, got %d; body: %s", resp.StatusCode, body)
	}

	meResp := getWithToken(t, "/auth/me", result.Token)
	readBody(t, meResp)
	if meResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 from /auth/me after deactivation, got %d", meResp.StatusCode)
	}
}
