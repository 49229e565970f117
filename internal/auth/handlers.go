package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/EmotionLens/EL-Backend/internal/db"
	"github.com/EmotionLens/EL-Backend/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if !validateUsername(input.Username) {
		http.Error(w, "Username must be 3-30 characters, alphanumeric and underscore only", http.StatusBadRequest)
		return
	}
	if !validateEmail(input.Email) {
		http.Error(w, "Invalid email format", http.StatusBadRequest)
		return
	}
	if !validatePassword(input.Password) {
		http.Error(w, "Password must be 8-72 characters", http.StatusBadRequest)
		return
	}

	// Email checked before username so the client always learns about the
	// duplicate email first.
	var existing User
	if err := db.DB.First(&existing, "email = ?", input.Email).Error; err == nil {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	}
	if err := db.DB.First(&existing, "username = ?", input.Username).Error; err == nil {
		http.Error(w, "Username already taken", http.StatusConflict)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("bcrypt error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := User{
		UserID:         uuid.NewString(),
		Username:       input.Username,
		Email:          input.Email,
		HashedPassword: string(hashed),
		FullName:       input.FullName,
		Active:         true,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		log.Printf("failed to create user: %v", err)
		http.Error(w, "Failed to register user", http.StatusInternalServerError)
		return
	}

	token, err := Tokens.IssueToken(user)
	if err != nil {
		log.Printf("failed to issue token: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{User: user, Token: token})
	log.Printf("User registered: %s", user.Username)
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Email == "" || input.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	// Same message for unknown email, wrong password, and deactivated account
	// so responses can't be used to enumerate users.
	var user User
	err := db.DB.First(&user, "email = ?", input.Email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	} else if err != nil {
		log.Printf("login lookup error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !user.Active {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(input.Password)); err != nil {
		http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	if err := db.DB.Model(&user).Update("last_login_at", now).Error; err != nil {
		log.Printf("failed to update last_login_at: %v", err)
	}
	user.LastLoginAt = &now

	token, err := Tokens.IssueToken(user)
	if err != nil {
		log.Printf("failed to issue token: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{User: user, Token: token})
	log.Printf("User logged in: %s", user.Username)
}

func MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var user User
	if err := db.DB.First(&user, "user_id = ?", userID).Error; err != nil {
		http.Error(w, "Couldn't find user", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// DeactivateHandler soft-deletes the caller's account. The row stays so the
// user's sessions keep their referential history; tokens stop verifying once
// Active is false.
func DeactivateHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized: missing user ID in context", http.StatusUnauthorized)
		return
	}

	var user User
	if err := db.DB.First(&user, "user_id = ?", userID).Error; err != nil {
		http.Error(w, "Couldn't find user", http.StatusNotFound)
		return
	}

	if err := db.DB.Model(&user).Update("active", false).Error; err != nil {
		log.Printf("failed to deactivate user %s: %v", userID, err)
		http.Error(w, "Failed to deactivate account", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Account deactivated"))
	log.Printf("User deactivated: %s", userID)
}
