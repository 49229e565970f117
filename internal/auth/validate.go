package auth

import "regexp"

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

func validateEmail(email string) bool {
	return len(email) <= 254 && emailRegex.MatchString(email)
}

// validateUsername allows 3-30 characters, alphanumeric and underscore only.
func validateUsername(username string) bool {
	if len(username) < 3 || len(username) > 30 {
		return false
	}
	return usernameRegex.MatchString(username)
}

// validatePassword enforces length only; 72 bytes is the bcrypt input limit.
func validatePassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}
