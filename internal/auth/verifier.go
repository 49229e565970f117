package auth

import (
	"fmt"

	"github.com/EmotionLens/EL-Backend/internal/db"
	"github.com/EmotionLens/EL-Backend/internal/utils"
)

// TokenInfo implements middleware.TokenVerifier. Signature checks are pure,
// but a token is only as good as its user: a deactivated or deleted account
// must stop authenticating even while its token is unexpired.
type TokenInfo struct{}

func (ti TokenInfo) VerifyToken(raw string) (utils.TokenData, error) {
	claims, err := Tokens.VerifyToken(raw)
	if err != nil {
		return utils.TokenData{}, err
	}

	var user User
	if err := db.DB.First(&user, "user_id = ?", claims.UserID).Error; err != nil {
		return utils.TokenData{}, fmt.Errorf("user not found: %w", err)
	}
	if !user.Active {
		return utils.TokenData{}, fmt.Errorf("user is deactivated")
	}

	return claims.Data(), nil
}
