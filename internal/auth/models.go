package auth

import "time"

type User struct {
	UserID         string     `gorm:"primaryKey" json:"user_id"`
	Username       string     `gorm:"uniqueIndex;not null" json:"username"`
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	Password       string     `json:"password,omitempty" gorm:"-"`
	HashedPassword string     `json:"-"`
	FullName       string     `json:"full_name,omitempty"`
	Active         bool       `gorm:"default:true" json:"active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (User) TableName() string { return "app_auth.users" }
