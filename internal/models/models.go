package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Name         string `gorm:"not null"                 json:"name"`
	Role         string `gorm:"not null"                 json:"role"`
}

// RefreshToken is the durable half of a session. The signed token value
// itself is the key: every lookup is by exact string, so "revoked" and
// "never issued" collapse into the same absent state.
type RefreshToken struct {
	Token     string    `gorm:"primaryKey"     json:"token"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"       json:"expires_at"`
}
