package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Account is an email/password login stored in PostgreSQL
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Email        string    `json:"email" gorm:"uniqueIndex"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is an authenticated account credential
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionClaims are the signed claims carried by a session token
type SessionClaims struct {
	AccountID string `json:"account_id"`
	jwt.RegisteredClaims
}

// File is an object in file storage
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}
