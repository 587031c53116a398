package repositories

import "errors"

// Errors returned by every backend adapter in place of driver-specific errors
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired or revoked")
	ErrConflict           = errors.New("record already exists")
	ErrUnavailable        = errors.New("backend unavailable")
)
