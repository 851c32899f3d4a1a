package models

import "time"

// VerificationToken is handed back after a successful code check.
type VerificationToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}
