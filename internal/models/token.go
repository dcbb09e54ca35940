package models

import "time"

// TokenPair is the access/refresh credential pair handed out at login and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RevokedToken is an entry of the append-only revocation set.
// Only the SHA-256 hex hash of the token is stored.
type RevokedToken struct {
	TokenHash string    `json:"token_hash"`
	RevokedAt time.Time `json:"revoked_at"`
}
