// Package token issues the opaque credentials handed to clients: long-lived
// API keys and one-shot email verification tokens. Both carry 256 bits of
// entropy and are URL-safe.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const tokenBytes = 32 // 256 bits

// NewAPIKey returns a fresh account credential
func NewAPIKey() string {
	return generate()
}

// NewVerificationToken returns a fresh email verification token
func NewVerificationToken() string {
	return generate()
}

// NewResetToken returns a fresh password reset token
func NewResetToken() string {
	return generate()
}

func generate() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		// The OS randomness source failing is not a recoverable request
		// error; refuse to run without it.
		panic(fmt.Sprintf("token: crypto/rand unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
