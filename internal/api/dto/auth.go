package dto

import "time"

// RegisterRequest starts a magic-link login/signup, or an anonymous signup
// when the email is absent
type RegisterRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// AnonymousRegisterResponse returns the credential for a new anonymous account
type AnonymousRegisterResponse struct {
	APIKey    string `json:"api_key"`
	IsPremium bool   `json:"is_premium"`
}

// MagicLinkResponse tells the caller to check their inbox
type MagicLinkResponse struct {
	RequireEmailCheck bool `json:"require_email_check"`
}

// RegisterPasswordRequest starts a staged password registration
type RegisterPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterPasswordResponse tells the caller verification mail is on the way
type RegisterPasswordResponse struct {
	RequireEmailVerification bool `json:"require_email_verification"`
}

// LoginRequest authenticates with email and password
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the account credential on successful login
type LoginResponse struct {
	APIKey    string `json:"api_key"`
	IsPremium bool   `json:"is_premium"`
}

// StatusResponse is the authenticated quota/entitlement view
type StatusResponse struct {
	IsPremium      bool       `json:"is_premium"`
	PremiumUntil   *time.Time `json:"premium_until,omitempty"`
	HourlySearches int64      `json:"hourly_searches"`
	HourlyLimit    int        `json:"hourly_limit"`
	Remaining      int64      `json:"remaining"`
}

// AnonymousStatusResponse is the quota view for anonymous sessions
type AnonymousStatusResponse struct {
	IsAnonymous    bool  `json:"is_anonymous"`
	HourlySearches int64 `json:"hourly_searches"`
	HourlyLimit    int   `json:"hourly_limit"`
	Remaining      int64 `json:"remaining"`
}
