package account

import "time"

// Account is a registered identity. Anonymous accounts carry no email.
// The API key is issued once at creation and never rotated.
type Account struct {
	ID            string     `bson:"_id" json:"id"`
	Email         string     `bson:"email,omitempty" json:"email,omitempty"`
	PasswordHash  string     `bson:"password_hash,omitempty" json:"-"`
	APIKey        string     `bson:"api_key" json:"-"`
	IsPremium     bool       `bson:"is_premium" json:"is_premium"`
	PremiumUntil  *time.Time `bson:"premium_until,omitempty" json:"premium_until,omitempty"`
	EmailVerified bool       `bson:"email_verified" json:"email_verified"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
}

// PendingRegistration is a staged password signup that has not yet been
// confirmed. The account does not exist until the token is verified.
type PendingRegistration struct {
	ID                string    `bson:"_id" json:"id"`
	Email             string    `bson:"email" json:"email"`
	PasswordHash      string    `bson:"password_hash" json:"-"`
	VerificationToken string    `bson:"verification_token" json:"-"`
	TokenExpires      time.Time `bson:"token_expires" json:"token_expires"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
}

// VerificationTTL is how long a pending registration stays redeemable.
const VerificationTTL = 24 * time.Hour
