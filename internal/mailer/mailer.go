// Package mailer sends transactional email. Implementations report success
// as a plain bool and never let a transport failure escape to the caller.
package mailer

// Email kinds, used for logging and metrics labels.
const (
	KindLogin        = "login"
	KindVerification = "verification"
	KindReset        = "reset"
)

// Mailer delivers transactional email. Every method returns true only on a
// confirmed handoff to the mail transport.
type Mailer interface {
	// SendLoginLink mails the magic login link carrying the account's API key
	SendLoginLink(email, apiKey, baseURL string) bool

	// SendVerificationLink mails the link that completes a password registration
	SendVerificationLink(email, verificationToken, baseURL string) bool

	// SendPasswordReset mails a password reset link
	SendPasswordReset(email, resetToken, baseURL string) bool
}
