package account

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/otakudescriptor/api/internal/mailer"
	"github.com/otakudescriptor/api/internal/pkg/errors"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/metrics"
	"github.com/otakudescriptor/api/internal/store"
	"github.com/otakudescriptor/api/internal/token"
)

// Signup flow labels for metrics.
const (
	flowAnonymous = "anonymous"
	flowMagicLink = "magic_link"
	flowPassword  = "password"
)

// Service implements the registration workflow: anonymous and magic-link
// signup, staged password registration with email verification, and
// password login.
type Service struct {
	store  store.Store
	mailer mailer.Mailer
	log    *logger.Logger
	now    func() time.Time
}

// NewService creates a registration service
func NewService(st store.Store, m mailer.Mailer, log *logger.Logger) *Service {
	return &Service{
		store:  st,
		mailer: m,
		log:    log,
		now:    time.Now,
	}
}

// RegisterResult is the outcome of a magic-link or anonymous registration
type RegisterResult struct {
	// APIKey is set only for anonymous signups; email flows deliver the
	// key out of band
	APIKey     string
	IsPremium  bool
	CheckEmail bool
}

// Register handles the combined magic-link login/signup endpoint. With no
// email it creates an anonymous account and returns its key directly. With
// an email it ensures an account exists and mails the key as a login link,
// whether or not the address was known before.
func (s *Service) Register(ctx context.Context, email, baseURL string) (*RegisterResult, error) {
	accounts := s.store.Collection(store.Accounts)

	if email == "" {
		acct := Account{
			ID:        uuid.NewString(),
			APIKey:    token.NewAPIKey(),
			CreatedAt: s.now(),
		}
		if _, err := accounts.InsertOne(ctx, acct); err != nil {
			return nil, errors.Internal("Failed to create account", err)
		}
		metrics.RecordRegistration(flowAnonymous)
		s.log.WithFields(map[string]interface{}{"account_id": acct.ID}).
			Info("Anonymous account created")
		return &RegisterResult{APIKey: acct.APIKey}, nil
	}

	var existing Account
	err := accounts.FindOne(ctx, store.Where("email", email), &existing)
	switch {
	case err == nil:
		// Magic-link login for a known address: resend the existing key
		if !s.mailer.SendLoginLink(email, existing.APIKey, baseURL) {
			return nil, errors.NotifyFailed("Failed to send login email. Please try again later.")
		}
		return &RegisterResult{CheckEmail: true}, nil
	case stderrors.Is(err, store.ErrNoDocuments):
		// Fall through to first-time magic-link signup
	default:
		return nil, errors.Internal("Failed to look up account", err)
	}

	acct := Account{
		ID:        uuid.NewString(),
		Email:     email,
		APIKey:    token.NewAPIKey(),
		CreatedAt: s.now(),
	}
	if _, err := accounts.InsertOne(ctx, acct); err != nil {
		if stderrors.Is(err, store.ErrDuplicateKey) {
			// Lost a race with a concurrent signup for the same address;
			// the unique index kept the invariant, treat it as a login
			return s.Register(ctx, email, baseURL)
		}
		return nil, errors.Internal("Failed to create account", err)
	}

	metrics.RecordRegistration(flowMagicLink)
	s.log.WithFields(map[string]interface{}{"account_id": acct.ID}).
		Info("Magic-link account created")

	if !s.mailer.SendLoginLink(email, acct.APIKey, baseURL) {
		// The account is valid; a retry lands on the resend path above
		return nil, errors.NotifyFailed("Failed to send login email. Please try again later.")
	}
	return &RegisterResult{CheckEmail: true}, nil
}

// RegisterPassword stages a password signup. The account is only
// materialized later by VerifyEmail. A repeated request for the same email
// resends the existing verification token instead of rotating it.
// Returns alreadySent=true when a pending registration existed.
func (s *Service) RegisterPassword(ctx context.Context, email, password, baseURL string) (alreadySent bool, err error) {
	accounts := s.store.Collection(store.Accounts)
	pendings := s.store.Collection(store.PendingRegistrations)

	var existing Account
	err = accounts.FindOne(ctx, store.Where("email", email), &existing)
	if err == nil {
		s.log.WithFields(map[string]interface{}{"email": email}).
			Warn("Registration attempt with existing email")
		return false, errors.Conflict("Email already registered")
	}
	if !stderrors.Is(err, store.ErrNoDocuments) {
		return false, errors.Internal("Failed to look up account", err)
	}

	var pending PendingRegistration
	err = pendings.FindOne(ctx, store.Where("email", email), &pending)
	if err == nil {
		// Resend with the existing token, never rotate it
		s.log.WithFields(map[string]interface{}{"email": email}).
			Info("Pending registration exists, resending verification email")
		if !s.mailer.SendVerificationLink(email, pending.VerificationToken, baseURL) {
			return true, errors.NotifyFailed("Failed to send verification email. Please try again later.")
		}
		return true, nil
	}
	if !stderrors.Is(err, store.ErrNoDocuments) {
		return false, errors.Internal("Failed to look up pending registration", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.Internal("Failed to hash password", err)
	}

	pending = PendingRegistration{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      string(hash),
		VerificationToken: token.NewVerificationToken(),
		TokenExpires:      s.now().Add(VerificationTTL),
		CreatedAt:         s.now(),
	}
	if _, err := pendings.InsertOne(ctx, pending); err != nil {
		if stderrors.Is(err, store.ErrDuplicateKey) {
			// Concurrent duplicate request won the insert; its email is
			// already on the way
			return true, nil
		}
		return false, errors.Internal("Failed to create pending registration", err)
	}

	if !s.mailer.SendVerificationLink(email, pending.VerificationToken, baseURL) {
		// Compensate: no orphaned pending state behind a failed send
		if derr := pendings.DeleteOne(ctx, store.Where("_id", pending.ID)); derr != nil {
			s.log.ErrorWithErr(derr, "Failed to remove pending registration after send failure")
		}
		return false, errors.NotifyFailed("Failed to send verification email. Please try again later.")
	}

	s.log.WithFields(map[string]interface{}{"email": email}).
		Info("Pending registration created")
	return false, nil
}

// VerifyEmail redeems a verification token. This is the only path that
// materializes a password-based account; the pending row is consumed
// whether verification succeeds or the token turns out to be expired.
func (s *Service) VerifyEmail(ctx context.Context, verificationToken string) (apiKey string, err error) {
	accounts := s.store.Collection(store.Accounts)
	pendings := s.store.Collection(store.PendingRegistrations)

	var pending PendingRegistration
	err = pendings.FindOne(ctx, store.Where("verification_token", verificationToken), &pending)
	if stderrors.Is(err, store.ErrNoDocuments) {
		metrics.RecordVerification("not_found")
		return "", errors.NotFound("Verification token")
	}
	if err != nil {
		return "", errors.Internal("Failed to look up verification token", err)
	}

	if s.now().After(pending.TokenExpires) {
		// Lazy cleanup; the caller must register again
		if derr := pendings.DeleteOne(ctx, store.Where("_id", pending.ID)); derr != nil {
			s.log.ErrorWithErr(derr, "Failed to remove expired pending registration")
		}
		metrics.RecordVerification("expired")
		return "", errors.Expired("Verification token has expired. Please register again.")
	}

	acct := Account{
		ID:            uuid.NewString(),
		Email:         pending.Email,
		PasswordHash:  pending.PasswordHash,
		APIKey:        token.NewAPIKey(),
		EmailVerified: true,
		CreatedAt:     s.now(),
	}
	if _, err := accounts.InsertOne(ctx, acct); err != nil {
		if stderrors.Is(err, store.ErrDuplicateKey) {
			// An account claimed this email while the token was in flight
			_ = pendings.DeleteOne(ctx, store.Where("_id", pending.ID))
			return "", errors.Conflict("Email already registered")
		}
		return "", errors.Internal("Failed to create account", err)
	}

	if derr := pendings.DeleteOne(ctx, store.Where("_id", pending.ID)); derr != nil {
		s.log.ErrorWithErr(derr, "Failed to remove consumed pending registration")
	}

	metrics.RecordVerification("verified")
	metrics.RecordRegistration(flowPassword)
	s.log.WithFields(map[string]interface{}{"account_id": acct.ID, "email": acct.Email}).
		Info("Account created, email verified")
	return acct.APIKey, nil
}

// LoginResult is the outcome of a successful password login
type LoginResult struct {
	APIKey    string
	IsPremium bool
}

// LoginPassword authenticates a password account. Unknown email, accounts
// without a password (magic-link only), and hash mismatches all collapse
// into the same invalid-credentials answer.
func (s *Service) LoginPassword(ctx context.Context, email, password string) (*LoginResult, error) {
	var acct Account
	err := s.store.Collection(store.Accounts).FindOne(ctx, store.Where("email", email), &acct)
	if stderrors.Is(err, store.ErrNoDocuments) {
		return nil, errors.InvalidCredentials()
	}
	if err != nil {
		return nil, errors.Internal("Failed to look up account", err)
	}

	if acct.PasswordHash == "" {
		return nil, errors.InvalidCredentials()
	}

	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return nil, errors.InvalidCredentials()
	}

	return &LoginResult{APIKey: acct.APIKey, IsPremium: acct.IsPremium}, nil
}
