// Package entitlement tracks premium status per account. Premium expiry is
// applied lazily: the flag is corrected and persisted when it is read, not
// by a background sweep.
package entitlement

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/otakudescriptor/api/internal/account"
	"github.com/otakudescriptor/api/internal/pkg/errors"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/metrics"
	"github.com/otakudescriptor/api/internal/ratelimit"
	"github.com/otakudescriptor/api/internal/store"
)

// Status is the account view returned by the auth-status endpoint
type Status struct {
	IsPremium    bool       `json:"is_premium"`
	PremiumUntil *time.Time `json:"premium_until,omitempty"`
	ratelimit.Snapshot
}

// Ledger reads and mutates premium entitlement
type Ledger struct {
	store store.Store
	quota *ratelimit.Accountant
	log   *logger.Logger
	now   func() time.Time
}

// New creates a ledger
func New(st store.Store, quota *ratelimit.Accountant, log *logger.Logger) *Ledger {
	return &Ledger{
		store: st,
		quota: quota,
		log:   log,
		now:   time.Now,
	}
}

// CheckStatus resolves an API key to its premium status and rate-limit
// snapshot. An expired premium flag is flipped and persisted before the
// answer is returned, so later reads see the corrected value. Concurrent
// callers may both observe the expiry; both converge to false.
func (l *Ledger) CheckStatus(ctx context.Context, apiKey string) (*Status, error) {
	accounts := l.store.Collection(store.Accounts)

	var acct account.Account
	err := accounts.FindOne(ctx, store.Where("api_key", apiKey), &acct)
	if stderrors.Is(err, store.ErrNoDocuments) {
		return nil, errors.Unauthorized("Invalid API key")
	}
	if err != nil {
		return nil, errors.Internal("Failed to look up account", err)
	}

	if acct.IsPremium && acct.PremiumUntil != nil && l.now().After(*acct.PremiumUntil) {
		err := accounts.UpdateOne(ctx,
			store.Where("_id", acct.ID),
			store.Set("is_premium", false))
		if err != nil && !stderrors.Is(err, store.ErrNoDocuments) {
			return nil, errors.Internal("Failed to expire premium status", err)
		}
		acct.IsPremium = false
		l.log.WithFields(map[string]interface{}{"account_id": acct.ID}).
			Info("Premium expired")
	}

	count, err := l.quota.CountAuthenticated(ctx, apiKey, ratelimit.DefaultWindow)
	if err != nil {
		return nil, err
	}

	limit := l.quota.Limits().FreeHourly
	if acct.IsPremium {
		limit = l.quota.Limits().PremiumHourly
	}

	return &Status{
		IsPremium:    acct.IsPremium,
		PremiumUntil: acct.PremiumUntil,
		Snapshot:     ratelimit.SnapshotFor(count, limit),
	}, nil
}

// GrantPremium marks an account premium until now plus the given number of
// days. A repeat grant resets the window rather than extending it.
func (l *Ledger) GrantPremium(ctx context.Context, accountID string, days int) error {
	until := l.now().Add(time.Duration(days) * 24 * time.Hour)

	err := l.store.Collection(store.Accounts).UpdateOne(ctx,
		store.Where("_id", accountID),
		store.Set("is_premium", true).Set("premium_until", until))
	if stderrors.Is(err, store.ErrNoDocuments) {
		return errors.NotFound("Account")
	}
	if err != nil {
		return errors.Internal("Failed to grant premium", err)
	}

	metrics.RecordPremiumGrant()
	l.log.WithFields(map[string]interface{}{"account_id": accountID, "days": days}).
		Info("Premium granted")
	return nil
}
