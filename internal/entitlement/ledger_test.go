package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/otakudescriptor/api/internal/account"
	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/pkg/errors"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/ratelimit"
	"github.com/otakudescriptor/api/internal/store"
	"github.com/otakudescriptor/api/internal/store/memory"
)

func newTestLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	st := memory.New()
	limits := config.LimitsConfig{FreeHourly: 20, PremiumHourly: 200, AnonymousHourly: 10}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return New(st, ratelimit.New(st, limits), log), st
}

func seedAccount(t *testing.T, st *memory.Store, acct account.Account) {
	t.Helper()
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now()
	}
	if _, err := st.Collection(store.Accounts).InsertOne(context.Background(), acct); err != nil {
		t.Fatalf("Seeding account failed: %v", err)
	}
}

func TestCheckStatusUnknownKey(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.CheckStatus(context.Background(), "no-such-key")
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodeUnauthorized {
		t.Fatalf("Expected UNAUTHORIZED, got %v", err)
	}
}

func TestCheckStatusFreeTier(t *testing.T) {
	ledger, st := newTestLedger(t)
	seedAccount(t, st, account.Account{APIKey: "free-key"})

	status, err := ledger.CheckStatus(context.Background(), "free-key")
	if err != nil {
		t.Fatalf("CheckStatus returned error: %v", err)
	}
	if status.IsPremium {
		t.Error("Expected a free account")
	}
	if status.HourlyLimit != 20 {
		t.Errorf("HourlyLimit = %d, want 20", status.HourlyLimit)
	}
	if status.Remaining != 20 {
		t.Errorf("Remaining = %d, want 20", status.Remaining)
	}
}

func TestCheckStatusActivePremium(t *testing.T) {
	ledger, st := newTestLedger(t)
	until := time.Now().Add(10 * 24 * time.Hour)
	seedAccount(t, st, account.Account{APIKey: "prem-key", IsPremium: true, PremiumUntil: &until})

	status, err := ledger.CheckStatus(context.Background(), "prem-key")
	if err != nil {
		t.Fatalf("CheckStatus returned error: %v", err)
	}
	if !status.IsPremium {
		t.Error("Expected premium to still be active")
	}
	if status.HourlyLimit != 200 {
		t.Errorf("HourlyLimit = %d, want 200", status.HourlyLimit)
	}
}

func TestCheckStatusLazyExpiryPersists(t *testing.T) {
	ledger, st := newTestLedger(t)
	until := time.Now().Add(-time.Hour)
	acctID := uuid.NewString()
	seedAccount(t, st, account.Account{ID: acctID, APIKey: "expired-key", IsPremium: true, PremiumUntil: &until})

	status, err := ledger.CheckStatus(context.Background(), "expired-key")
	if err != nil {
		t.Fatalf("CheckStatus returned error: %v", err)
	}
	if status.IsPremium {
		t.Error("Expired premium must be reported as free")
	}
	if status.HourlyLimit != 20 {
		t.Errorf("HourlyLimit = %d, want free tier 20", status.HourlyLimit)
	}

	// The flip is written back, not just reported
	var acct account.Account
	if err := st.Collection(store.Accounts).FindOne(context.Background(), store.Where("_id", acctID), &acct); err != nil {
		t.Fatalf("Account lookup failed: %v", err)
	}
	if acct.IsPremium {
		t.Error("Expiry must be persisted to the store")
	}
}

func TestGrantPremium(t *testing.T) {
	ledger, st := newTestLedger(t)
	acctID := uuid.NewString()
	seedAccount(t, st, account.Account{ID: acctID, APIKey: "soon-premium"})

	before := time.Now()
	if err := ledger.GrantPremium(context.Background(), acctID, 30); err != nil {
		t.Fatalf("GrantPremium returned error: %v", err)
	}

	var acct account.Account
	if err := st.Collection(store.Accounts).FindOne(context.Background(), store.Where("_id", acctID), &acct); err != nil {
		t.Fatalf("Account lookup failed: %v", err)
	}
	if !acct.IsPremium {
		t.Fatal("Account must be premium after grant")
	}
	if acct.PremiumUntil == nil {
		t.Fatal("PremiumUntil must be set after grant")
	}
	want := before.Add(30 * 24 * time.Hour)
	if diff := acct.PremiumUntil.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("PremiumUntil = %v, want about %v", acct.PremiumUntil, want)
	}
}

func TestGrantPremiumUnknownAccount(t *testing.T) {
	ledger, _ := newTestLedger(t)

	err := ledger.GrantPremium(context.Background(), "missing-account", 30)
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodeNotFound {
		t.Fatalf("Expected NOT_FOUND, got %v", err)
	}
}
