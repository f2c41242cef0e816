package payment

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/otakudescriptor/api/internal/account"
	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/entitlement"
	"github.com/otakudescriptor/api/internal/pkg/errors"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/ratelimit"
	"github.com/otakudescriptor/api/internal/store"
	"github.com/otakudescriptor/api/internal/store/memory"
)

type scriptedClient struct {
	order      *Order
	capture    *CaptureResult
	createErr  error
	captureErr error
	captures   int
}

func (c *scriptedClient) CreateOrder(ctx context.Context, amount float64, currency, customID, baseURL string) (*Order, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	return c.order, nil
}

func (c *scriptedClient) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	c.captures++
	if c.captureErr != nil {
		return nil, c.captureErr
	}
	return c.capture, nil
}

func completedCapture(orderID, accountID string) *CaptureResult {
	return &CaptureResult{
		ID:     orderID,
		Status: "COMPLETED",
		PurchaseUnits: []PurchaseUnit{
			{
				Payments: &Payments{
					Captures: []CaptureRecord{
						{
							ID:       "CAP-" + orderID,
							Status:   "COMPLETED",
							CustomID: accountID,
							Amount:   &Amount{CurrencyCode: "EUR", Value: "4.99"},
						},
					},
				},
			},
		},
	}
}

func newTestPaymentService(t *testing.T, client Client) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	limits := config.LimitsConfig{FreeHourly: 20, PremiumHourly: 200, AnonymousHourly: 10}
	premium := config.PremiumConfig{Price: 4.99, Currency: "EUR", Days: 30}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	ledger := entitlement.New(st, ratelimit.New(st, limits), log)
	return NewService(st, client, ledger, premium, log), st
}

func seedAccount(t *testing.T, st *memory.Store, apiKey string) string {
	t.Helper()
	acct := account.Account{
		ID:        uuid.NewString(),
		APIKey:    apiKey,
		CreatedAt: time.Now(),
	}
	if _, err := st.Collection(store.Accounts).InsertOne(context.Background(), acct); err != nil {
		t.Fatalf("Seeding account failed: %v", err)
	}
	return acct.ID
}

func TestCreateOrder(t *testing.T) {
	client := &scriptedClient{
		order: &Order{
			ID:     "ORDER-1",
			Status: "CREATED",
			Links: []Link{
				{Rel: "self", Href: "https://api.sandbox.paypal.com/v2/checkout/orders/ORDER-1"},
				{Rel: "approve", Href: "https://sandbox.paypal.com/checkoutnow?token=ORDER-1"},
			},
		},
	}
	svc, st := newTestPaymentService(t, client)
	seedAccount(t, st, "buyer-key")

	result, err := svc.CreateOrder(context.Background(), "buyer-key", "http://localhost:8080")
	if err != nil {
		t.Fatalf("CreateOrder returned error: %v", err)
	}
	if result.OrderID != "ORDER-1" {
		t.Errorf("OrderID = %q, want ORDER-1", result.OrderID)
	}
	if result.ApprovalURL != "https://sandbox.paypal.com/checkoutnow?token=ORDER-1" {
		t.Errorf("ApprovalURL = %q, want the approve link", result.ApprovalURL)
	}
}

func TestCreateOrderUnknownKey(t *testing.T) {
	svc, _ := newTestPaymentService(t, &scriptedClient{})

	_, err := svc.CreateOrder(context.Background(), "no-such-key", "http://localhost:8080")
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodeUnauthorized {
		t.Fatalf("Expected UNAUTHORIZED, got %v", err)
	}
}

func TestCreateOrderProviderDown(t *testing.T) {
	client := &scriptedClient{createErr: stderrors.New("connection refused")}
	svc, st := newTestPaymentService(t, client)
	seedAccount(t, st, "buyer-key")

	_, err := svc.CreateOrder(context.Background(), "buyer-key", "http://localhost:8080")
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodeProviderUnavailable {
		t.Fatalf("Expected PROVIDER_UNAVAILABLE, got %v", err)
	}
}

func TestCaptureOrderGrantsPremium(t *testing.T) {
	svc, st := newTestPaymentService(t, &scriptedClient{})
	acctID := seedAccount(t, st, "buyer-key")
	client := &scriptedClient{capture: completedCapture("ORDER-1", acctID)}
	svc.client = client

	before := time.Now()
	outcome, err := svc.CaptureOrder(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("CaptureOrder returned error: %v", err)
	}
	if outcome.AlreadyCaptured {
		t.Error("First capture must not report AlreadyCaptured")
	}

	var acct account.Account
	if err := st.Collection(store.Accounts).FindOne(context.Background(), store.Where("_id", acctID), &acct); err != nil {
		t.Fatalf("Account lookup failed: %v", err)
	}
	if !acct.IsPremium {
		t.Fatal("Buyer must be premium after capture")
	}
	if acct.PremiumUntil == nil {
		t.Fatal("PremiumUntil must be set after capture")
	}
	want := before.Add(30 * 24 * time.Hour)
	if diff := acct.PremiumUntil.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("PremiumUntil = %v, want about %v", acct.PremiumUntil, want)
	}

	if got := st.CountAll(store.Payments); got != 1 {
		t.Errorf("Expected exactly 1 payment record, got %d", got)
	}
	var record Record
	if err := st.Collection(store.Payments).FindOne(context.Background(), store.Where("paypal_order_id", "ORDER-1"), &record); err != nil {
		t.Fatalf("Payment record lookup failed: %v", err)
	}
	if record.AccountID != acctID {
		t.Errorf("Record.AccountID = %q, want %q", record.AccountID, acctID)
	}
	if record.Amount != 4.99 {
		t.Errorf("Record.Amount = %v, want 4.99", record.Amount)
	}
	if record.Status != StatusCompleted {
		t.Errorf("Record.Status = %q, want %q", record.Status, StatusCompleted)
	}
}

func TestCaptureOrderReplayIsIdempotent(t *testing.T) {
	svc, st := newTestPaymentService(t, &scriptedClient{})
	acctID := seedAccount(t, st, "buyer-key")
	client := &scriptedClient{capture: completedCapture("ORDER-1", acctID)}
	svc.client = client

	if _, err := svc.CaptureOrder(context.Background(), "ORDER-1"); err != nil {
		t.Fatalf("First capture returned error: %v", err)
	}

	outcome, err := svc.CaptureOrder(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("Replay returned error: %v", err)
	}
	if !outcome.AlreadyCaptured {
		t.Error("Replay must report AlreadyCaptured")
	}
	if client.captures != 1 {
		t.Errorf("Provider capture called %d times, want 1", client.captures)
	}
	if got := st.CountAll(store.Payments); got != 1 {
		t.Errorf("Expected exactly 1 payment record after replay, got %d", got)
	}
}

func TestCaptureOrderEmptyID(t *testing.T) {
	svc, _ := newTestPaymentService(t, &scriptedClient{})

	_, err := svc.CaptureOrder(context.Background(), "")
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodeBadRequest {
		t.Fatalf("Expected BAD_REQUEST, got %v", err)
	}
}

func TestCaptureOrderProviderDown(t *testing.T) {
	client := &scriptedClient{captureErr: stderrors.New("timeout")}
	svc, _ := newTestPaymentService(t, client)

	_, err := svc.CaptureOrder(context.Background(), "ORDER-1")
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodeProviderUnavailable {
		t.Fatalf("Expected PROVIDER_UNAVAILABLE, got %v", err)
	}
}

func TestCaptureOrderNotCompleted(t *testing.T) {
	client := &scriptedClient{capture: &CaptureResult{ID: "ORDER-1", Status: "PENDING"}}
	svc, _ := newTestPaymentService(t, client)

	_, err := svc.CaptureOrder(context.Background(), "ORDER-1")
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodePaymentNotCompleted {
		t.Fatalf("Expected PAYMENT_NOT_COMPLETED, got %v", err)
	}
}

func TestCaptureOrderMalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		capture *CaptureResult
	}{
		{
			"no purchase units",
			&CaptureResult{ID: "ORDER-1", Status: "COMPLETED"},
		},
		{
			"no captures",
			&CaptureResult{
				ID:            "ORDER-1",
				Status:        "COMPLETED",
				PurchaseUnits: []PurchaseUnit{{Payments: &Payments{}}},
			},
		},
		{
			"missing custom id",
			&CaptureResult{
				ID:     "ORDER-1",
				Status: "COMPLETED",
				PurchaseUnits: []PurchaseUnit{
					{Payments: &Payments{Captures: []CaptureRecord{{ID: "CAP-1", Status: "COMPLETED"}}}},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st := newTestPaymentService(t, &scriptedClient{capture: tt.capture})
			acctID := seedAccount(t, st, "buyer-key")

			_, err := svc.CaptureOrder(context.Background(), "ORDER-1")
			appErr, ok := errors.As(err)
			if !ok || appErr.Code != errors.ErrCodeMalformedProviderRes {
				t.Fatalf("Expected MALFORMED_PROVIDER_RESPONSE, got %v", err)
			}

			// Nothing was granted and nothing was recorded
			var acct account.Account
			if err := st.Collection(store.Accounts).FindOne(context.Background(), store.Where("_id", acctID), &acct); err != nil {
				t.Fatalf("Account lookup failed: %v", err)
			}
			if acct.IsPremium {
				t.Error("Malformed capture must not grant premium")
			}
			if got := st.CountAll(store.Payments); got != 0 {
				t.Errorf("Malformed capture must not be recorded, got %d records", got)
			}
		})
	}
}

func TestCapturedAmount(t *testing.T) {
	tests := []struct {
		name   string
		record CaptureRecord
		want   float64
	}{
		{"normal", CaptureRecord{Amount: &Amount{Value: "4.99"}}, 4.99},
		{"missing amount", CaptureRecord{}, 0},
		{"unparseable value", CaptureRecord{Amount: &Amount{Value: "four"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := capturedAmount(tt.record); got != tt.want {
				t.Errorf("capturedAmount = %v, want %v", got, tt.want)
			}
		})
	}
}
