package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/otakudescriptor/api/internal/account"
	"github.com/otakudescriptor/api/internal/api/dto"
	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/entitlement"
	"github.com/otakudescriptor/api/internal/payment"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/validator"
	"github.com/otakudescriptor/api/internal/ratelimit"
	"github.com/otakudescriptor/api/internal/store"
	"github.com/otakudescriptor/api/internal/store/memory"
	"github.com/otakudescriptor/api/internal/testutil"
)

func newPaymentEnv(t *testing.T) (*PaymentHandler, *memory.Store, *testutil.FakePayPalClient) {
	t.Helper()
	st := memory.New()
	client := testutil.NewFakePayPalClient()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	val := validator.New()

	limits := config.LimitsConfig{FreeHourly: 20, PremiumHourly: 200, AnonymousHourly: 10}
	premium := config.PremiumConfig{Price: 4.99, Currency: "EUR", Days: 30}
	ledger := entitlement.New(st, ratelimit.New(st, limits), log)
	payments := payment.NewService(st, client, ledger, premium, log)

	return NewPaymentHandler(payments, log, val), st, client
}

func seedBuyer(t *testing.T, st *memory.Store, apiKey string) string {
	t.Helper()
	acct := account.Account{ID: uuid.NewString(), APIKey: apiKey, CreatedAt: time.Now()}
	if _, err := st.Collection(store.Accounts).InsertOne(context.Background(), acct); err != nil {
		t.Fatalf("Seeding account failed: %v", err)
	}
	return acct.ID
}

func TestCreateOrderEndpoint(t *testing.T) {
	h, st, client := newPaymentEnv(t)
	seedBuyer(t, st, "buyer-key")

	rec := postJSON(t, h.CreateOrder, "/api/payment/create-order",
		dto.CreateOrderRequest{APIKey: "buyer-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var resp dto.CreateOrderResponse
	decodeSuccess(t, rec, &resp)
	if resp.OrderID != client.NextOrderID {
		t.Errorf("OrderID = %q, want %q", resp.OrderID, client.NextOrderID)
	}
	if resp.ApprovalURL != client.ApprovalURL {
		t.Errorf("ApprovalURL = %q, want %q", resp.ApprovalURL, client.ApprovalURL)
	}
}

func TestCreateOrderEndpointRejectsMissingKey(t *testing.T) {
	h, _, _ := newPaymentEnv(t)

	rec := postJSON(t, h.CreateOrder, "/api/payment/create-order", dto.CreateOrderRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
}

func TestCaptureOrderEndpoint(t *testing.T) {
	h, st, client := newPaymentEnv(t)
	acctID := seedBuyer(t, st, "buyer-key")
	client.Orders["ORDER-1"] = testutil.CompletedCapture("ORDER-1", acctID, "4.99")

	rec := postJSON(t, h.CaptureOrder, "/api/payment/capture-order",
		dto.CaptureOrderRequest{OrderID: "ORDER-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var acct account.Account
	if err := st.Collection(store.Accounts).FindOne(context.Background(), store.Where("_id", acctID), &acct); err != nil {
		t.Fatalf("Account lookup failed: %v", err)
	}
	if !acct.IsPremium {
		t.Error("Buyer must be premium after capture")
	}

	// Replaying is a success, not an error
	replay := postJSON(t, h.CaptureOrder, "/api/payment/capture-order",
		dto.CaptureOrderRequest{OrderID: "ORDER-1"})
	if replay.Code != http.StatusOK {
		t.Fatalf("Replay status = %d, want 200; body %s", replay.Code, replay.Body.String())
	}
	if got := st.CountAll(store.Payments); got != 1 {
		t.Errorf("Expected 1 payment record after replay, got %d", got)
	}
}

func TestCaptureOrderEndpointProviderFailure(t *testing.T) {
	h, _, _ := newPaymentEnv(t)
	// Unknown order id makes the fake client fail the capture call

	rec := postJSON(t, h.CaptureOrder, "/api/payment/capture-order",
		dto.CaptureOrderRequest{OrderID: "NO-SUCH-ORDER"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Status = %d, want 502; body %s", rec.Code, rec.Body.String())
	}
	if envelope := decodeError(t, rec); envelope.Error.Code != "PROVIDER_UNAVAILABLE" {
		t.Errorf("Error code = %q, want PROVIDER_UNAVAILABLE", envelope.Error.Code)
	}
}
