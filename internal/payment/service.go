package payment

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/otakudescriptor/api/internal/account"
	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/entitlement"
	"github.com/otakudescriptor/api/internal/pkg/errors"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/metrics"
	"github.com/otakudescriptor/api/internal/store"
)

// Service reconciles provider order results with the entitlement ledger,
// at most once per order.
type Service struct {
	store   store.Store
	client  Client
	ledger  *entitlement.Ledger
	premium config.PremiumConfig
	log     *logger.Logger
	now     func() time.Time
}

// NewService creates a payment service
func NewService(st store.Store, client Client, ledger *entitlement.Ledger, premium config.PremiumConfig, log *logger.Logger) *Service {
	return &Service{
		store:   st,
		client:  client,
		ledger:  ledger,
		premium: premium,
		log:     log,
		now:     time.Now,
	}
}

// OrderResult is returned when an order has been created
type OrderResult struct {
	OrderID     string `json:"order_id"`
	ApprovalURL string `json:"approval_url"`
}

// CreateOrder builds a provider order for the premium purchase. The account
// id rides along as the order's correlation id so the capture step can
// resolve the buyer without a server-side session.
func (s *Service) CreateOrder(ctx context.Context, apiKey, baseURL string) (*OrderResult, error) {
	var acct account.Account
	err := s.store.Collection(store.Accounts).FindOne(ctx, store.Where("api_key", apiKey), &acct)
	if stderrors.Is(err, store.ErrNoDocuments) {
		return nil, errors.Unauthorized("Invalid API key")
	}
	if err != nil {
		return nil, errors.Internal("Failed to look up account", err)
	}

	order, err := s.client.CreateOrder(ctx, s.premium.Price, s.premium.Currency, acct.ID, baseURL)
	if err != nil {
		s.log.ErrorWithErr(err, "Order creation failed")
		return nil, errors.ProviderUnavailable("Error creating PayPal order", err)
	}

	s.log.WithFields(map[string]interface{}{"account_id": acct.ID, "order_id": order.ID}).
		Info("Payment order created")
	return &OrderResult{OrderID: order.ID, ApprovalURL: order.ApprovalURL()}, nil
}

// CaptureOutcome reports what a capture call did
type CaptureOutcome struct {
	// AlreadyCaptured is true when the order had been reconciled before
	// and this call changed nothing
	AlreadyCaptured bool
}

// CaptureOrder captures a provider order and applies its premium grant.
// Replaying an order id is harmless: a payment record already present for
// it short-circuits before the ledger is touched.
func (s *Service) CaptureOrder(ctx context.Context, orderID string) (*CaptureOutcome, error) {
	if orderID == "" {
		return nil, errors.BadRequest("Order ID required")
	}

	payments := s.store.Collection(store.Payments)

	var existing Record
	err := payments.FindOne(ctx, store.Where("paypal_order_id", orderID), &existing)
	if err == nil {
		s.log.WithFields(map[string]interface{}{"order_id": orderID}).
			Info("Order already captured, skipping")
		metrics.RecordCapture("replayed")
		return &CaptureOutcome{AlreadyCaptured: true}, nil
	}
	if !stderrors.Is(err, store.ErrNoDocuments) {
		return nil, errors.Internal("Failed to look up payment record", err)
	}

	capture, err := s.client.CaptureOrder(ctx, orderID)
	if err != nil {
		s.log.ErrorWithErr(err, "Capture call failed")
		metrics.RecordCapture("failed")
		return nil, errors.ProviderUnavailable("PayPal capture failed - no response", err)
	}

	if capture.Status != "COMPLETED" {
		status := capture.Status
		if status == "" {
			status = "UNKNOWN"
		}
		metrics.RecordCapture("failed")
		return nil, errors.PaymentNotCompleted(status)
	}

	// The correlation id lives deep inside the provider response; validate
	// every hop so a shape change surfaces as a distinct error instead of
	// an opaque crash
	if len(capture.PurchaseUnits) == 0 {
		metrics.RecordCapture("failed")
		return nil, errors.MalformedProviderResponse("Invalid PayPal response - no purchase units")
	}
	payments0 := capture.PurchaseUnits[0].Payments
	if payments0 == nil || len(payments0.Captures) == 0 {
		metrics.RecordCapture("failed")
		return nil, errors.MalformedProviderResponse("Invalid PayPal response - no captures")
	}
	captured := payments0.Captures[0]
	if captured.CustomID == "" {
		metrics.RecordCapture("failed")
		return nil, errors.MalformedProviderResponse("Invalid PayPal response - user ID not found in payment")
	}

	if err := s.ledger.GrantPremium(ctx, captured.CustomID, s.premium.Days); err != nil {
		metrics.RecordCapture("failed")
		return nil, err
	}

	record := Record{
		ID:            uuid.NewString(),
		AccountID:     captured.CustomID,
		PayPalOrderID: orderID,
		Amount:        capturedAmount(captured),
		Status:        StatusCompleted,
		CreatedAt:     s.now(),
	}
	if _, err := payments.InsertOne(ctx, record); err != nil {
		if stderrors.Is(err, store.ErrDuplicateKey) {
			// Concurrent replay raced us past the lookup above; the unique
			// index on the order id kept the log to one record
			metrics.RecordCapture("replayed")
			return &CaptureOutcome{AlreadyCaptured: true}, nil
		}
		return nil, errors.Internal("Failed to record payment", err)
	}

	metrics.RecordCapture("completed")
	s.log.WithFields(map[string]interface{}{
		"order_id":   orderID,
		"account_id": captured.CustomID,
		"amount":     record.Amount,
	}).Info("Payment captured, premium activated")
	return &CaptureOutcome{}, nil
}

func capturedAmount(c CaptureRecord) float64 {
	if c.Amount == nil {
		return 0
	}
	v, err := strconv.ParseFloat(c.Amount.Value, 64)
	if err != nil {
		return 0
	}
	return v
}
