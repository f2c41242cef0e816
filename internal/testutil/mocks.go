package testutil

import (
	"context"
	"fmt"

	"github.com/otakudescriptor/api/internal/payment"
)

// SentMail records one delivery attempt made through the fake mailer
type SentMail struct {
	Kind  string
	Email string
	Token string
}

// FakeMailer is a Mailer that records deliveries instead of sending them.
// Set the Fail flags to simulate transport failures.
type FakeMailer struct {
	Sent             []SentMail
	FailLogin        bool
	FailVerification bool
	FailReset        bool
}

func NewFakeMailer() *FakeMailer {
	return &FakeMailer{}
}

func (m *FakeMailer) SendLoginLink(email, apiKey, baseURL string) bool {
	if m.FailLogin {
		return false
	}
	m.Sent = append(m.Sent, SentMail{Kind: "login", Email: email, Token: apiKey})
	return true
}

func (m *FakeMailer) SendVerificationLink(email, verificationToken, baseURL string) bool {
	if m.FailVerification {
		return false
	}
	m.Sent = append(m.Sent, SentMail{Kind: "verification", Email: email, Token: verificationToken})
	return true
}

func (m *FakeMailer) SendPasswordReset(email, resetToken, baseURL string) bool {
	if m.FailReset {
		return false
	}
	m.Sent = append(m.Sent, SentMail{Kind: "reset", Email: email, Token: resetToken})
	return true
}

// LastSent returns the most recent delivery, or nil when nothing was sent
func (m *FakeMailer) LastSent() *SentMail {
	if len(m.Sent) == 0 {
		return nil
	}
	return &m.Sent[len(m.Sent)-1]
}

// FakePayPalClient is a payment.Client returning scripted responses
type FakePayPalClient struct {
	Orders         map[string]*payment.CaptureResult
	CreateErr      error
	CaptureErr     error
	CreatedOrders  []string
	CapturedOrders []string
	NextOrderID    string
	ApprovalURL    string
}

func NewFakePayPalClient() *FakePayPalClient {
	return &FakePayPalClient{
		Orders:      make(map[string]*payment.CaptureResult),
		NextOrderID: "ORDER-1",
		ApprovalURL: "https://sandbox.example.com/approve/ORDER-1",
	}
}

func (c *FakePayPalClient) CreateOrder(ctx context.Context, amount float64, currency, customID, baseURL string) (*payment.Order, error) {
	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	c.CreatedOrders = append(c.CreatedOrders, customID)
	return &payment.Order{
		ID:     c.NextOrderID,
		Status: "CREATED",
		Links: []payment.Link{
			{Rel: "approve", Href: c.ApprovalURL},
		},
	}, nil
}

func (c *FakePayPalClient) CaptureOrder(ctx context.Context, orderID string) (*payment.CaptureResult, error) {
	if c.CaptureErr != nil {
		return nil, c.CaptureErr
	}
	c.CapturedOrders = append(c.CapturedOrders, orderID)
	result, ok := c.Orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	return result, nil
}

// CompletedCapture builds a well-formed COMPLETED capture response for an
// order paid by the given account
func CompletedCapture(orderID, accountID, amount string) *payment.CaptureResult {
	return &payment.CaptureResult{
		ID:     orderID,
		Status: "COMPLETED",
		PurchaseUnits: []payment.PurchaseUnit{
			{
				Payments: &payment.Payments{
					Captures: []payment.CaptureRecord{
						{
							ID:       "CAP-" + orderID,
							Status:   "COMPLETED",
							CustomID: accountID,
							Amount:   &payment.Amount{CurrencyCode: "EUR", Value: amount},
						},
					},
				},
			},
		},
	}
}
