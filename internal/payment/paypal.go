package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/otakudescriptor/api/internal/config"
	"github.com/otakudescriptor/api/internal/pkg/logger"
)

// Order is the provider's view of a created order
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// Link is a HATEOAS link in a provider response
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// ApprovalURL returns the link the payer must visit to approve the order
func (o *Order) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

// CaptureResult is the provider's capture response. The nested shape is
// dictated by the provider and validated hop by hop by the service.
type CaptureResult struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// PurchaseUnit is one unit of a captured order
type PurchaseUnit struct {
	Payments *Payments `json:"payments"`
}

// Payments groups the capture records of a purchase unit
type Payments struct {
	Captures []CaptureRecord `json:"captures"`
}

// CaptureRecord is one capture inside a purchase unit
type CaptureRecord struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	CustomID string  `json:"custom_id"`
	Amount   *Amount `json:"amount"`
}

// Amount is a provider money value
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// Client talks to the payment provider
type Client interface {
	// CreateOrder builds an order carrying customID as the correlation
	// identifier echoed back at capture time
	CreateOrder(ctx context.Context, amount float64, currency, customID, baseURL string) (*Order, error)

	// CaptureOrder captures an approved order
	CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error)
}

// compile-time interface check
var _ Client = (*PayPalClient)(nil)

// PayPalClient implements Client against the PayPal Orders v2 API
type PayPalClient struct {
	cfg  config.PayPalConfig
	http *http.Client
	log  *logger.Logger
}

// NewPayPalClient creates a provider client with a bounded request timeout
func NewPayPalClient(cfg config.PayPalConfig, log *logger.Logger) *PayPalClient {
	return &PayPalClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// CreateOrder builds an order for the premium purchase
func (c *PayPalClient) CreateOrder(ctx context.Context, amount float64, currency, customID, baseURL string) (*Order, error) {
	accessToken, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(baseURL, "/")
	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"custom_id": customID,
				"amount": map[string]string{
					"currency_code": currency,
					"value":         fmt.Sprintf("%.2f", amount),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": base + "/?payment=success",
			"cancel_url": base + "/?payment=cancelled",
		},
	}

	var order Order
	if err := c.post(ctx, "/v2/checkout/orders", accessToken, payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CaptureOrder captures an approved order
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	accessToken, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	var result CaptureResult
	if err := c.post(ctx, path, accessToken, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// accessToken fetches an OAuth2 token with the client-credentials grant
func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", body)
	if err != nil {
		return "", fmt.Errorf("paypal: build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal: token request returned %d", resp.StatusCode)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("paypal: decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("paypal: empty access token")
	}
	return parsed.AccessToken, nil
}

func (c *PayPalClient) post(ctx context.Context, path, accessToken string, payload, out interface{}) error {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("paypal: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("paypal: %s returned %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("paypal: decode response: %w", err)
	}
	return nil
}
