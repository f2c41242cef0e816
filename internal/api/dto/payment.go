package dto

// CreateOrderRequest starts a premium purchase for the given credential
type CreateOrderRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

// CreateOrderResponse returns the provider order and its approval link
type CreateOrderResponse struct {
	OrderID     string `json:"order_id"`
	ApprovalURL string `json:"approval_url"`
}

// CaptureOrderRequest reconciles an approved provider order
type CaptureOrderRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}
