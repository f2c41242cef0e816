package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/otakudescriptor/api/internal/api/dto"
	"github.com/otakudescriptor/api/internal/payment"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/utils"
	"github.com/otakudescriptor/api/internal/pkg/validator"

	apperrors "github.com/otakudescriptor/api/internal/pkg/errors"
)

// PaymentHandler handles premium purchase requests
type PaymentHandler struct {
	payments  *payment.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *payment.Service, log *logger.Logger, val *validator.Validator) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		logger:    log,
		validator: val,
	}
}

// CreateOrder creates a provider order for the premium purchase and returns
// the approval URL the client should redirect to
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperrors.BadRequest("Invalid request body"))
		return
	}

	if validationErrs := h.validator.Validate(req); len(validationErrs) > 0 {
		utils.WriteError(w, apperrors.ValidationError("Validation failed", validationErrs))
		return
	}

	result, err := h.payments.CreateOrder(r.Context(), req.APIKey, requestBaseURL(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.CreateOrderResponse{
		OrderID:     result.OrderID,
		ApprovalURL: result.ApprovalURL,
	})
}

// CaptureOrder captures an approved order and grants premium to the buyer
func (h *PaymentHandler) CaptureOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.CaptureOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperrors.BadRequest("Invalid request body"))
		return
	}

	if validationErrs := h.validator.Validate(req); len(validationErrs) > 0 {
		utils.WriteError(w, apperrors.ValidationError("Validation failed", validationErrs))
		return
	}

	outcome, err := h.payments.CaptureOrder(r.Context(), req.OrderID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	message := "Payment completed. Premium activated."
	if outcome.AlreadyCaptured {
		message = "Payment already processed."
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, message, nil)
}
