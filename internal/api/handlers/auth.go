package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/otakudescriptor/api/internal/account"
	"github.com/otakudescriptor/api/internal/api/dto"
	"github.com/otakudescriptor/api/internal/entitlement"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/utils"
	"github.com/otakudescriptor/api/internal/pkg/validator"
	"github.com/otakudescriptor/api/internal/ratelimit"

	apperrors "github.com/otakudescriptor/api/internal/pkg/errors"
)

// AuthHandler handles registration, login and status requests
type AuthHandler struct {
	accounts  *account.Service
	ledger    *entitlement.Ledger
	quota     *ratelimit.Accountant
	logger    *logger.Logger
	validator *validator.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	accounts *account.Service,
	ledger *entitlement.Ledger,
	quota *ratelimit.Accountant,
	log *logger.Logger,
	val *validator.Validator,
) *AuthHandler {
	return &AuthHandler{
		accounts:  accounts,
		ledger:    ledger,
		quota:     quota,
		logger:    log,
		validator: val,
	}
}

// Register handles the combined signup endpoint. An empty body or a body
// without an email creates an anonymous account and returns its key; a body
// with an email triggers the magic-link flow.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, apperrors.BadRequest("Invalid request body"))
		return
	}

	if validationErrs := h.validator.Validate(req); len(validationErrs) > 0 {
		utils.WriteError(w, apperrors.ValidationError("Validation failed", validationErrs))
		return
	}

	result, err := h.accounts.Register(r.Context(), req.Email, requestBaseURL(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if result.CheckEmail {
		utils.WriteSuccessWithMessage(w, http.StatusOK,
			"Login link sent. Please check your email.",
			dto.MagicLinkResponse{RequireEmailCheck: true})
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, dto.AnonymousRegisterResponse{
		APIKey:    result.APIKey,
		IsPremium: result.IsPremium,
	})
}

// RegisterPassword starts a staged password registration. The account is
// only created once the emailed verification link is followed.
func (h *AuthHandler) RegisterPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperrors.BadRequest("Invalid request body"))
		return
	}

	if validationErrs := h.validator.Validate(req); len(validationErrs) > 0 {
		utils.WriteError(w, apperrors.ValidationError("Validation failed", validationErrs))
		return
	}

	alreadySent, err := h.accounts.RegisterPassword(r.Context(), req.Email, req.Password, requestBaseURL(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	message := "Verification email sent. Please check your inbox."
	if alreadySent {
		message = "Verification email resent. Please check your inbox."
	}
	utils.WriteSuccessWithMessage(w, http.StatusCreated, message,
		dto.RegisterPasswordResponse{RequireEmailVerification: true})
}

// LoginPassword handles password login
func (h *AuthHandler) LoginPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, apperrors.BadRequest("Invalid request body"))
		return
	}

	if validationErrs := h.validator.Validate(req); len(validationErrs) > 0 {
		utils.WriteError(w, apperrors.ValidationError("Validation failed", validationErrs))
		return
	}

	result, err := h.accounts.LoginPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.WithFields(map[string]interface{}{
			"email": req.Email,
		}).Warn("Login failed")
		writeServiceError(w, h.logger, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.LoginResponse{
		APIKey:    result.APIKey,
		IsPremium: result.IsPremium,
	})
}

// VerifyEmail consumes a verification token from the emailed link and
// finalizes the pending registration. On success the browser is sent back
// to the frontend with the fresh API key in the query string.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		utils.WriteError(w, apperrors.BadRequest("Verification token is required"))
		return
	}

	apiKey, err := h.accounts.VerifyEmail(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	redirect := "/?api_key=" + url.QueryEscape(apiKey) + "&verified=true"
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Status returns the entitlement and hourly quota for the account behind
// the X-API-Key header
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		utils.WriteError(w, apperrors.Unauthorized("API key is required"))
		return
	}

	status, err := h.ledger.CheckStatus(r.Context(), apiKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, dto.StatusResponse{
		IsPremium:      status.IsPremium,
		PremiumUntil:   status.PremiumUntil,
		HourlySearches: status.HourlySearches,
		HourlyLimit:    status.HourlyLimit,
		Remaining:      status.Remaining,
	})
}

// AnonymousStatus returns the hourly quota for an unauthenticated client,
// identified by a fingerprint of its address and user agent
func (h *AuthHandler) AnonymousStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := ratelimit.Fingerprint(r.RemoteAddr, r.UserAgent())

	count, err := h.quota.CountAnonymous(r.Context(), sessionID, ratelimit.DefaultWindow)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	snapshot := ratelimit.SnapshotFor(count, h.quota.Limits().AnonymousHourly)
	utils.WriteSuccess(w, http.StatusOK, dto.AnonymousStatusResponse{
		IsAnonymous:    true,
		HourlySearches: snapshot.HourlySearches,
		HourlyLimit:    snapshot.HourlyLimit,
		Remaining:      snapshot.Remaining,
	})
}
