package handlers

import (
	"net/http"

	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/utils"
	"github.com/otakudescriptor/api/internal/store"

	apperrors "github.com/otakudescriptor/api/internal/pkg/errors"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	store  store.Store
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(st store.Store, log *logger.Logger) *HealthHandler {
	return &HealthHandler{store: st, logger: log}
}

// Healthz reports process liveness
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness by pinging the document store
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.ErrorWithErr(err, "Readiness check failed")
		utils.WriteError(w, apperrors.Internal("Store unavailable", err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
