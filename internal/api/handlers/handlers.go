package handlers

import (
	"net/http"

	"github.com/otakudescriptor/api/internal/pkg/errors"
	"github.com/otakudescriptor/api/internal/pkg/logger"
	"github.com/otakudescriptor/api/internal/pkg/utils"
)

// writeServiceError maps a service error to its HTTP response. Anything
// that is not an AppError becomes a generic 500 without leaking internals.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	if appErr, ok := errors.As(err); ok {
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.ErrorWithErr(appErr, "Request failed")
		}
		utils.WriteError(w, appErr)
		return
	}
	log.ErrorWithErr(err, "Unexpected error")
	utils.WriteError(w, errors.Internal("Internal server error", err))
}

// requestBaseURL reconstructs the externally visible origin of a request so
// emailed links and provider redirects point back at the right host
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
