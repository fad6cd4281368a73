package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/doowops/internal/shared"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error          string `json:"error"`
	Reauthenticate bool   `json:"reauthenticate,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err onto a status code and writes the {error} body.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status, reauth := statusFor(err)
	writeStatus(w, logger, status, reauth, err)
}

// writeCatalogError writes a sampler failure. Only malformed input stays a 4xx; a missing, forbidden or empty
// playlist is the provider's answer and surfaces as 502.
func writeCatalogError(w http.ResponseWriter, logger *log.Logger, err error) {
	status, reauth := statusFor(err)
	if status < http.StatusInternalServerError && status != http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	writeStatus(w, logger, status, reauth, err)
}

func writeStatus(w http.ResponseWriter, logger *log.Logger, status int, reauth bool, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "err", err)
	} else {
		logger.Debug("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Reauthenticate: reauth})
}

// statusFor returns the HTTP status for err and whether the client must sign in again.
func statusFor(err error) (int, bool) {
	switch {
	case errors.Is(err, shared.ErrInvalidIntent):
		return http.StatusConflict, false
	case errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, false
	case errors.Is(err, shared.ErrNoSession),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, shared.ErrNoCandidates):
		return http.StatusUnprocessableEntity, false
	case errors.Is(err, shared.ErrAuthExpired),
		errors.Is(err, shared.ErrUnauthenticated),
		errors.Is(err, shared.ErrUnauthorized),
		errors.Is(err, shared.ErrRefreshFailed),
		errors.Is(err, shared.ErrNoRefreshToken):
		return http.StatusInternalServerError, true
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, false
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		return http.StatusBadGateway, false
	case errors.Is(err, shared.ErrDeviceNotReady):
		return http.StatusServiceUnavailable, false
	default:
		return http.StatusInternalServerError, false
	}
}

// decodeJSON reads a JSON request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
