package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"go.uber.org/zap"
)

// ErrorResponse represents a standard JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// WriteJSONError writes a JSON error response with the given status code and message
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	json.NewEncoder(w).Encode(response)
}

// writeError maps err onto a status code. Invalid arguments are reported
// verbatim; upstream and internal failures get a generic message and are
// logged with detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		WriteJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if isConflict(err) {
		WriteJSONError(w, http.StatusConflict, err.Error())
		return
	}

	var derr *domain.Error
	if !errors.As(err, &derr) {
		h.log(r).Error("request failed", zap.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch derr.Kind {
	case domain.KindInvalidArgument:
		WriteJSONError(w, http.StatusBadRequest, derr.Error())
	case domain.KindUpstreamUnavailable:
		h.log(r).Error("upstream unavailable", zap.Error(err))
		WriteJSONError(w, http.StatusServiceUnavailable, derr.Message)
	default:
		h.log(r).Error("internal error", zap.Error(err))
		WriteJSONError(w, http.StatusInternalServerError, derr.Message)
	}
}

// isConflict reports whether a store write was refused because it clashes
// with an existing user.
func isConflict(err error) bool {
	return errors.Is(err, storage.ErrAlreadyExists) || errors.Is(err, storage.ErrDuplicateEmail)
}

// storeError classifies a failed store write.
func storeError(err error) error {
	if isConflict(err) {
		return err
	}
	return domain.UpstreamUnavailable(err)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
