package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"go.uber.org/zap"
)

// MaxBatchSize caps the number of users accepted by one batch insert.
const MaxBatchSize = 1000

// BatchInsertRequest represents the request body for batch insert operations
type BatchInsertRequest struct {
	Users []domain.Record `json:"users"`
}

// BatchInsertResponse represents the response for batch insert operations
type BatchInsertResponse struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	InsertedCount int     `json:"inserted_count"`
	IDs           []int64 `json:"ids"`
}

// HandleBatchInsert handles POST requests creating several users. Every
// user is validated, and checked against the rest of the batch, before any
// is written. The writes are not atomic: when one fails the response lists
// the users already created.
func (h *Handler) HandleBatchInsert(w http.ResponseWriter, r *http.Request) {
	var req BatchInsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r).Info("decoding body failed", zap.Error(err))
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Users) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "No users provided")
		return
	}
	if len(req.Users) > MaxBatchSize {
		WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("Maximum %d users allowed per batch", MaxBatchSize))
		return
	}

	seenIDs := make(map[int64]int, len(req.Users))
	seenEmails := make(map[string]int, len(req.Users))
	for i, rec := range req.Users {
		if err := rec.ValidateNew(); err != nil {
			WriteJSONError(w, http.StatusBadRequest, fmt.Sprintf("user %d: %v", i, err))
			return
		}
		if rec.ID != 0 {
			if j, dup := seenIDs[rec.ID]; dup {
				WriteJSONError(w, http.StatusConflict, fmt.Sprintf("user %d: id %d repeats user %d", i, rec.ID, j))
				return
			}
			seenIDs[rec.ID] = i
		}
		email := strings.ToLower(strings.TrimSpace(*rec.Email))
		if j, dup := seenEmails[email]; dup {
			WriteJSONError(w, http.StatusConflict, fmt.Sprintf("user %d: email %s repeats user %d", i, *rec.Email, j))
			return
		}
		seenEmails[email] = i
	}

	ctx := r.Context()
	ids := make([]int64, 0, len(req.Users))
	for i, rec := range req.Users {
		if rec.ID == 0 {
			id, err := h.records.NextID(ctx)
			if err != nil {
				h.writeBatchFailure(w, r, i, ids, domain.UpstreamUnavailable(err))
				return
			}
			rec.ID = id
		}
		if err := h.records.Create(ctx, rec); err != nil {
			h.writeBatchFailure(w, r, i, ids, storeError(err))
			return
		}
		ids = append(ids, rec.ID)
	}

	h.log(r).Info("batch insert successful", zap.Int("count", len(ids)))
	writeJSON(w, http.StatusCreated, BatchInsertResponse{
		Success:       true,
		Message:       "Batch insert completed successfully",
		InsertedCount: len(ids),
		IDs:           ids,
	})
}

// writeBatchFailure reports the user that failed and the ids created before it.
func (h *Handler) writeBatchFailure(w http.ResponseWriter, r *http.Request, index int, ids []int64, err error) {
	status, message := http.StatusServiceUnavailable, "upstream unavailable"
	if isConflict(err) {
		status, message = http.StatusConflict, err.Error()
	}
	h.log(r).Error("batch insert stopped", zap.Int("user", index), zap.Int("written", len(ids)), zap.Error(err))
	writeJSON(w, status, BatchInsertResponse{
		Success:       false,
		Message:       fmt.Sprintf("user %d: %s", index, message),
		InsertedCount: len(ids),
		IDs:           ids,
	})
}
