package api

import (
	"encoding/json"
	"net/http"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"go.uber.org/zap"
)

// HandleInsert handles POST requests creating a user. An id is assigned
// when the body carries none; a taken id or email is a conflict.
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	var rec domain.Record
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		h.log(r).Info("decoding body failed", zap.Error(err))
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := rec.ValidateNew(); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if rec.ID == 0 {
		id, err := h.records.NextID(ctx)
		if err != nil {
			h.writeError(w, r, domain.UpstreamUnavailable(err))
			return
		}
		rec.ID = id
	}

	if err := h.records.Create(ctx, rec); err != nil {
		h.log(r).Info("user not created", zap.Int64("id", rec.ID), zap.Error(err))
		h.writeError(w, r, storeError(err))
		return
	}

	h.log(r).Info("user created", zap.Int64("id", rec.ID))
	writeJSON(w, http.StatusCreated, rec)
}
