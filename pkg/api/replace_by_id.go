package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleReplaceById handles PUT requests to completely replace a user by id.
// The user must exist; attributes missing from the body are dropped.
func (h *Handler) HandleReplaceById(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	if rec.ID != 0 && rec.ID != id {
		WriteJSONError(w, http.StatusBadRequest, "body id does not match path id")
		return
	}
	rec.ID = id
	if err := rec.ValidateNew(); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.replace(w, r, id, func(current *domain.Record) { *current = rec })
}

// HandleUpdateById handles PATCH requests updating the given attributes of
// a user. Attributes absent from the body keep their value.
func (h *Handler) HandleUpdateById(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var patch domain.Record
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	if patch.ID != 0 && patch.ID != id {
		WriteJSONError(w, http.StatusBadRequest, "body id does not match path id")
		return
	}

	h.replace(w, r, id, func(current *domain.Record) { current.Merge(patch) })
}

// replace loads the user, applies mutate and writes the result if it is
// still a valid user.
func (h *Handler) replace(w http.ResponseWriter, r *http.Request, id int64, mutate func(*domain.Record)) {
	ctx := r.Context()
	current, err := h.records.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			err = domain.UpstreamUnavailable(err)
		}
		h.writeError(w, r, err)
		return
	}

	mutate(&current)
	current.ID = id
	if err := current.ValidateNew(); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.records.Put(ctx, current); err != nil {
		h.writeError(w, r, storeError(err))
		return
	}
	h.log(r).Info("user updated", zap.Int64("id", id))
	writeJSON(w, http.StatusOK, current)
}
