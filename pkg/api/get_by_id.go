package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HandleGetById handles GET requests to retrieve a single user by id
func (h *Handler) HandleGetById(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	rec, err := h.records.Get(r.Context(), id)
	if err != nil {
		h.log(r).Info("user lookup failed", zap.Int64("id", id), zap.Error(err))
		if !errors.Is(err, storage.ErrNotFound) {
			err = domain.UpstreamUnavailable(err)
		}
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
