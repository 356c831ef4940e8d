package api

import (
	"net/http"

	"github.com/adfharrison1/go-crm/pkg/domain"
)

// HandleFindAll handles GET requests listing every user, paged. Only the
// paging and sort parameters are accepted.
func (h *Handler) HandleFindAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	for _, key := range sortedParams(q) {
		switch key {
		case paramLimit, paramCursor, paramSortBy, paramSortOrder:
		default:
			h.writeError(w, r, domain.ErrUnfilterableField.With("use /users/filter to filter on %q", key))
			return
		}
	}

	req, err := parsePaging(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.filterer.FilterRecords(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
