package api

import (
	"net/http"

	"go.uber.org/zap"
)

// HandleFilter handles GET requests filtering users by attribute, one page
// at a time. The next_cursor of a response resumes the same query.
func (h *Handler) HandleFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req, err := parsePaging(q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Filters, err = parseFilters(h.registry, q); err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.filterer.FilterRecords(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log(r).Info("filter served",
		zap.Int("filters", len(req.Filters)),
		zap.Int("count", page.Count),
		zap.Bool("more", page.NextCursor != ""),
	)
	writeJSON(w, http.StatusOK, page)
}
