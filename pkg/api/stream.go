package api

import (
	"encoding/json"
	"net/http"

	"github.com/adfharrison1/go-crm/pkg/query"
	"go.uber.org/zap"
)

// HandleFilterStream handles GET requests streaming every user matching the
// filter as one JSON array. Pages are fetched from the engine with the
// largest allowed limit and flushed as they arrive; limit is ignored.
func (h *Handler) HandleFilterStream(w http.ResponseWriter, r *http.Request) {
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
	req.Limit = query.MaxLimit

	ctx := r.Context()
	// The first page is fetched before any byte is written so request
	// errors still get a proper status.
	page, err := h.filterer.FilterRecords(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	w.Write([]byte("[\n"))
	count := 0
	for {
		for _, rec := range page.Items {
			if count > 0 {
				w.Write([]byte(",\n"))
			}
			docJSON, err := json.Marshal(rec)
			if err != nil {
				h.log(r).Error("failed to marshal user", zap.Int64("id", rec.ID), zap.Error(err))
				return
			}
			if _, err := w.Write(docJSON); err != nil {
				h.log(r).Info("client went away", zap.Error(err))
				return
			}
			count++
		}
		if flusher != nil {
			flusher.Flush()
		}

		if page.NextCursor == "" {
			break
		}
		req.Cursor = page.NextCursor
		if page, err = h.filterer.FilterRecords(ctx, req); err != nil {
			// Headers are gone; the truncated array tells the client.
			h.log(r).Error("stream aborted", zap.Int("streamed", count), zap.Error(err))
			return
		}
	}
	w.Write([]byte("\n]"))

	h.log(r).Info("stream served", zap.Int("count", count))
}
