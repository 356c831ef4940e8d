package api

import (
	"net/http"

	"github.com/adfharrison1/go-crm/pkg/schema"
)

// IndexesResponse describes what the filter endpoint accepts.
type IndexesResponse struct {
	Indexes          []schema.IndexDescriptor `json:"indexes"`
	IndexCount       int                      `json:"index_count"`
	FilterableFields []string                 `json:"filterable_fields"`
	SortableFields   []string                 `json:"sortable_fields"`
}

// HandleGetIndexes handles GET requests listing the declared indexes and
// the fields that can be filtered or sorted on.
func (h *Handler) HandleGetIndexes(w http.ResponseWriter, r *http.Request) {
	indexes := h.registry.Indexes()
	writeJSON(w, http.StatusOK, IndexesResponse{
		Indexes:          indexes,
		IndexCount:       len(indexes),
		FilterableFields: h.registry.FilterableFields(),
		SortableFields:   h.registry.SortableFields(),
	})
}
