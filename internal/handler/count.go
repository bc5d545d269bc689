package handler

import (
	"net/http"

	"MQueryAPI/internal/qparser"
)

type CountResponse struct {
	Count int64 `json:"count"`
}

// CountHandler counts the documents of a collection matching the query's
// filter; sort, select and paging directives are ignored.
func (h *Handler) CountHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/count"
	req, ok := h.decodeQueryRequest(w, r, endpoint)
	if !ok {
		return
	}

	q, err := h.buildQuery(r, qparser.ParseQuery(req.Query), req.Filter)
	if err != nil {
		writeError(w, endpoint, err)
		return
	}

	count, err := h.store.Count(r.Context(), req.Collection, q)
	if err != nil {
		writeError(w, endpoint, err)
		return
	}
	writeJSON(w, endpoint, http.StatusOK, CountResponse{Count: count})
}
