package handler

import (
	"net/http"

	"MQueryAPI/internal/qparser"
)

// FindHandler runs a query against a collection and returns the matching documents.
func (h *Handler) FindHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/find"
	req, ok := h.decodeQueryRequest(w, r, endpoint)
	if !ok {
		return
	}

	q, err := h.buildQuery(r, qparser.ParseQuery(req.Query), req.Filter)
	if err != nil {
		writeError(w, endpoint, err)
		return
	}

	result, err := h.store.Find(r.Context(), req.Collection, q)
	if err != nil {
		writeError(w, endpoint, err)
		return
	}
	if result.Cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	writeJSON(w, endpoint, http.StatusOK, result)
}
