package handler

import (
	"net/http"

	"MQueryAPI/internal/qparser"
)

// ParseHandler returns the descriptor for the request's own query string.
func (h *Handler) ParseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET allowed", http.StatusMethodNotAllowed)
		return
	}

	q, err := h.buildQuery(r, qparser.ParseQuery(r.URL.RawQuery), nil)
	if err != nil {
		writeError(w, "/api/parse", err)
		return
	}
	writeJSON(w, "/api/parse", http.StatusOK, q)
}
