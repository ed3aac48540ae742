package web

import (
	"net/http"
	"strconv"
)

type conversionRequest struct {
	TotProductName string `json:"tot_product_name"`
	Actor          string `json:"actor"`
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	var req conversionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	hist, err := h.svc.Conversions.Convert(r.Context(), req.TotProductName, req.Actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, hist)
}

// undoConversion restores both products to their pre-conversion stock and
// removes the history row.
func (h *Handler) undoConversion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hist, err := h.svc.Conversions.UndoConversion(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *Handler) listConversions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeRawError(w, r, "invalid limit", "VALIDATION", http.StatusBadRequest)
			return
		}
		limit = n
	}
	history, err := h.svc.Conversions.ListHistory(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
