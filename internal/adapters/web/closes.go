package web

import (
	"net/http"

	"backbar/internal/core"
)

type closeDayRequest struct {
	Items []struct {
		ProductID    int `json:"product_id"`
		ClosingStock int `json:"closing_stock"`
	} `json:"items"`
	Actor string `json:"actor"`
}

type closeAdjustmentRequest struct {
	NewClosingStock int    `json:"new_closing_stock"`
	Reason          string `json:"reason"`
	Actor           string `json:"actor"`
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	var req closeDayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]core.CloseItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, core.CloseItem{
			ProductID:    item.ProductID,
			ClosingStock: item.ClosingStock,
		})
	}
	result, err := h.svc.Closes.CloseDay(r.Context(), items, req.Actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) getClose(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dc, err := h.svc.Closes.GetDailyClose(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dc)
}

func (h *Handler) listCloses(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	closes, err := h.svc.Closes.ListClosesByDate(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, closes)
}

func (h *Handler) adjustClose(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req closeAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	adj, err := h.svc.Closes.AdjustClose(r.Context(), id, req.NewClosingStock, req.Reason, req.Actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, adj)
}

func (h *Handler) listCloseAdjustments(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	adjs, err := h.svc.Closes.ListAdjustments(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adjs)
}
