package web

import (
	"net/http"

	"backbar/internal/core"

	"github.com/shopspring/decimal"
)

type saleRequest struct {
	ProductID int           `json:"product_id"`
	Quantity  int           `json:"quantity"`
	SaleType  core.SaleType `json:"sale_type"`
	DebtorID  *int          `json:"debtor_id,omitempty"`
	Actor     string        `json:"actor"`
}

type saleAdjustmentRequest struct {
	PriceDelta    decimal.Decimal `json:"price_delta"`
	CostDelta     decimal.Decimal `json:"cost_delta"`
	QuantityDelta int             `json:"quantity_delta"`
	Reason        string          `json:"reason"`
	Actor         string          `json:"actor"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sale, err := h.svc.Sales.Sell(r.Context(), core.SellInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		SaleType:  req.SaleType,
		DebtorID:  req.DebtorID,
		Actor:     req.Actor,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sale, err := h.svc.Sales.GetSale(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sales, err := h.svc.Sales.ListSalesByDate(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sales)
}

func (h *Handler) adjustSale(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req saleAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	adj, err := h.svc.Sales.AdjustSale(r.Context(), id, core.SaleAdjustmentInput{
		PriceDelta:    req.PriceDelta,
		CostDelta:     req.CostDelta,
		QuantityDelta: req.QuantityDelta,
		Reason:        req.Reason,
		Actor:         req.Actor,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, adj)
}

func (h *Handler) listSaleAdjustments(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	adjs, err := h.svc.Sales.ListSaleAdjustments(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adjs)
}

func (h *Handler) voidSaleAdjustment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Actor string `json:"actor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Sales.VoidSaleAdjustment(r.Context(), id, req.Actor); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
