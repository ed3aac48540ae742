package web

import (
	"net/http"
	"time"

	"backbar/internal/core"

	"github.com/shopspring/decimal"
)

type reconciliationRequest struct {
	Date       string                         `json:"date"`
	TillTotals []core.TillTotal               `json:"till_totals"`
	CashOnHand decimal.Decimal                `json:"cash_on_hand"`
	Notes      string                         `json:"notes"`
	Actor      string                         `json:"actor"`
	Lines      []core.ReconciliationLineInput `json:"lines"`
}

type waiterRequest struct {
	Name        string          `json:"name"`
	DailySalary decimal.Decimal `json:"daily_salary"`
}

func (h *Handler) postReconciliation(w http.ResponseWriter, r *http.Request) {
	var req reconciliationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeRawError(w, r, "invalid date, want YYYY-MM-DD", "VALIDATION", http.StatusBadRequest)
		return
	}
	rec, err := h.svc.Reconciliations.Post(r.Context(), core.ReconciliationInput{
		Date:       date,
		TillTotals: req.TillTotals,
		CashOnHand: req.CashOnHand,
		Notes:      req.Notes,
		Actor:      req.Actor,
		Lines:      req.Lines,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) getReconciliation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.svc.Reconciliations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) listReconciliations(w http.ResponseWriter, r *http.Request) {
	to, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from := to.AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeRawError(w, r, "invalid from date, want YYYY-MM-DD", "VALIDATION", http.StatusBadRequest)
			return
		}
	}
	recs, err := h.svc.Reconciliations.List(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) reconciliationSummary(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.svc.Reconciliations.Summary(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) createWaiter(w http.ResponseWriter, r *http.Request) {
	var req waiterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	waiter, err := h.svc.Reconciliations.CreateWaiter(r.Context(), req.Name, req.DailySalary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, waiter)
}

func (h *Handler) listWaiters(w http.ResponseWriter, r *http.Request) {
	waiters, err := h.svc.Reconciliations.ListWaiters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, waiters)
}

func (h *Handler) listWaiterBills(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	unsettledOnly := r.URL.Query().Get("unsettled") == "true"
	bills, err := h.svc.Reconciliations.ListWaiterBills(r.Context(), id, unsettledOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (h *Handler) settleWaiterBill(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := h.svc.Reconciliations.SettleWaiterBill(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (h *Handler) dailySummaryReport(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.svc.Reports.GetDailySummary(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) purchaseReport(w http.ResponseWriter, r *http.Request) {
	to, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	from := to.AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeRawError(w, r, "invalid from date, want YYYY-MM-DD", "VALIDATION", http.StatusBadRequest)
			return
		}
	}
	report, err := h.svc.Reports.GetPurchaseReport(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
