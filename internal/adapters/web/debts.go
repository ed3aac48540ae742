package web

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type debtorRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type debtTransactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Actor       string          `json:"actor"`
}

type debtPaymentRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	ReceivedBy string          `json:"received_by"`
}

func (h *Handler) createDebtor(w http.ResponseWriter, r *http.Request) {
	var req debtorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	debtor, err := h.svc.Debts.CreateDebtor(r.Context(), req.Name, req.Phone)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, debtor)
}

func (h *Handler) listDebtors(w http.ResponseWriter, r *http.Request) {
	debtors, err := h.svc.Debts.ListDebtors(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, debtors)
}

func (h *Handler) getDebtorSummary(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.svc.Debts.GetDebtorSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) createDebtTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req debtTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.Debts.CreateDebtTransaction(r.Context(), id, req.Amount, req.Description, req.Actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) getDebtTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.Debts.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) recordDebtPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req debtPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.Debts.RecordPayment(r.Context(), id, req.Amount, req.ReceivedBy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
