package web

import (
	"net/http"
	"time"

	"backbar/internal/core"

	"github.com/shopspring/decimal"
)

type movementRequest struct {
	Date        string            `json:"date"`
	Source      string            `json:"source"`
	Type        core.MovementType `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description"`
	Reference   string            `json:"reference"`
	RecordedBy  string            `json:"recorded_by"`
}

type expenseRequest struct {
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Actor       string          `json:"actor"`
}

// bodyDate parses an optional YYYY-MM-DD date field; empty means today.
func bodyDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, core.Errorf(core.KindValidation, "invalid date %q, want YYYY-MM-DD", raw)
	}
	return d, nil
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := bodyDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := h.svc.Cash.RecordMovement(r.Context(), core.MovementInput{
		Date:        date,
		Source:      req.Source,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		Reference:   req.Reference,
		RecordedBy:  req.RecordedBy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	movements, err := h.svc.Cash.ListMovements(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func (h *Handler) cashSummary(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := h.svc.Cash.Summary(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) recordExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := bodyDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.svc.Cash.RecordExpense(r.Context(), core.ExpenseInput{
		Date:        date,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		Actor:       req.Actor,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := h.svc.Cash.ListExpenses(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}
