package web

import (
	"net/http"
	"strconv"
	"time"

	"backbar/internal/core"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Services bundles everything the HTTP layer dispatches into.
type Services struct {
	Products        core.ProductService
	Sales           core.SaleService
	Closes          core.DailyCloseService
	Conversions     core.ConversionService
	Purchases       core.PurchaseService
	Debts           core.DebtService
	Cash            core.CashService
	Reconciliations core.ReconciliationService
	Reports         core.ReportingService
}

// Handler holds the core services and the chi router.
type Handler struct {
	svc    Services
	router chi.Router
	log    *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc Services, log *zap.Logger, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20)) // 1 MB

	r.Get("/api/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.listProducts)
			r.Post("/", h.createProduct)
			r.Get("/{id}", h.getProduct)
			r.Patch("/{id}/prices", h.updatePrices)
			r.Post("/{id}/stock", h.adjustStock)
			r.Delete("/{id}", h.deleteProduct)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.listSales)
			r.Post("/", h.createSale)
			r.Get("/{id}", h.getSale)
			r.Get("/{id}/adjustments", h.listSaleAdjustments)
			r.Post("/{id}/adjustments", h.adjustSale)
		})
		r.Post("/sale-adjustments/{id}/void", h.voidSaleAdjustment)

		r.Route("/closes", func(r chi.Router) {
			r.Get("/", h.listCloses)
			r.Post("/", h.closeDay)
			r.Get("/{id}", h.getClose)
			r.Get("/{id}/adjustments", h.listCloseAdjustments)
			r.Post("/{id}/adjustments", h.adjustClose)
		})

		r.Route("/conversions", func(r chi.Router) {
			r.Get("/", h.listConversions)
			r.Post("/", h.convert)
			r.Delete("/{id}", h.undoConversion)
		})

		r.Route("/suppliers", func(r chi.Router) {
			r.Get("/", h.listSuppliers)
			r.Post("/", h.createSupplier)
			r.Get("/{id}", h.getSupplier)
			r.Get("/{id}/purchases", h.listSupplierPurchases)
			r.Post("/{id}/payments", h.recordSupplierPayment)
		})
		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", h.listPurchases)
			r.Post("/", h.recordPurchase)
			r.Post("/{id}/undo", h.undoPurchase)
		})

		r.Route("/debtors", func(r chi.Router) {
			r.Get("/", h.listDebtors)
			r.Post("/", h.createDebtor)
			r.Get("/{id}", h.getDebtorSummary)
			r.Post("/{id}/transactions", h.createDebtTransaction)
		})
		r.Route("/debt-transactions", func(r chi.Router) {
			r.Get("/{id}", h.getDebtTransaction)
			r.Post("/{id}/payments", h.recordDebtPayment)
		})

		r.Route("/cash", func(r chi.Router) {
			r.Get("/movements", h.listMovements)
			r.Post("/movements", h.recordMovement)
			r.Get("/summary", h.cashSummary)
		})
		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.listExpenses)
			r.Post("/", h.recordExpense)
		})

		r.Route("/reconciliations", func(r chi.Router) {
			r.Get("/", h.listReconciliations)
			r.Post("/", h.postReconciliation)
			r.Get("/summary", h.reconciliationSummary)
			r.Get("/{id}", h.getReconciliation)
		})
		r.Route("/waiters", func(r chi.Router) {
			r.Get("/", h.listWaiters)
			r.Post("/", h.createWaiter)
			r.Get("/{id}/bills", h.listWaiterBills)
		})
		r.Post("/waiter-bills/{id}/settle", h.settleWaiterBill)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/daily", h.dailySummaryReport)
			r.Get("/purchases", h.purchaseReport)
		})
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// idParam parses the {id} URL parameter.
func idParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, core.Errorf(core.KindValidation, "invalid id %q", chi.URLParam(r, "id"))
	}
	return id, nil
}

// dateQuery parses the ?date= query parameter, defaulting to today.
func dateQuery(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, core.Errorf(core.KindValidation, "invalid date %q, want YYYY-MM-DD", raw)
	}
	return d, nil
}
