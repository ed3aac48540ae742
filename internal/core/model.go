package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleType distinguishes cash sales from sales on credit.
type SaleType string

const (
	SaleTypeCash SaleType = "cash"
	SaleTypeDebt SaleType = "debt"
)

// MovementType is the direction of a cash movement.
type MovementType string

const (
	MovementInflow  MovementType = "inflow"
	MovementOutflow MovementType = "outflow"
)

// ReconciliationLineKind tags a correction line for fan-out dispatch.
type ReconciliationLineKind string

const (
	LineKindSale    ReconciliationLineKind = "sale"
	LineKindExpense ReconciliationLineKind = "expense"
	LineKindDebtor  ReconciliationLineKind = "debtor"
	LineKindWaiter  ReconciliationLineKind = "waiter"
	LineKindOther   ReconciliationLineKind = "other"
)

// Product is the single source of truth for quantity on hand. Stock is an
// integer and can never go negative; the schema enforces the same invariant.
type Product struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Stock     int             `json:"stock"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	CreatedAt time.Time       `json:"created_at"`
}

// Sale is an immutable snapshot of a completed transaction. TotalPrice and
// TotalCost are computed from the product's price at sale time and never
// recomputed; later corrections arrive as SaleAdjustment rows.
type Sale struct {
	ID         int             `json:"id"`
	ProductID  int             `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	SaleType   SaleType        `json:"sale_type"`
	IssuedBy   string          `json:"issued_by"`
	Date       time.Time       `json:"date"`

	// Adjusted totals = base + Σ non-voided deltas. Populated by GetSale.
	AdjustedQuantity   int             `json:"adjusted_quantity"`
	AdjustedTotalPrice decimal.Decimal `json:"adjusted_total_price"`
	AdjustedTotalCost  decimal.Decimal `json:"adjusted_total_cost"`
}

// SaleAdjustment is an append-only correction against a Sale, storing the
// before-values alongside the signed deltas.
type SaleAdjustment struct {
	ID                 int             `json:"id"`
	SaleID             int             `json:"sale_id"`
	PriceDelta         decimal.Decimal `json:"price_delta"`
	CostDelta          decimal.Decimal `json:"cost_delta"`
	QuantityDelta      int             `json:"quantity_delta"`
	PreviousTotalPrice decimal.Decimal `json:"previous_total_price"`
	PreviousTotalCost  decimal.Decimal `json:"previous_total_cost"`
	PreviousQuantity   int             `json:"previous_quantity"`
	Reason             string          `json:"reason"`
	CreatedBy          string          `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	IsVoided           bool            `json:"is_voided"`
}

// DailyClose reconciles a product's counted closing stock against its tracked
// opening stock for one business date. At most one close exists per
// (product, date); the schema carries the unique constraint.
type DailyClose struct {
	ID           int             `json:"id"`
	ProductID    int             `json:"product_id"`
	CloseDate    time.Time       `json:"close_date"`
	OpeningStock int             `json:"opening_stock"`
	ClosingStock int             `json:"closing_stock"`
	UnitsSold    int             `json:"units_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
	Profit       decimal.Decimal `json:"profit"`
	ProcessedBy  string          `json:"processed_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DailyCloseAdjustment is the append-only audit row written by AdjustClose.
// Rows are never edited or deleted once written.
type DailyCloseAdjustment struct {
	ID                   int             `json:"id"`
	DailyCloseID         int             `json:"daily_close_id"`
	PreviousClosingStock int             `json:"previous_closing_stock"`
	NewClosingStock      int             `json:"new_closing_stock"`
	QuantityDelta        int             `json:"quantity_delta"`
	RevenueDelta         decimal.Decimal `json:"revenue_delta"`
	ProfitDelta          decimal.Decimal `json:"profit_delta"`
	Reason               string          `json:"reason"`
	CreatedBy            string          `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
}

// ConversionHistory snapshots both products' stock around a bottle→tot
// conversion. Deleting a row is the undo mechanism: stock is restored to the
// "prev" values first, then the row is removed.
type ConversionHistory struct {
	ID              int       `json:"id"`
	BottleID        int       `json:"bottle_id"`
	TotID           int       `json:"tot_id"`
	BottleName      string    `json:"bottle_name,omitempty"`
	TotName         string    `json:"tot_name,omitempty"`
	PrevBottleStock int       `json:"prev_bottle_stock"`
	PrevTotStock    int       `json:"prev_tot_stock"`
	NewBottleStock  int       `json:"new_bottle_stock"`
	NewTotStock     int       `json:"new_tot_stock"`
	ConvertedBy     string    `json:"converted_by"`
	Timestamp       time.Time `json:"timestamp"`
}

// Supplier balances are derived: owed = Σ purchases − Σ undo reversals,
// paid = Σ supplier payments. No stored counters.
type Supplier struct {
	ID            int             `json:"id"`
	Name          string          `json:"name"`
	ContactPerson string          `json:"contact_person"`
	Phone         string          `json:"phone"`
	TotalOwed     decimal.Decimal `json:"total_amount_owed"`
	TotalPaid     decimal.Decimal `json:"total_amount_paid"`
	Balance       decimal.Decimal `json:"remaining_balance"`
}

// Purchase is an immutable supplier receipt that increased Product.stock.
type Purchase struct {
	ID           int             `json:"id"`
	SupplierID   int             `json:"supplier_id"`
	ProductID    int             `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	PurchaseDate time.Time       `json:"purchase_date"`
}

// PurchaseUndoLog is the append-only audit of a reversed purchase.
type PurchaseUndoLog struct {
	ID               int             `json:"id"`
	PurchaseID       int             `json:"purchase_id"`
	ProductID        int             `json:"product_id"`
	QuantityReversed int             `json:"quantity_reversed"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	Reason           string          `json:"reason"`
	UndoneBy         string          `json:"undone_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Debtor totals are derived from debt transactions at query time.
type Debtor struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	TotalDebt decimal.Decimal `json:"total_debt"`
}

// DebtTransaction is one obligation. PaidAmount and OutstandingAmount are
// derived from debt_payments; IsPaid holds when outstanding ≤ 0. Overpayment
// drives the outstanding amount negative (a credit balance).
type DebtTransaction struct {
	ID          int             `json:"id"`
	DebtorID    int             `json:"debtor_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	IssuedBy    string          `json:"issued_by"`
	IssueDate   time.Time       `json:"issue_date"`
	DueDate     time.Time       `json:"due_date"`

	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	IsPaid            bool            `json:"is_paid"`
}

// DebtPayment is one payment received against a debt transaction.
type DebtPayment struct {
	ID            int             `json:"id"`
	TransactionID int             `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReceivedBy    string          `json:"received_by"`
	ReceivedAt    time.Time       `json:"received_at"`
}

// CashMovement is a pure ledger entry, never updated after creation.
type CashMovement struct {
	ID          int             `json:"id"`
	Date        time.Time       `json:"date"`
	Source      string          `json:"source"`
	Type        MovementType    `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	RecordedBy  string          `json:"recorded_by"`
}

// Expense always travels with a matching outflow CashMovement; both are
// written by the same helper so the two ledgers cannot diverge.
type Expense struct {
	ID          int             `json:"id"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Reconciliation is a dated snapshot of till/cash totals plus correction lines.
type Reconciliation struct {
	ID         int                  `json:"id"`
	Date       time.Time            `json:"date"`
	TillTotals []TillTotal          `json:"till_totals"`
	CashOnHand decimal.Decimal      `json:"cash_on_hand"`
	Notes      string               `json:"notes"`
	CreatedBy  string               `json:"created_by"`
	CreatedAt  time.Time            `json:"created_at"`
	Lines      []ReconciliationLine `json:"lines"`
}

// TillTotal is one named till's counted total for the day.
type TillTotal struct {
	Source string          `json:"source"`
	Amount decimal.Decimal `json:"amount"`
}

// ReconciliationLine is one ad-hoc correction posted with a reconciliation.
type ReconciliationLine struct {
	ID               int                    `json:"id"`
	ReconciliationID int                    `json:"reconciliation_id"`
	Kind             ReconciliationLineKind `json:"kind"`
	Description      string                 `json:"description"`
	Amount           decimal.Decimal        `json:"amount"`
	// DebtorID is required for debtor lines, WaiterID for waiter lines.
	DebtorID  *int      `json:"debtor_id,omitempty"`
	WaiterID  *int      `json:"waiter_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Waiter struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	DailySalary decimal.Decimal `json:"daily_salary"`
}

// WaiterBill is an unsettled amount owed by a waiter, created from
// reconciliation waiter lines and settled later.
type WaiterBill struct {
	ID          int             `json:"id"`
	WaiterID    int             `json:"waiter_id"`
	BillDate    time.Time       `json:"bill_date"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Description string          `json:"description"`
	IsSettled   bool            `json:"is_settled"`
	SettledDate *time.Time      `json:"settled_date,omitempty"`
}
