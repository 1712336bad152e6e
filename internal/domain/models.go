package domain

import (
	"time"

	"eromshop/backend/internal/money"
)

// Agent is a field technician who takes spare parts on consignment.
// A credit limit of zero means unlimited.
type Agent struct {
	ID           string       `json:"id"`
	FullName     string       `json:"full_name"`
	PhoneNumber  string       `json:"phone_number"`
	IDNumber     string       `json:"id_number,omitempty"`
	Area         string       `json:"area,omitempty"`
	BusinessName string       `json:"business_name,omitempty"`
	CreditLimit  money.Amount `json:"credit_limit"`
	IsActive     bool         `json:"is_active"`
	IsTrusted    bool         `json:"is_trusted"`
	Notes        string       `json:"notes,omitempty"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
}

type AgentCreateRequest struct {
	FullName     string       `json:"full_name"`
	PhoneNumber  string       `json:"phone_number"`
	IDNumber     string       `json:"id_number,omitempty"`
	Area         string       `json:"area,omitempty"`
	BusinessName string       `json:"business_name,omitempty"`
	CreditLimit  money.Amount `json:"credit_limit"`
	IsTrusted    bool         `json:"is_trusted"`
	Notes        string       `json:"notes,omitempty"`
}

type AgentUpdateRequest struct {
	FullName    *string       `json:"full_name,omitempty"`
	PhoneNumber *string       `json:"phone_number,omitempty"`
	Area        *string       `json:"area,omitempty"`
	CreditLimit *money.Amount `json:"credit_limit,omitempty"`
	IsActive    *bool         `json:"is_active,omitempty"`
	IsTrusted   *bool         `json:"is_trusted,omitempty"`
	Notes       *string       `json:"notes,omitempty"`
}

// Product is a spare part. The stock counters are a cache of the
// movement-ledger fold, updated transactionally alongside every
// MovementEntry append. The ledger is the source of truth; see
// Repository.RecomputeStock for the repair path.
type Product struct {
	SKU             string       `json:"sku"`
	Name            string       `json:"name"`
	Category        string       `json:"category"`
	CostPrice       money.Amount `json:"cost_price"`
	SellingPrice    money.Amount `json:"selling_price"`
	QuantityInStock int          `json:"quantity_in_stock"`
	QuantityInField int          `json:"quantity_in_field"`
	ReorderLevel    int          `json:"reorder_level"`
	IsActive        bool         `json:"is_active"`
	CreatedBy       string       `json:"created_by"`
	CreatedAt       time.Time    `json:"created_at"`
}

func (p Product) TotalQuantity() int {
	return p.QuantityInStock + p.QuantityInField
}

func (p Product) IsLowStock() bool {
	return p.QuantityInStock <= p.ReorderLevel
}

type ProductCreateRequest struct {
	SKU          string       `json:"sku"`
	Name         string       `json:"name"`
	Category     string       `json:"category"`
	CostPrice    money.Amount `json:"cost_price"`
	SellingPrice money.Amount `json:"selling_price"`
	InitialStock int          `json:"initial_stock"`
	ReorderLevel int          `json:"reorder_level"`
}

// DebtEntry is an append-only record of one stock transfer to an agent.
// Only PaidAmount, IsPaid, and PaidAt ever change after insert, and
// PaidAmount only grows; everything else is immutable.
type DebtEntry struct {
	ID            string       `json:"id"`
	AgentID       string       `json:"agent_id"`
	ProductSKU    string       `json:"product_sku"`
	Quantity      int          `json:"quantity"`
	UnitPrice     money.Amount `json:"unit_price"`
	DebtAmount    money.Amount `json:"debt_amount"`
	PaidAmount    money.Amount `json:"paid_amount"`
	IsPaid        bool         `json:"is_paid"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	MovementID    string       `json:"movement_id"`
	TransferredBy string       `json:"transferred_by"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (e DebtEntry) RemainingDebt() money.Amount {
	return e.DebtAmount.Sub(e.PaidAmount)
}

func (e DebtEntry) DaysOutstanding(now time.Time) int {
	if e.IsPaid {
		return 0
	}
	return int(now.Sub(e.CreatedAt).Hours() / 24)
}

// Payment is an append-only record of money received from an agent.
// The full stated amount is always recorded, no matter how much of it
// the settlement engine manages to allocate.
type Payment struct {
	ID         string       `json:"id"`
	AgentID    string       `json:"agent_id"`
	Amount     money.Amount `json:"amount"`
	Method     string       `json:"method"`
	Reference  string       `json:"reference,omitempty"`
	ReceivedBy string       `json:"received_by"`
	Notes      string       `json:"notes,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// PaymentTarget selects which debt entries a payment settles. The zero
// value targets all unpaid entries; TargetEntries restricts to a set.
// Modeled as an explicit type so an empty slice can't be confused with
// "no restriction".
type PaymentTarget struct {
	entryIDs []string
}

func TargetAll() PaymentTarget {
	return PaymentTarget{}
}

func TargetEntries(ids []string) PaymentTarget {
	if len(ids) == 0 {
		return PaymentTarget{}
	}
	copied := make([]string, len(ids))
	copy(copied, ids)
	return PaymentTarget{entryIDs: copied}
}

func (t PaymentTarget) All() bool {
	return len(t.entryIDs) == 0
}

// IDs returns the targeted entry IDs, nil when the target is all.
func (t PaymentTarget) IDs() []string {
	if t.All() {
		return nil
	}
	copied := make([]string, len(t.entryIDs))
	copy(copied, t.entryIDs)
	return copied
}

func (t PaymentTarget) Contains(id string) bool {
	if t.All() {
		return true
	}
	for _, v := range t.entryIDs {
		if v == id {
			return true
		}
	}
	return false
}

type RecordPaymentRequest struct {
	Amount    money.Amount `json:"amount"`
	Method    string       `json:"method"`
	Reference string       `json:"reference,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	EntryIDs  []string     `json:"entry_ids,omitempty"`
}

// SettlementResult reports how a payment was allocated. The unapplied
// remainder is reported to the caller, never silently dropped and never
// stored as agent credit.
type SettlementResult struct {
	Payment        Payment      `json:"payment"`
	AppliedTotal   money.Amount `json:"applied_total"`
	Remainder      money.Amount `json:"remainder"`
	UpdatedEntries []DebtEntry  `json:"updated_entries"`
	NewTotalDebt   money.Amount `json:"new_total_debt"`
}

type MovementKind string

const (
	MovementPurchase        MovementKind = "purchase"
	MovementSale            MovementKind = "sale"
	MovementTransferToAgent MovementKind = "transfer_to_agent"
	MovementReturnFromAgent MovementKind = "return_from_agent"
	MovementAdjustment      MovementKind = "adjustment"
	MovementReversal        MovementKind = "reversal"
)

func ValidMovementKind(kind MovementKind) bool {
	switch kind {
	case MovementPurchase, MovementSale, MovementTransferToAgent,
		MovementReturnFromAgent, MovementAdjustment, MovementReversal:
		return true
	}
	return false
}

// MovementEntry is an append-only record of one signed stock change.
// QuantityDelta is the change to the shop's quantity_in_stock; summing
// it over all entries for a product reproduces the cached counter.
// Transfers and returns additionally move the same quantity the other
// way on quantity_in_field.
// AgentID is set on transfer and return movements (and on their
// reversals) so consignment activity can be listed per agent.
// ReversalOf is set only when Kind is MovementReversal,
// and may only point at a non-reversal entry, so reversal chains cannot
// form.
type MovementEntry struct {
	ID             string       `json:"id"`
	ProductSKU     string       `json:"product_sku"`
	AgentID        string       `json:"agent_id,omitempty"`
	Kind           MovementKind `json:"kind"`
	QuantityDelta  int          `json:"quantity_delta"`
	FromLocation   string       `json:"from_location"`
	ToLocation     string       `json:"to_location"`
	ReferenceID    string       `json:"reference_id,omitempty"`
	ReversalOf     string       `json:"reversal_of,omitempty"`
	ReversalReason string       `json:"reversal_reason,omitempty"`
	PerformedBy    string       `json:"performed_by"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

type MovementQuery struct {
	ProductSKU string
	AgentID    string
	Kind       MovementKind
	From       time.Time
	To         time.Time
	Limit      int
}

type DebtEntryQuery struct {
	AgentID    string
	ProductSKU string
	// Paid filters by settlement status when non-nil.
	Paid  *bool
	From  time.Time
	To    time.Time
	Limit int
}

type TransferStockRequest struct {
	ProductSKU string       `json:"product_sku"`
	Quantity   int          `json:"quantity"`
	UnitPrice  money.Amount `json:"unit_price"`
	Notes      string       `json:"notes,omitempty"`
}

type ReturnStockRequest struct {
	ProductSKU string `json:"product_sku"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes,omitempty"`
}

type StockAdjustmentRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type ReverseMovementRequest struct {
	Reason string `json:"reason"`
}

type StockRecomputeResult struct {
	ProductSKU     string `json:"product_sku"`
	CachedQty      int    `json:"cached_qty"`
	DerivedQty     int    `json:"derived_qty"`
	Drift          int    `json:"drift"`
	CacheRewritten bool   `json:"cache_rewritten"`
}

// Aging buckets measured in whole days from entry creation to now.
// Windows are half-open: an entry at exactly 30 days old belongs to
// the 30-60 bucket, not 7-30.
const (
	BucketDays0to7   = "0-7"
	BucketDays7to30  = "7-30"
	BucketDays30to60 = "30-60"
	BucketDays60to90 = "60-90"
	BucketDays90Plus = "90+"
)

func AgeBuckets() []string {
	return []string{BucketDays0to7, BucketDays7to30, BucketDays30to60, BucketDays60to90, BucketDays90Plus}
}

// BucketForDays maps whole days outstanding to an aging bucket.
func BucketForDays(days int) string {
	switch {
	case days < 7:
		return BucketDays0to7
	case days < 30:
		return BucketDays7to30
	case days < 60:
		return BucketDays30to60
	case days < 90:
		return BucketDays60to90
	default:
		return BucketDays90Plus
	}
}

type DebtSummary struct {
	AgentID       string                  `json:"agent_id"`
	TotalDebt     money.Amount            `json:"total_debt"`
	DebtByAge     map[string]money.Amount `json:"debt_by_age"`
	UnpaidCount   int                     `json:"unpaid_count"`
	UnpaidEntries []DebtEntry             `json:"unpaid_entries"`
	GeneratedAt   time.Time               `json:"generated_at"`
}

const (
	PaymentMethodCash         = "cash"
	PaymentMethodMobileMoney  = "mobile_money"
	PaymentMethodBankTransfer = "bank_transfer"
)

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodMobileMoney, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// SaleLine is one line of a POS transaction.
type SaleLine struct {
	ProductSKU string       `json:"product_sku"`
	Quantity   int          `json:"quantity"`
	UnitPrice  money.Amount `json:"unit_price"`
	Discount   money.Amount `json:"discount"`
	LineTotal  money.Amount `json:"line_total"`
}

// SaleTransaction is an append-only POS sale. Code is the human-facing
// identifier in the form TXN-YYYYMMDD-NNNN.
type SaleTransaction struct {
	ID             string       `json:"id"`
	Code           string       `json:"code"`
	Subtotal       money.Amount `json:"subtotal"`
	TaxAmount      money.Amount `json:"tax_amount"`
	DiscountAmount money.Amount `json:"discount_amount"`
	TotalAmount    money.Amount `json:"total_amount"`
	PaymentMethod  string       `json:"payment_method"`
	AmountPaid     money.Amount `json:"amount_paid"`
	ChangeGiven    money.Amount `json:"change_given"`
	CustomerName   string       `json:"customer_name,omitempty"`
	CustomerPhone  string       `json:"customer_phone,omitempty"`
	ProcessedBy    string       `json:"processed_by"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	Items          []SaleLine   `json:"items"`
}

type SaleLineRequest struct {
	ProductSKU string       `json:"product_sku"`
	Quantity   int          `json:"quantity"`
	UnitPrice  money.Amount `json:"unit_price"`
	Discount   money.Amount `json:"discount"`
}

type SaleCreateRequest struct {
	Items         []SaleLineRequest `json:"items"`
	PaymentMethod string            `json:"payment_method"`
	AmountPaid    money.Amount      `json:"amount_paid"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

type DailySalesSummary struct {
	Date            string                  `json:"date"`
	Transactions    int                     `json:"transactions"`
	TotalSales      money.Amount            `json:"total_sales"`
	ByPaymentMethod map[string]money.Amount `json:"by_payment_method"`
}

// Reconciliation is a blind-count workflow comparing physical stock to
// the system-projected counts.
type Reconciliation struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	Status      string               `json:"status"`
	PerformedBy string               `json:"performed_by"`
	ApprovedBy  string               `json:"approved_by,omitempty"`
	Notes       string               `json:"notes,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	Items       []ReconciliationItem `json:"items,omitempty"`
}

const (
	ReconciliationInProgress = "in_progress"
	ReconciliationCompleted  = "completed"
	ReconciliationApproved   = "approved"
	ReconciliationRejected   = "rejected"
)

const (
	ReconciliationTypeDaily     = "daily"
	ReconciliationTypeWeekly    = "weekly"
	ReconciliationTypeMonthly   = "monthly"
	ReconciliationTypeSpotCheck = "spot_check"
)

func ValidReconciliationType(t string) bool {
	switch t {
	case ReconciliationTypeDaily, ReconciliationTypeWeekly, ReconciliationTypeMonthly, ReconciliationTypeSpotCheck:
		return true
	}
	return false
}

// ReconciliationItem holds one product count. SystemCount is snapshotted
// from the projected stock at the moment the count is recorded.
// CorrectionCreated guarantees at most one correcting movement per item.
type ReconciliationItem struct {
	ID                 string    `json:"id"`
	ReconciliationID   string    `json:"reconciliation_id"`
	ProductSKU         string    `json:"product_sku"`
	SystemCount        int       `json:"system_count"`
	PhysicalCount      int       `json:"physical_count"`
	Variance           int       `json:"variance"`
	HasDiscrepancy     bool      `json:"has_discrepancy"`
	DiscrepancyReason  string    `json:"discrepancy_reason,omitempty"`
	CorrectionApproved bool      `json:"correction_approved"`
	CorrectionCreated  bool      `json:"correction_created"`
	CountedAt          time.Time `json:"counted_at"`
}

// SetCounts fills the derived fields from the two counts; variance and
// the discrepancy flag are fixed at write time, not re-evaluated later.
func (i *ReconciliationItem) SetCounts(systemCount, physicalCount int) {
	i.SystemCount = systemCount
	i.PhysicalCount = physicalCount
	i.Variance = physicalCount - systemCount
	i.HasDiscrepancy = i.Variance != 0
}

type ReconciliationStartRequest struct {
	Type  string `json:"type"`
	Notes string `json:"notes,omitempty"`
}

type RecordCountRequest struct {
	ProductSKU        string `json:"product_sku"`
	PhysicalCount     int    `json:"physical_count"`
	DiscrepancyReason string `json:"discrepancy_reason,omitempty"`
}

type CorrectionsResult struct {
	ReconciliationID   string `json:"reconciliation_id"`
	CorrectionsCreated int    `json:"corrections_created"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ShopID        string    `json:"shop_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

const (
	RoleOwner   = "owner"
	RoleCashier = "cashier"
)

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
