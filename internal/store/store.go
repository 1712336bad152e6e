package store

import (
	"context"
	"errors"
	"time"

	"eromshop/backend/internal/domain"
	"eromshop/backend/internal/money"
)

var (
	// ErrNotFound covers missing or inactive agents, products,
	// reconciliations, and ledger entries.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned before any write when input is malformed.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock rejects a transfer or sale exceeding the
	// quantity in stock; nothing is partially applied.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCreditLimitExceeded rejects a debt entry that would push the
	// agent's projected debt past its credit limit.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	// ErrInvalidState rejects a reconciliation operation outside its
	// allowed status, or reversing a reversal; current state unchanged.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict maps lock timeouts and serialization failures. The
	// whole operation was rolled back and is safe to retry.
	ErrConflict = errors.New("concurrent update conflict")
)

// Repository is the authoritative store. Ledger rows (DebtEntry,
// MovementEntry, Payment, SaleTransaction) are append-only; the only
// sanctioned in-place mutation is the settlement fields on DebtEntry.
// Composite operations (TransferStock, SettlePayment, AdjustStock,
// ReverseMovement, CreateSale, CreateReconciliationCorrections) commit
// all of their writes atomically or none of them.
type Repository interface {
	// Agents.
	CreateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	ListAgents(ctx context.Context, activeOnly bool) ([]domain.Agent, error)
	UpdateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error)

	// Products.
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)

	// Ledger queries. Results reflect committed entries only.
	ListDebtEntries(ctx context.Context, q domain.DebtEntryQuery) ([]domain.DebtEntry, error)
	ListPayments(ctx context.Context, agentID string, limit int) ([]domain.Payment, error)
	ListMovements(ctx context.Context, q domain.MovementQuery) ([]domain.MovementEntry, error)
	GetMovement(ctx context.Context, id string) (*domain.MovementEntry, error)

	// Projections. ProjectAgentDebt sums remaining debt over unpaid
	// entries; ProjectStock folds the movement ledger (not the cached
	// counter). RecomputeStock rewrites the counter from the fold.
	ProjectAgentDebt(ctx context.Context, agentID string) (money.Amount, error)
	ProjectStock(ctx context.Context, sku string) (int, error)
	RecomputeStock(ctx context.Context, sku string) (*domain.StockRecomputeResult, error)

	// Composite atomic operations. TransferStock performs the credit
	// and stock checks inside the same transaction as the writes, so
	// two concurrent transfers cannot jointly pass either check.
	TransferStock(ctx context.Context, entry domain.DebtEntry, movement domain.MovementEntry) (*domain.DebtEntry, error)
	ReturnStock(ctx context.Context, movement domain.MovementEntry) (*domain.MovementEntry, error)
	SettlePayment(ctx context.Context, payment domain.Payment, target domain.PaymentTarget) (*domain.SettlementResult, error)
	AdjustStock(ctx context.Context, movement domain.MovementEntry) (*domain.MovementEntry, error)
	ReverseMovement(ctx context.Context, movementID string, reversal domain.MovementEntry) (*domain.MovementEntry, error)

	// Sales. CreateSale recomputes line totals from the catalog prices
	// passed in, allocates the TXN-YYYYMMDD-NNNN code, appends one sale
	// movement per line, and decrements stock, all atomically.
	CreateSale(ctx context.Context, sale domain.SaleTransaction) (*domain.SaleTransaction, error)
	GetSale(ctx context.Context, id string) (*domain.SaleTransaction, error)
	GetDailySalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.DailySalesSummary, error)

	// Reconciliations.
	CreateReconciliation(ctx context.Context, rec domain.Reconciliation) (*domain.Reconciliation, error)
	GetReconciliation(ctx context.Context, id string) (*domain.Reconciliation, error)
	ListReconciliations(ctx context.Context, status string, limit int) ([]domain.Reconciliation, error)
	// UpsertReconciliationCount snapshots the current projected stock
	// as the system count, inside the same transaction as the write.
	// Keyed by (reconciliation, product): re-counting overwrites.
	UpsertReconciliationCount(ctx context.Context, reconciliationID string, item domain.ReconciliationItem) (*domain.ReconciliationItem, error)
	// TransitionReconciliation moves id from one of the allowed
	// statuses to the target, returning ErrInvalidState otherwise.
	TransitionReconciliation(ctx context.Context, id string, allowedFrom []string, to string, approvedBy string) (*domain.Reconciliation, error)
	// CreateReconciliationCorrections appends one correcting movement
	// per discrepant item not yet corrected, flipping the flag in the
	// same transaction. Retrying after partial failure skips items
	// already flagged.
	CreateReconciliationCorrections(ctx context.Context, id string, performedBy string) (int, error)

	// Audit trail.
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	// Auth accounts.
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
