package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"eromshop/backend/internal/cache"
	"eromshop/backend/internal/domain"
	"eromshop/backend/internal/money"
	"eromshop/backend/internal/store"
	"eromshop/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// ErrOwnerRequired is returned when an operation reserved for the shop
// owner is attempted by another role.
var ErrOwnerRequired = errors.New("owner role required")

type Service struct {
	repo          store.Repository
	summaries     cache.DebtSummaryCache
	defaultShopID string
	summaryTTL    time.Duration
}

func New(repo store.Repository, summaries cache.DebtSummaryCache, defaultShopID string, summaryTTL time.Duration) *Service {
	if defaultShopID == "" {
		defaultShopID = "main-shop"
	}
	if summaries == nil {
		summaries = cache.NoopDebtSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = time.Minute
	}

	return &Service{
		repo:          repo,
		summaries:     summaries,
		defaultShopID: defaultShopID,
		summaryTTL:    summaryTTL,
	}
}

func (s *Service) requireOwner(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleOwner {
		return ErrOwnerRequired
	}
	return nil
}

func (s *Service) actorUsername(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "system"
	}
	return actor.Username
}

func (s *Service) CreateAgent(ctx context.Context, req domain.AgentCreateRequest) (domain.Agent, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.FullName == "" || req.PhoneNumber == "" {
		return domain.Agent{}, store.ErrValidation
	}
	if req.CreditLimit.IsNegative() {
		return domain.Agent{}, store.ErrValidation
	}

	created, err := s.repo.CreateAgent(ctx, domain.Agent{
		FullName:     req.FullName,
		PhoneNumber:  req.PhoneNumber,
		IDNumber:     strings.TrimSpace(req.IDNumber),
		Area:         strings.TrimSpace(req.Area),
		BusinessName: strings.TrimSpace(req.BusinessName),
		CreditLimit:  req.CreditLimit,
		IsTrusted:    req.IsTrusted,
		Notes:        req.Notes,
		CreatedBy:    s.actorUsername(ctx),
	})
	if err != nil {
		return domain.Agent{}, err
	}

	s.logAudit(ctx, "agent_create", "agent", created.ID, fmt.Sprintf("name=%s,limit=%s", created.FullName, created.CreditLimit))
	return *created, nil
}

func (s *Service) GetAgent(ctx context.Context, id string) (domain.Agent, error) {
	agent, err := s.repo.GetAgent(ctx, id)
	if err != nil {
		return domain.Agent{}, err
	}
	return *agent, nil
}

func (s *Service) ListAgents(ctx context.Context, activeOnly bool) ([]domain.Agent, error) {
	return s.repo.ListAgents(ctx, activeOnly)
}

func (s *Service) UpdateAgent(ctx context.Context, id string, req domain.AgentUpdateRequest) (domain.Agent, error) {
	existing, err := s.repo.GetAgent(ctx, id)
	if err != nil {
		return domain.Agent{}, err
	}

	updated := *existing
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return domain.Agent{}, store.ErrValidation
		}
		updated.FullName = name
	}
	if req.PhoneNumber != nil {
		phone := strings.TrimSpace(*req.PhoneNumber)
		if phone == "" {
			return domain.Agent{}, store.ErrValidation
		}
		updated.PhoneNumber = phone
	}
	if req.Area != nil {
		updated.Area = strings.TrimSpace(*req.Area)
	}
	if req.CreditLimit != nil {
		// Changing the limit needs the owner; it widens or narrows how
		// much stock can go out unpaid.
		if err := s.requireOwner(ctx); err != nil {
			return domain.Agent{}, err
		}
		if req.CreditLimit.IsNegative() {
			return domain.Agent{}, store.ErrValidation
		}
		updated.CreditLimit = *req.CreditLimit
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if req.IsTrusted != nil {
		updated.IsTrusted = *req.IsTrusted
	}
	if req.Notes != nil {
		updated.Notes = *req.Notes
	}

	saved, err := s.repo.UpdateAgent(ctx, updated)
	if err != nil {
		return domain.Agent{}, err
	}

	s.logAudit(ctx, "agent_update", "agent", saved.ID, fmt.Sprintf("active=%t,limit=%s", saved.IsActive, saved.CreditLimit))
	return *saved, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := s.requireOwner(ctx); err != nil {
		return domain.Product{}, err
	}

	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.SKU == "" || req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrValidation
	}
	if !req.SellingPrice.IsPositive() || req.CostPrice.IsNegative() || req.InitialStock < 0 || req.ReorderLevel < 0 {
		return domain.Product{}, store.ErrValidation
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		SKU:             req.SKU,
		Name:            req.Name,
		Category:        req.Category,
		CostPrice:       req.CostPrice,
		SellingPrice:    req.SellingPrice,
		QuantityInStock: req.InitialStock,
		ReorderLevel:    req.ReorderLevel,
		CreatedBy:       s.actorUsername(ctx),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.SKU, fmt.Sprintf("name=%s,price=%s,stock=%d", created.Name, created.SellingPrice, created.QuantityInStock))
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, sku string) (domain.Product, error) {
	product, err := s.repo.GetProductBySKU(ctx, strings.ToUpper(strings.TrimSpace(sku)))
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, activeOnly)
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx)
}

func (s *Service) ListMovements(ctx context.Context, q domain.MovementQuery) ([]domain.MovementEntry, error) {
	q.ProductSKU = strings.ToUpper(strings.TrimSpace(q.ProductSKU))
	q.AgentID = strings.TrimSpace(q.AgentID)
	if q.Kind != "" && !domain.ValidMovementKind(q.Kind) {
		return nil, store.ErrValidation
	}
	return s.repo.ListMovements(ctx, q)
}

func (s *Service) ListDebtEntries(ctx context.Context, q domain.DebtEntryQuery) ([]domain.DebtEntry, error) {
	return s.repo.ListDebtEntries(ctx, q)
}

func (s *Service) ListPayments(ctx context.Context, agentID string, limit int) ([]domain.Payment, error) {
	return s.repo.ListPayments(ctx, agentID, limit)
}

// TransferStock hands consignment stock to an agent. The stock and
// credit checks run inside the repository transaction together with the
// ledger appends, so a rejection leaves nothing behind.
func (s *Service) TransferStock(ctx context.Context, agentID string, req domain.TransferStockRequest) (domain.DebtEntry, error) {
	req.ProductSKU = strings.ToUpper(strings.TrimSpace(req.ProductSKU))
	// A zero unit price is allowed: promotional stock still moves to the
	// field, it just creates no debt.
	if agentID == "" || req.ProductSKU == "" || req.Quantity < 1 || req.UnitPrice.IsNegative() {
		return domain.DebtEntry{}, store.ErrValidation
	}

	entry, err := s.repo.TransferStock(ctx, domain.DebtEntry{
		AgentID:       agentID,
		ProductSKU:    req.ProductSKU,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		TransferredBy: s.actorUsername(ctx),
		Notes:         req.Notes,
	}, domain.MovementEntry{
		AgentID:     agentID,
		PerformedBy: s.actorUsername(ctx),
		Notes:       req.Notes,
	})
	if err != nil {
		return domain.DebtEntry{}, err
	}

	s.invalidateDebtSummary(ctx, agentID)
	s.logAudit(ctx, "stock_transfer", "debt_entry", entry.ID, fmt.Sprintf("agent=%s,sku=%s,qty=%d,debt=%s", agentID, entry.ProductSKU, entry.Quantity, entry.DebtAmount))
	return *entry, nil
}

// ReturnStock takes unsold consignment stock back from an agent. The
// debt entries stay open; returns are settled with payments, not by
// shrinking debt.
func (s *Service) ReturnStock(ctx context.Context, agentID string, req domain.ReturnStockRequest) (domain.MovementEntry, error) {
	req.ProductSKU = strings.ToUpper(strings.TrimSpace(req.ProductSKU))
	if agentID == "" || req.ProductSKU == "" || req.Quantity < 1 {
		return domain.MovementEntry{}, store.ErrValidation
	}

	movement, err := s.repo.ReturnStock(ctx, domain.MovementEntry{
		ProductSKU:    req.ProductSKU,
		QuantityDelta: req.Quantity,
		AgentID:       agentID,
		PerformedBy:   s.actorUsername(ctx),
		Notes:         req.Notes,
	})
	if err != nil {
		return domain.MovementEntry{}, err
	}

	s.logAudit(ctx, "stock_return", "movement", movement.ID, fmt.Sprintf("agent=%s,sku=%s,qty=%d", agentID, req.ProductSKU, req.Quantity))
	return *movement, nil
}

// RecordPayment settles money against an agent's open debt, oldest
// entries first. The payment row always records the full amount; any
// unapplied remainder comes back in the result for the cashier to
// hand over or take as a new arrangement.
func (s *Service) RecordPayment(ctx context.Context, agentID string, req domain.RecordPaymentRequest) (domain.SettlementResult, error) {
	if agentID == "" || !req.Amount.IsPositive() {
		return domain.SettlementResult{}, store.ErrValidation
	}
	if !domain.ValidPaymentMethod(req.Method) {
		return domain.SettlementResult{}, store.ErrValidation
	}

	result, err := s.repo.SettlePayment(ctx, domain.Payment{
		AgentID:    agentID,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  strings.TrimSpace(req.Reference),
		ReceivedBy: s.actorUsername(ctx),
		Notes:      req.Notes,
	}, domain.TargetEntries(req.EntryIDs))
	if err != nil {
		return domain.SettlementResult{}, err
	}

	s.invalidateDebtSummary(ctx, agentID)
	s.logAudit(ctx, "payment_record", "payment", result.Payment.ID,
		fmt.Sprintf("agent=%s,amount=%s,applied=%s,remainder=%s", agentID, result.Payment.Amount, result.AppliedTotal, result.Remainder))
	return *result, nil
}

// DebtSummary reports an agent's outstanding debt with aging buckets.
// Summaries are cached per agent and invalidated on every transfer or
// payment.
func (s *Service) DebtSummary(ctx context.Context, agentID string) (domain.DebtSummary, error) {
	key := debtSummaryKey(agentID)
	if cached, ok, err := s.summaries.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: debt summary cache get agent=%s: %v", agentID, err)
	}

	summary, err := s.buildDebtSummary(ctx, agentID, time.Now().UTC())
	if err != nil {
		return domain.DebtSummary{}, err
	}

	if err := s.summaries.Set(ctx, key, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: debt summary cache set agent=%s: %v", agentID, err)
	}
	return summary, nil
}

func (s *Service) buildDebtSummary(ctx context.Context, agentID string, now time.Time) (domain.DebtSummary, error) {
	if _, err := s.repo.GetAgent(ctx, agentID); err != nil {
		return domain.DebtSummary{}, err
	}

	unpaid := false
	entries, err := s.repo.ListDebtEntries(ctx, domain.DebtEntryQuery{AgentID: agentID, Paid: &unpaid})
	if err != nil {
		return domain.DebtSummary{}, err
	}

	byAge := make(map[string]money.Amount, 5)
	for _, bucket := range domain.AgeBuckets() {
		byAge[bucket] = money.Zero()
	}
	total := money.Zero()
	for _, entry := range entries {
		remaining := entry.RemainingDebt()
		bucket := domain.BucketForDays(entry.DaysOutstanding(now))
		byAge[bucket] = byAge[bucket].Add(remaining)
		total = total.Add(remaining)
	}

	return domain.DebtSummary{
		AgentID:       agentID,
		TotalDebt:     total,
		DebtByAge:     byAge,
		UnpaidCount:   len(entries),
		UnpaidEntries: entries,
		GeneratedAt:   now,
	}, nil
}

func (s *Service) AdjustStock(ctx context.Context, sku string, req domain.StockAdjustmentRequest) (domain.MovementEntry, error) {
	if err := s.requireOwner(ctx); err != nil {
		return domain.MovementEntry{}, err
	}
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" || req.Delta == 0 || strings.TrimSpace(req.Reason) == "" {
		return domain.MovementEntry{}, store.ErrValidation
	}

	movement, err := s.repo.AdjustStock(ctx, domain.MovementEntry{
		ProductSKU:    sku,
		QuantityDelta: req.Delta,
		PerformedBy:   s.actorUsername(ctx),
		Notes:         req.Reason,
	})
	if err != nil {
		return domain.MovementEntry{}, err
	}

	s.logAudit(ctx, "stock_adjust", "movement", movement.ID, fmt.Sprintf("sku=%s,delta=%d,reason=%s", sku, req.Delta, req.Reason))
	return *movement, nil
}

func (s *Service) ReverseMovement(ctx context.Context, movementID string, req domain.ReverseMovementRequest) (domain.MovementEntry, error) {
	if err := s.requireOwner(ctx); err != nil {
		return domain.MovementEntry{}, err
	}
	if movementID == "" || strings.TrimSpace(req.Reason) == "" {
		return domain.MovementEntry{}, store.ErrValidation
	}

	reversal, err := s.repo.ReverseMovement(ctx, movementID, domain.MovementEntry{
		PerformedBy:    s.actorUsername(ctx),
		ReversalReason: strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return domain.MovementEntry{}, err
	}

	s.logAudit(ctx, "movement_reverse", "movement", reversal.ID, fmt.Sprintf("reversal_of=%s,reason=%s", movementID, req.Reason))
	return *reversal, nil
}

func (s *Service) RecomputeStock(ctx context.Context, sku string) (domain.StockRecomputeResult, error) {
	if err := s.requireOwner(ctx); err != nil {
		return domain.StockRecomputeResult{}, err
	}
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return domain.StockRecomputeResult{}, store.ErrValidation
	}

	result, err := s.repo.RecomputeStock(ctx, sku)
	if err != nil {
		return domain.StockRecomputeResult{}, err
	}
	if result.CacheRewritten {
		s.logAudit(ctx, "stock_recompute", "product", sku, fmt.Sprintf("drift=%d,cached=%d,derived=%d", result.Drift, result.CachedQty, result.DerivedQty))
	}
	return *result, nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleTransaction, error) {
	if len(req.Items) == 0 || !domain.ValidPaymentMethod(req.PaymentMethod) {
		return domain.SaleTransaction{}, store.ErrValidation
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	for _, item := range req.Items {
		sku := strings.ToUpper(strings.TrimSpace(item.ProductSKU))
		if sku == "" || item.Quantity < 1 || item.Discount.IsNegative() {
			return domain.SaleTransaction{}, store.ErrValidation
		}
		lines = append(lines, domain.SaleLine{
			ProductSKU: sku,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Discount:   item.Discount,
		})
	}

	sale, err := s.repo.CreateSale(ctx, domain.SaleTransaction{
		Items:         lines,
		PaymentMethod: req.PaymentMethod,
		AmountPaid:    req.AmountPaid,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		ProcessedBy:   s.actorUsername(ctx),
		Notes:         req.Notes,
	})
	if err != nil {
		return domain.SaleTransaction{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", sale.ID, fmt.Sprintf("code=%s,total=%s,method=%s", sale.Code, sale.TotalAmount, sale.PaymentMethod))
	return *sale, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleTransaction, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.SaleTransaction{}, err
	}
	return *sale, nil
}

// DailySalesSummary aggregates one calendar day of sales. date is
// YYYY-MM-DD; empty means today (UTC).
func (s *Service) DailySalesSummary(ctx context.Context, date string) (domain.DailySalesSummary, error) {
	day := time.Now().UTC()
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.DailySalesSummary{}, store.ErrValidation
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.GetDailySalesSummary(ctx, from, from.Add(24*time.Hour))
}

func (s *Service) StartReconciliation(ctx context.Context, req domain.ReconciliationStartRequest) (domain.Reconciliation, error) {
	if !domain.ValidReconciliationType(req.Type) {
		return domain.Reconciliation{}, store.ErrValidation
	}

	rec, err := s.repo.CreateReconciliation(ctx, domain.Reconciliation{
		Type:        req.Type,
		PerformedBy: s.actorUsername(ctx),
		Notes:       req.Notes,
	})
	if err != nil {
		return domain.Reconciliation{}, err
	}

	s.logAudit(ctx, "reconciliation_start", "reconciliation", rec.ID, fmt.Sprintf("type=%s", rec.Type))
	return *rec, nil
}

func (s *Service) GetReconciliation(ctx context.Context, id string) (domain.Reconciliation, error) {
	rec, err := s.repo.GetReconciliation(ctx, id)
	if err != nil {
		return domain.Reconciliation{}, err
	}
	return *rec, nil
}

func (s *Service) ListReconciliations(ctx context.Context, status string, limit int) ([]domain.Reconciliation, error) {
	return s.repo.ListReconciliations(ctx, status, limit)
}

// RecordCount stores one blind count. The repository snapshots the
// system count at write time; counting the same product again replaces
// the earlier row.
func (s *Service) RecordCount(ctx context.Context, reconciliationID string, req domain.RecordCountRequest) (domain.ReconciliationItem, error) {
	req.ProductSKU = strings.ToUpper(strings.TrimSpace(req.ProductSKU))
	if reconciliationID == "" || req.ProductSKU == "" || req.PhysicalCount < 0 {
		return domain.ReconciliationItem{}, store.ErrValidation
	}

	item, err := s.repo.UpsertReconciliationCount(ctx, reconciliationID, domain.ReconciliationItem{
		ProductSKU:        req.ProductSKU,
		PhysicalCount:     req.PhysicalCount,
		DiscrepancyReason: strings.TrimSpace(req.DiscrepancyReason),
	})
	if err != nil {
		return domain.ReconciliationItem{}, err
	}
	return *item, nil
}

func (s *Service) CompleteReconciliation(ctx context.Context, id string) (domain.Reconciliation, error) {
	rec, err := s.repo.TransitionReconciliation(ctx, id,
		[]string{domain.ReconciliationInProgress}, domain.ReconciliationCompleted, "")
	if err != nil {
		return domain.Reconciliation{}, err
	}
	s.logAudit(ctx, "reconciliation_complete", "reconciliation", id, fmt.Sprintf("items=%d", len(rec.Items)))
	return *rec, nil
}

func (s *Service) ApproveReconciliation(ctx context.Context, id string) (domain.Reconciliation, error) {
	if err := s.requireOwner(ctx); err != nil {
		return domain.Reconciliation{}, err
	}
	rec, err := s.repo.TransitionReconciliation(ctx, id,
		[]string{domain.ReconciliationCompleted}, domain.ReconciliationApproved, s.actorUsername(ctx))
	if err != nil {
		return domain.Reconciliation{}, err
	}
	s.logAudit(ctx, "reconciliation_approve", "reconciliation", id, "")
	return *rec, nil
}

func (s *Service) RejectReconciliation(ctx context.Context, id string) (domain.Reconciliation, error) {
	if err := s.requireOwner(ctx); err != nil {
		return domain.Reconciliation{}, err
	}
	rec, err := s.repo.TransitionReconciliation(ctx, id,
		[]string{domain.ReconciliationInProgress, domain.ReconciliationCompleted},
		domain.ReconciliationRejected, s.actorUsername(ctx))
	if err != nil {
		return domain.Reconciliation{}, err
	}
	s.logAudit(ctx, "reconciliation_reject", "reconciliation", id, "")
	return *rec, nil
}

// CreateCorrections writes one adjusting movement per discrepant item
// of an approved reconciliation. Items corrected by an earlier call are
// skipped, so retrying after a partial failure is safe.
func (s *Service) CreateCorrections(ctx context.Context, id string) (domain.CorrectionsResult, error) {
	if err := s.requireOwner(ctx); err != nil {
		return domain.CorrectionsResult{}, err
	}

	created, err := s.repo.CreateReconciliationCorrections(ctx, id, s.actorUsername(ctx))
	if err != nil {
		return domain.CorrectionsResult{}, err
	}

	s.logAudit(ctx, "reconciliation_corrections", "reconciliation", id, fmt.Sprintf("corrections=%d", created))
	return domain.CorrectionsResult{ReconciliationID: id, CorrectionsCreated: created}, nil
}

// ListAuditLogs returns the audit trail for one day (YYYY-MM-DD, empty
// means today UTC). Owner only.
func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if err := s.requireOwner(ctx); err != nil {
		return nil, err
	}

	day := time.Now().UTC()
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrValidation
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if limit < 1 {
		limit = 200
	}
	return s.repo.ListAuditLogs(ctx, from, from.Add(24*time.Hour), limit)
}

func debtSummaryKey(agentID string) string {
	return "debt-summary:" + agentID
}

func (s *Service) invalidateDebtSummary(ctx context.Context, agentID string) {
	if err := s.summaries.Delete(ctx, debtSummaryKey(agentID)); err != nil {
		log.Printf("[service] WARN: debt summary invalidate agent=%s: %v", agentID, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ShopID:        s.defaultShopID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}
