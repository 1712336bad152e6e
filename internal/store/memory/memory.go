package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"eromshop/backend/internal/domain"
	"eromshop/backend/internal/money"
	"eromshop/backend/internal/settlement"
	"eromshop/backend/internal/store"
	"eromshop/backend/internal/xid"
)

// Store is the in-memory repository used for dev mode and tests. A
// single mutex serializes every composite operation, which gives the
// same atomicity the postgres store gets from serializable
// transactions.
type Store struct {
	mu              sync.RWMutex
	agents          map[string]domain.Agent
	products        map[string]domain.Product
	debtEntries     map[string]domain.DebtEntry
	payments        []domain.Payment
	movements       map[string]domain.MovementEntry
	salesByID       map[string]domain.SaleTransaction
	saleSeqByDay    map[string]int
	reconciliations map[string]domain.Reconciliation
	// reconItems is keyed reconciliation ID, then product SKU, so a
	// re-count of the same product overwrites the previous row.
	reconItems      map[string]map[string]domain.ReconciliationItem
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD.
// If unset, hardcoded dev defaults are used with a warning printed to
// stdout. These credentials are never used in production (the backend
// uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, domain.RoleOwner},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{SKU: "SCR-A15-BLK", Name: "Screen Assembly A15 Black", Category: "screens", CostPrice: money.MustParse("85000.00"), SellingPrice: money.MustParse("120000.00"), ReorderLevel: 5, IsActive: true, CreatedBy: "seed", CreatedAt: now},
		{SKU: "BAT-A15-ORG", Name: "Battery A15 Original", Category: "batteries", CostPrice: money.MustParse("28000.00"), SellingPrice: money.MustParse("45000.00"), ReorderLevel: 10, IsActive: true, CreatedBy: "seed", CreatedAt: now},
		{SKU: "CHG-USBC-20W", Name: "Charger USB-C 20W", Category: "chargers", CostPrice: money.MustParse("9500.00"), SellingPrice: money.MustParse("18000.00"), ReorderLevel: 15, IsActive: true, CreatedBy: "seed", CreatedAt: now},
		{SKU: "FLX-R9-MAIN", Name: "Main Flex Cable R9", Category: "flex-cables", CostPrice: money.MustParse("6200.00"), SellingPrice: money.MustParse("12500.00"), ReorderLevel: 8, IsActive: true, CreatedBy: "seed", CreatedAt: now},
		{SKU: "GLS-UNI-55", Name: "Tempered Glass 5.5in", Category: "accessories", CostPrice: money.MustParse("1800.00"), SellingPrice: money.MustParse("5000.00"), ReorderLevel: 25, IsActive: true, CreatedBy: "seed", CreatedAt: now},
	}

	agents := []domain.Agent{
		{ID: "agent-seed-1", FullName: "Joko Santoso", PhoneNumber: "0812-5550-0101", Area: "Pasar Baru", CreditLimit: money.MustParse("500000.00"), IsActive: true, IsTrusted: true, CreatedBy: "seed", CreatedAt: now},
		{ID: "agent-seed-2", FullName: "Rina Wahyuni", PhoneNumber: "0812-5550-0102", Area: "Terminal Timur", CreditLimit: money.MustParse("300000.00"), IsActive: true, CreatedBy: "seed", CreatedAt: now},
	}

	s := &Store{
		agents:          make(map[string]domain.Agent, len(agents)),
		products:        make(map[string]domain.Product, len(products)),
		debtEntries:     make(map[string]domain.DebtEntry),
		movements:       make(map[string]domain.MovementEntry),
		salesByID:       make(map[string]domain.SaleTransaction),
		saleSeqByDay:    make(map[string]int),
		reconciliations: make(map[string]domain.Reconciliation),
		reconItems:      make(map[string]map[string]domain.ReconciliationItem),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
	for _, a := range agents {
		s.agents[a.ID] = a
	}
	for _, p := range products {
		// Seed an opening purchase movement so the cached counter
		// equals the ledger fold from the first moment.
		p.QuantityInStock = 40
		s.products[p.SKU] = p
		mov := domain.MovementEntry{
			ID:            xid.New("mov"),
			ProductSKU:    p.SKU,
			Kind:          domain.MovementPurchase,
			QuantityDelta: p.QuantityInStock,
			ToLocation:    "shop",
			PerformedBy:   "seed",
			Notes:         "opening stock",
			CreatedAt:     now,
		}
		s.movements[mov.ID] = mov
	}
	return s
}

func (s *Store) CreateAgent(_ context.Context, agent domain.Agent) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent.FullName = strings.TrimSpace(agent.FullName)
	agent.PhoneNumber = strings.TrimSpace(agent.PhoneNumber)
	if agent.FullName == "" || agent.PhoneNumber == "" {
		return nil, store.ErrValidation
	}
	if agent.CreditLimit.IsNegative() {
		return nil, store.ErrValidation
	}
	if agent.ID == "" {
		agent.ID = xid.New("agent")
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	agent.IsActive = true

	s.agents[agent.ID] = agent
	created := agent
	return &created, nil
}

func (s *Store) GetAgent(_ context.Context, id string) (*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, exists := s.agents[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyAgent := agent
	return &copyAgent, nil
}

func (s *Store) ListAgents(_ context.Context, activeOnly bool) ([]domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]domain.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		if activeOnly && !a.IsActive {
			continue
		}
		agents = append(agents, a)
	}
	slices.SortFunc(agents, func(a, b domain.Agent) int {
		if a.FullName == b.FullName {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.FullName, b.FullName)
	})
	return agents, nil
}

func (s *Store) UpdateAgent(_ context.Context, agent domain.Agent) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agent.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if strings.TrimSpace(agent.FullName) == "" || strings.TrimSpace(agent.PhoneNumber) == "" {
		return nil, store.ErrValidation
	}
	if agent.CreditLimit.IsNegative() {
		return nil, store.ErrValidation
	}

	s.agents[agent.ID] = agent
	updated := agent
	return &updated, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.SKU = strings.ToUpper(strings.TrimSpace(product.SKU))
	if product.SKU == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrValidation
	}
	if !product.SellingPrice.IsPositive() || product.CostPrice.IsNegative() {
		return nil, store.ErrValidation
	}
	if product.QuantityInStock < 0 || product.ReorderLevel < 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.products[product.SKU]; exists {
		return nil, store.ErrValidation
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.QuantityInField = 0
	product.IsActive = true

	if product.QuantityInStock > 0 {
		mov := domain.MovementEntry{
			ID:            xid.New("mov"),
			ProductSKU:    product.SKU,
			Kind:          domain.MovementPurchase,
			QuantityDelta: product.QuantityInStock,
			ToLocation:    "shop",
			PerformedBy:   product.CreatedBy,
			Notes:         "opening stock",
			CreatedAt:     product.CreatedAt,
		}
		s.movements[mov.ID] = mov
	}

	s.products[product.SKU] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[sku]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if activeOnly && !p.IsActive {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})
	return products, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if !p.IsActive || !p.IsLowStock() {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		// Most depleted relative to reorder level first.
		aGap := a.QuantityInStock - a.ReorderLevel
		bGap := b.QuantityInStock - b.ReorderLevel
		if aGap == bGap {
			return cmpString(a.SKU, b.SKU)
		}
		if aGap < bGap {
			return -1
		}
		return 1
	})
	return products, nil
}

func (s *Store) ListDebtEntries(_ context.Context, q domain.DebtEntryQuery) ([]domain.DebtEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DebtEntry, 0, 64)
	for _, e := range s.debtEntries {
		if q.AgentID != "" && e.AgentID != q.AgentID {
			continue
		}
		if q.ProductSKU != "" && e.ProductSKU != q.ProductSKU {
			continue
		}
		if q.Paid != nil && e.IsPaid != *q.Paid {
			continue
		}
		if !q.From.IsZero() && e.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !e.CreatedAt.Before(q.To) {
			continue
		}
		result = append(result, e)
	}
	slices.SortFunc(result, func(a, b domain.DebtEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (s *Store) ListPayments(_ context.Context, agentID string, limit int) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Payment, 0, 32)
	for _, p := range s.payments {
		if agentID != "" && p.AgentID != agentID {
			continue
		}
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b domain.Payment) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListMovements(_ context.Context, q domain.MovementQuery) ([]domain.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.MovementEntry, 0, 64)
	for _, m := range s.movements {
		if q.ProductSKU != "" && m.ProductSKU != q.ProductSKU {
			continue
		}
		if q.AgentID != "" && m.AgentID != q.AgentID {
			continue
		}
		if q.Kind != "" && m.Kind != q.Kind {
			continue
		}
		if !q.From.IsZero() && m.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !m.CreatedAt.Before(q.To) {
			continue
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.MovementEntry) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	limit := q.Limit
	if limit < 1 {
		limit = 200
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetMovement(_ context.Context, id string) (*domain.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.movements[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyMov := m
	return &copyMov, nil
}

func (s *Store) ProjectAgentDebt(_ context.Context, agentID string) (money.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.agents[agentID]; !exists {
		return money.Zero(), store.ErrNotFound
	}
	return s.projectAgentDebtLocked(agentID), nil
}

func (s *Store) ProjectStock(_ context.Context, sku string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.products[sku]; !exists {
		return 0, store.ErrNotFound
	}
	return s.projectStockLocked(sku), nil
}

func (s *Store) RecomputeStock(_ context.Context, sku string) (*domain.StockRecomputeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[sku]
	if !exists {
		return nil, store.ErrNotFound
	}
	derived := s.projectStockLocked(sku)
	result := &domain.StockRecomputeResult{
		ProductSKU: sku,
		CachedQty:  product.QuantityInStock,
		DerivedQty: derived,
		Drift:      derived - product.QuantityInStock,
	}
	if result.Drift != 0 {
		product.QuantityInStock = derived
		s.products[sku] = product
		result.CacheRewritten = true
	}
	return result, nil
}

func (s *Store) TransferStock(_ context.Context, entry domain.DebtEntry, movement domain.MovementEntry) (*domain.DebtEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Quantity < 1 || entry.UnitPrice.IsNegative() {
		return nil, store.ErrValidation
	}
	agent, exists := s.agents[entry.AgentID]
	if !exists || !agent.IsActive {
		return nil, store.ErrNotFound
	}
	product, exists := s.products[entry.ProductSKU]
	if !exists || !product.IsActive {
		return nil, store.ErrNotFound
	}
	if product.QuantityInStock < entry.Quantity {
		return nil, store.ErrInsufficientStock
	}

	entry.DebtAmount = entry.UnitPrice.MulQty(entry.Quantity)
	entry.PaidAmount = money.Zero()
	entry.IsPaid = false
	entry.PaidAt = nil

	// Credit check and append stay under the same lock, so two
	// concurrent transfers cannot both pass against the same headroom.
	// A zero limit means unlimited.
	if agent.CreditLimit.IsPositive() {
		projected := s.projectAgentDebtLocked(entry.AgentID).Add(entry.DebtAmount)
		if projected.GreaterThan(agent.CreditLimit) {
			return nil, store.ErrCreditLimitExceeded
		}
	}

	now := time.Now().UTC()
	if entry.ID == "" {
		entry.ID = xid.New("debt")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	movement.ID = xid.New("mov")
	movement.ProductSKU = entry.ProductSKU
	movement.AgentID = entry.AgentID
	movement.Kind = domain.MovementTransferToAgent
	movement.QuantityDelta = -entry.Quantity
	movement.FromLocation = "shop"
	movement.ToLocation = "field"
	movement.ReferenceID = entry.ID
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = now
	}
	entry.MovementID = movement.ID

	product.QuantityInStock -= entry.Quantity
	product.QuantityInField += entry.Quantity
	s.products[product.SKU] = product
	s.movements[movement.ID] = movement
	s.debtEntries[entry.ID] = entry

	created := entry
	return &created, nil
}

func (s *Store) ReturnStock(_ context.Context, movement domain.MovementEntry) (*domain.MovementEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qty := movement.QuantityDelta
	if qty < 1 {
		return nil, store.ErrValidation
	}
	if _, exists := s.agents[movement.AgentID]; !exists {
		return nil, store.ErrNotFound
	}
	product, exists := s.products[movement.ProductSKU]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.QuantityInField < qty {
		return nil, store.ErrInsufficientStock
	}

	movement.ID = xid.New("mov")
	movement.Kind = domain.MovementReturnFromAgent
	movement.FromLocation = "field"
	movement.ToLocation = "shop"
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	product.QuantityInStock += qty
	product.QuantityInField -= qty
	s.products[product.SKU] = product
	s.movements[movement.ID] = movement

	created := movement
	return &created, nil
}

func (s *Store) SettlePayment(_ context.Context, payment domain.Payment, target domain.PaymentTarget) (*domain.SettlementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !payment.Amount.IsPositive() {
		return nil, store.ErrValidation
	}
	if _, exists := s.agents[payment.AgentID]; !exists {
		return nil, store.ErrNotFound
	}
	for _, id := range target.IDs() {
		e, exists := s.debtEntries[id]
		if !exists || e.AgentID != payment.AgentID {
			return nil, store.ErrNotFound
		}
	}

	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	candidates := make([]domain.DebtEntry, 0, 32)
	for _, e := range s.debtEntries {
		if e.AgentID == payment.AgentID {
			candidates = append(candidates, e)
		}
	}
	selected := settlement.SelectEntries(candidates, target)
	outcome := settlement.Apply(selected, payment.Amount, payment.CreatedAt)

	for _, updated := range outcome.Updated {
		s.debtEntries[updated.ID] = updated
	}
	s.payments = append(s.payments, payment)

	return &domain.SettlementResult{
		Payment:        payment,
		AppliedTotal:   outcome.Applied,
		Remainder:      outcome.Remainder,
		UpdatedEntries: outcome.Updated,
		NewTotalDebt:   s.projectAgentDebtLocked(payment.AgentID),
	}, nil
}

func (s *Store) AdjustStock(_ context.Context, movement domain.MovementEntry) (*domain.MovementEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if movement.QuantityDelta == 0 {
		return nil, store.ErrValidation
	}
	product, exists := s.products[movement.ProductSKU]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.QuantityInStock+movement.QuantityDelta < 0 {
		return nil, store.ErrInsufficientStock
	}

	movement.ID = xid.New("mov")
	movement.Kind = domain.MovementAdjustment
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	product.QuantityInStock += movement.QuantityDelta
	s.products[product.SKU] = product
	s.movements[movement.ID] = movement

	created := movement
	return &created, nil
}

func (s *Store) ReverseMovement(_ context.Context, movementID string, reversal domain.MovementEntry) (*domain.MovementEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, exists := s.movements[movementID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if original.Kind == domain.MovementReversal {
		return nil, store.ErrInvalidState
	}
	for _, m := range s.movements {
		if m.ReversalOf == movementID {
			return nil, store.ErrInvalidState
		}
	}
	product, exists := s.products[original.ProductSKU]
	if !exists {
		return nil, store.ErrNotFound
	}

	delta := -original.QuantityDelta
	if product.QuantityInStock+delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	movesField := original.Kind == domain.MovementTransferToAgent || original.Kind == domain.MovementReturnFromAgent
	if movesField && product.QuantityInField-delta < 0 {
		return nil, store.ErrInsufficientStock
	}

	reversal.ID = xid.New("mov")
	reversal.ProductSKU = original.ProductSKU
	reversal.AgentID = original.AgentID
	reversal.Kind = domain.MovementReversal
	reversal.QuantityDelta = delta
	reversal.FromLocation = original.ToLocation
	reversal.ToLocation = original.FromLocation
	reversal.ReversalOf = original.ID
	if reversal.CreatedAt.IsZero() {
		reversal.CreatedAt = time.Now().UTC()
	}

	product.QuantityInStock += delta
	if movesField {
		product.QuantityInField -= delta
	}
	s.products[product.SKU] = product
	s.movements[reversal.ID] = reversal

	created := reversal
	return &created, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.SaleTransaction) (*domain.SaleTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrValidation
	}
	if !domain.ValidPaymentMethod(sale.PaymentMethod) {
		return nil, store.ErrValidation
	}

	now := time.Now().UTC()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}

	subtotal := money.Zero()
	discountTotal := money.Zero()
	lines := make([]domain.SaleLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		if item.Quantity < 1 {
			return nil, store.ErrValidation
		}
		product, exists := s.products[item.ProductSKU]
		if !exists || !product.IsActive {
			return nil, fmt.Errorf("sku %s unavailable: %w", item.ProductSKU, store.ErrNotFound)
		}
		if product.QuantityInStock < item.Quantity {
			return nil, store.ErrInsufficientStock
		}
		unitPrice := item.UnitPrice
		if !unitPrice.IsPositive() {
			unitPrice = product.SellingPrice
		}
		gross := unitPrice.MulQty(item.Quantity)
		if item.Discount.IsNegative() || item.Discount.GreaterThan(gross) {
			return nil, store.ErrValidation
		}
		lines = append(lines, domain.SaleLine{
			ProductSKU: item.ProductSKU,
			Quantity:   item.Quantity,
			UnitPrice:  unitPrice,
			Discount:   item.Discount,
			LineTotal:  gross.Sub(item.Discount),
		})
		subtotal = subtotal.Add(gross)
		discountTotal = discountTotal.Add(item.Discount)
	}

	sale.Items = lines
	sale.Subtotal = subtotal
	sale.DiscountAmount = discountTotal
	sale.TotalAmount = subtotal.Sub(discountTotal).Add(sale.TaxAmount)

	if sale.PaymentMethod == domain.PaymentMethodCash {
		if sale.AmountPaid.LessThan(sale.TotalAmount) {
			return nil, store.ErrValidation
		}
		sale.ChangeGiven = sale.AmountPaid.Sub(sale.TotalAmount)
	} else {
		sale.AmountPaid = sale.TotalAmount
		sale.ChangeGiven = money.Zero()
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	dayKey := sale.CreatedAt.Format("20060102")
	s.saleSeqByDay[dayKey]++
	sale.Code = fmt.Sprintf("TXN-%s-%04d", dayKey, s.saleSeqByDay[dayKey])

	for _, line := range sale.Items {
		product := s.products[line.ProductSKU]
		product.QuantityInStock -= line.Quantity
		s.products[line.ProductSKU] = product
		mov := domain.MovementEntry{
			ID:            xid.New("mov"),
			ProductSKU:    line.ProductSKU,
			Kind:          domain.MovementSale,
			QuantityDelta: -line.Quantity,
			FromLocation:  "shop",
			ToLocation:    "customer",
			ReferenceID:   sale.ID,
			PerformedBy:   sale.ProcessedBy,
			CreatedAt:     sale.CreatedAt,
		}
		s.movements[mov.ID] = mov
	}

	s.salesByID[sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.SaleTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) GetDailySalesSummary(_ context.Context, from time.Time, to time.Time) (domain.DailySalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.DailySalesSummary{
		Date:            from.Format("2006-01-02"),
		TotalSales:      money.Zero(),
		ByPaymentMethod: make(map[string]money.Amount),
	}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		summary.Transactions++
		summary.TotalSales = summary.TotalSales.Add(sale.TotalAmount)
		current, ok := summary.ByPaymentMethod[sale.PaymentMethod]
		if !ok {
			current = money.Zero()
		}
		summary.ByPaymentMethod[sale.PaymentMethod] = current.Add(sale.TotalAmount)
	}
	return summary, nil
}

func (s *Store) CreateReconciliation(_ context.Context, rec domain.Reconciliation) (*domain.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !domain.ValidReconciliationType(rec.Type) {
		return nil, store.ErrValidation
	}
	if rec.ID == "" {
		rec.ID = xid.New("recon")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.Status = domain.ReconciliationInProgress
	rec.Items = nil

	s.reconciliations[rec.ID] = rec
	s.reconItems[rec.ID] = make(map[string]domain.ReconciliationItem)
	created := rec
	return &created, nil
}

func (s *Store) GetReconciliation(_ context.Context, id string) (*domain.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.reconciliations[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyRec := rec
	copyRec.Items = s.reconItemsSortedLocked(id)
	return &copyRec, nil
}

func (s *Store) ListReconciliations(_ context.Context, status string, limit int) ([]domain.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reconciliation, 0, len(s.reconciliations))
	for _, rec := range s.reconciliations {
		if status != "" && rec.Status != status {
			continue
		}
		result = append(result, rec)
	}
	slices.SortFunc(result, func(a, b domain.Reconciliation) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpsertReconciliationCount(_ context.Context, reconciliationID string, item domain.ReconciliationItem) (*domain.ReconciliationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.reconciliations[reconciliationID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if rec.Status != domain.ReconciliationInProgress {
		return nil, store.ErrInvalidState
	}
	if item.PhysicalCount < 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.products[item.ProductSKU]; !exists {
		return nil, store.ErrNotFound
	}

	// The system count is snapshotted from the ledger fold at the
	// moment of counting, so later movements do not shift the variance.
	item.ReconciliationID = reconciliationID
	item.SetCounts(s.projectStockLocked(item.ProductSKU), item.PhysicalCount)
	item.CorrectionApproved = false
	item.CorrectionCreated = false
	item.CountedAt = time.Now().UTC()

	if existing, ok := s.reconItems[reconciliationID][item.ProductSKU]; ok {
		item.ID = existing.ID
	} else {
		item.ID = xid.New("count")
	}
	s.reconItems[reconciliationID][item.ProductSKU] = item
	saved := item
	return &saved, nil
}

func (s *Store) TransitionReconciliation(_ context.Context, id string, allowedFrom []string, to string, approvedBy string) (*domain.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.reconciliations[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if !slices.Contains(allowedFrom, rec.Status) {
		return nil, store.ErrInvalidState
	}
	rec.Status = to
	if approvedBy != "" {
		rec.ApprovedBy = approvedBy
	}
	s.reconciliations[id] = rec
	updated := rec
	updated.Items = s.reconItemsSortedLocked(id)
	return &updated, nil
}

func (s *Store) CreateReconciliationCorrections(_ context.Context, id string, performedBy string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.reconciliations[id]
	if !exists {
		return 0, store.ErrNotFound
	}
	if rec.Status != domain.ReconciliationApproved {
		return 0, store.ErrInvalidState
	}

	created := 0
	for sku, item := range s.reconItems[id] {
		if !item.HasDiscrepancy || item.CorrectionCreated {
			continue
		}
		product, ok := s.products[sku]
		if !ok {
			continue
		}
		mov := domain.MovementEntry{
			ID:            xid.New("mov"),
			ProductSKU:    sku,
			Kind:          domain.MovementAdjustment,
			QuantityDelta: item.Variance,
			ReferenceID:   id,
			PerformedBy:   performedBy,
			Notes:         "stock count correction",
			CreatedAt:     time.Now().UTC(),
		}
		product.QuantityInStock += item.Variance
		s.products[sku] = product
		s.movements[mov.ID] = mov

		item.CorrectionApproved = true
		item.CorrectionCreated = true
		s.reconItems[id][sku] = item
		created++
	}
	return created, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrValidation
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) projectAgentDebtLocked(agentID string) money.Amount {
	total := money.Zero()
	for _, e := range s.debtEntries {
		if e.AgentID != agentID || e.IsPaid {
			continue
		}
		total = total.Add(e.RemainingDebt())
	}
	return total
}

func (s *Store) projectStockLocked(sku string) int {
	total := 0
	for _, m := range s.movements {
		if m.ProductSKU != sku {
			continue
		}
		total += m.QuantityDelta
	}
	return total
}

func (s *Store) reconItemsSortedLocked(reconciliationID string) []domain.ReconciliationItem {
	items := make([]domain.ReconciliationItem, 0, len(s.reconItems[reconciliationID]))
	for _, item := range s.reconItems[reconciliationID] {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.ReconciliationItem) int {
		return cmpString(a.ProductSKU, b.ProductSKU)
	})
	return items
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src domain.SaleTransaction) domain.SaleTransaction {
	dup := src
	items := make([]domain.SaleLine, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	return dup
}
